package session

import "time"

// Driver names accepted by Config.Driver.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds session manager configuration.
type Config struct {
	// TTL is the default time-to-live for a new session.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// LiveTTL is the activity-marker window. A session can be unexpired
	// without being "live"; LiveTTL must not exceed TTL.
	LiveTTL time.Duration `env:"SESSION_LIVE_TTL" envDefault:"5m"`

	// Driver selects the storage backend wired at construction time.
	Driver string `env:"SESSION_DRIVER" envDefault:"postgres"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		TTL:     24 * time.Hour,
		LiveTTL: 5 * time.Minute,
		Driver:  DriverPostgres,
	}
}

// normalize fills zero values and keeps the live window within the session TTL.
func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.TTL <= 0 {
		c.TTL = d.TTL
	}
	if c.LiveTTL <= 0 {
		c.LiveTTL = d.LiveTTL
	}
	if c.LiveTTL > c.TTL {
		c.LiveTTL = c.TTL
	}
	if c.Driver == "" {
		c.Driver = d.Driver
	}
	return c
}
