// Package config provides type-safe environment variable loading with
// per-type caching. A .env file is loaded automatically on first use;
// parsing is delegated to caarlos0/env struct tags.
//
//	type SessionConfig struct {
//		TTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`
//	}
//
//	var cfg SessionConfig
//	config.MustLoad(&cfg)
package config
