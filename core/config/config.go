package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// loadEnvOnce makes .env loading a one-time, best-effort side effect:
	// a missing file is not an error, the real environment always wins.
	loadEnvOnce sync.Once

	// cache stores one loaded value per configuration type.
	cache sync.Map // reflect.Type -> any
)

// Load parses environment variables into cfg. The first call of any type
// loads a .env file if present; each configuration type is parsed once and
// cached, so repeated loads of the same type see identical values.
func Load[T any](cfg *T) error {
	loadEnvOnce.Do(func() {
		_ = godotenv.Load()
	})

	key := reflect.TypeOf(*cfg)
	if cached, ok := cache.Load(key); ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}

	actual, _ := cache.LoadOrStore(key, *cfg)
	*cfg = actual.(T)
	return nil
}

// MustLoad is Load that panics on failure, for use during startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
