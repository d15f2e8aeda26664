package session

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Config selects the session backend.
type Config struct {
	// Backend is one of: memory, sqlite, redis.
	Backend string
	// Window is the number of turns visible on a read.
	Window int
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string
	// Redis holds connection settings for the redis backend.
	Redis RedisConfig
}

// ConfigFromEnv reads SESSION_BACKEND, SESSION_DB, REDIS_ADDR, REDIS_PASSWORD
// and REDIS_DB. window comes from the RAG configuration.
func ConfigFromEnv(window int) *Config {
	cfg := &Config{
		Backend:    os.Getenv("SESSION_BACKEND"),
		Window:     window,
		SQLitePath: os.Getenv("SESSION_DB"),
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
	}
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	return cfg
}

// Validate checks the backend name.
func (c *Config) Validate() error {
	switch c.Backend {
	case "memory", "sqlite", "redis":
		return nil
	default:
		return fmt.Errorf("session: unknown backend %q (valid: memory, sqlite, redis)", c.Backend)
	}
}

// Open constructs the configured backend and wraps it in a Store.
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var backend Backend
	switch cfg.Backend {
	case "memory":
		backend = NewMemoryBackend()
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			p, err := DefaultDBPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		b, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		backend = b
	case "redis":
		rc := cfg.redisConfig()
		b, err := NewRedisBackend(ctx, &rc)
		if err != nil {
			return nil, err
		}
		backend = b
	}
	return NewStore(backend, cfg.Window), nil
}

// redisConfig returns the redis settings with MaxTurns defaulted to the read
// window, since turns older than the window are never read.
func (c *Config) redisConfig() RedisConfig {
	rc := c.Redis
	if rc.MaxTurns == 0 {
		rc.MaxTurns = c.Window
		if rc.MaxTurns <= 0 {
			rc.MaxTurns = DefaultWindow
		}
	}
	return rc
}

// Backend returns the store's backend, e.g. for readiness probes.
func (s *Store) Backend() Backend { return s.backend }
