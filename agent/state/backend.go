package state

import (
	"context"
	"fmt"
	"strings"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type BackendConfig struct {
	Backend string `envconfig:"BACKEND" default:"memory"`
}

// Backends carries the per-backend settings; only the selected one is used.
type Backends struct {
	Redis    UpstashRedisConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// Open builds the configured store. The returned close func is never nil.
func Open(ctx context.Context, backend string, cfg Backends) (Store, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		return NewMemoryStore(), noop, nil
	case BackendRedis:
		s, err := NewUpstashRedisStore(cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case BackendPostgres:
		s, err := NewPostgresStore(ctx, cfg.Postgres)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendSQLite:
		s, err := NewSQLiteStore(ctx, cfg.SQLite)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown state backend %q", backend)
	}
}
