package storage

import (
	"context"
	"fmt"

	"github.com/portfolio-rebalancer/internal/circuitbreaker"
	"github.com/portfolio-rebalancer/internal/config"
	"github.com/portfolio-rebalancer/internal/retry"
)

// OpenStore connects the backend selected by cfg.Store.Backend
func OpenStore(ctx context.Context, cfg *config.Config) (Store, error) {
	retryCfg := retry.FromConfig(cfg.Retry)

	switch cfg.Store.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendRedis:
		return NewRedisStore(ctx, &cfg.Database.Redis, cfg.Store.KeyPrefix, retryCfg)
	case config.BackendPostgres:
		db, err := NewPostgresDB(ctx, &cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(db, retryCfg), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// OpenHistoryMirror connects the ClickHouse history mirror behind a circuit
// breaker. It returns nil when mirroring is disabled.
func OpenHistoryMirror(ctx context.Context, cfg *config.ClickHouseConfig) (*GuardedHistory, func() error, error) {
	if !cfg.Enabled {
		return nil, func() error { return nil }, nil
	}
	db, err := NewClickHouseDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("clickhouse-history"))
	return NewGuardedHistory(NewClickHouseHistory(db), breaker), db.Close, nil
}
