package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/portfolio-rebalancer/internal/config"
	apperrors "github.com/portfolio-rebalancer/internal/errors"
	"github.com/portfolio-rebalancer/internal/retry"
)

// PostgresDB wraps the pgxpool connection
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB creates a new Postgres database connection
func NewPostgresDB(ctx context.Context, cfg *config.PostgresConfig) (*PostgresDB, error) {
	connString := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable pool_max_conns=%d",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Database,
		cfg.MaxConnections,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Configure connection pool
	poolConfig.MaxConns = int32(cfg.MaxConnections) // #nosec G115 - MaxConnections is validated in config
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the database connection pool
func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Pool returns the underlying connection pool
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks if the database is reachable
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

const (
	kvSelectQuery = `SELECT value FROM kv_records WHERE key = $1`
	kvUpsertQuery = `
		INSERT INTO kv_records (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`
	kvDeleteQuery = `DELETE FROM kv_records WHERE key = $1`
)

// PostgresStore keeps engine records in the kv_records table. Batches run in
// a single database transaction.
type PostgresStore struct {
	db    *PostgresDB
	retry *retry.RetryConfig
}

// NewPostgresStore creates a store over an open database
func NewPostgresStore(db *PostgresDB, retryCfg *retry.RetryConfig) *PostgresStore {
	if retryCfg == nil {
		retryCfg = retry.DefaultRetryConfig()
	}
	cfg := *retryCfg
	cfg.Retryable = func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return &PostgresStore{db: db, retry: &cfg}
}

// Get retrieves a value by key
func (s *PostgresStore) Get(ctx context.Context, key Key) ([]byte, error) {
	var value []byte
	err := s.db.Pool().QueryRow(ctx, kvSelectQuery, key.String()).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get", err)
	}
	return value, nil
}

// Set writes a single value
func (s *PostgresStore) Set(ctx context.Context, key Key, value []byte) error {
	if _, err := s.db.Pool().Exec(ctx, kvUpsertQuery, key.String(), value); err != nil {
		return apperrors.NewDatabaseError("set", err)
	}
	return nil
}

// Delete removes a key
func (s *PostgresStore) Delete(ctx context.Context, key Key) error {
	if _, err := s.db.Pool().Exec(ctx, kvDeleteQuery, key.String()); err != nil {
		return apperrors.NewDatabaseError("delete", err)
	}
	return nil
}

// Apply writes a batch in one transaction
func (s *PostgresStore) Apply(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}

	err := retry.Do(ctx, s.retry, func(ctx context.Context, attempt int) error {
		return pgx.BeginFunc(ctx, s.db.Pool(), func(tx pgx.Tx) error {
			batch := &pgx.Batch{}
			for _, op := range ops {
				if op.Delete {
					batch.Queue(kvDeleteQuery, op.Key.String())
					continue
				}
				batch.Queue(kvUpsertQuery, op.Key.String(), op.Value)
			}
			return tx.SendBatch(ctx, batch).Close()
		})
	})
	if err != nil {
		return apperrors.NewDatabaseError("apply", err)
	}
	return nil
}

// Close closes the underlying pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
