package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/portfolio-rebalancer/internal/config"
	apperrors "github.com/portfolio-rebalancer/internal/errors"
	"github.com/portfolio-rebalancer/internal/retry"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps engine records in Redis. Batches are applied inside
// MULTI/EXEC so they become visible together.
type RedisStore struct {
	client *redis.Client
	prefix string
	retry  *retry.RetryConfig
}

// NewRedisStore creates a new Redis connection and verifies it
func NewRedisStore(ctx context.Context, cfg *config.RedisConfig, prefix string, retryCfg *retry.RetryConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	store := NewRedisStoreFromClient(client, prefix, retryCfg)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := store.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return store, nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, prefix string, retryCfg *retry.RetryConfig) *RedisStore {
	if retryCfg == nil {
		retryCfg = retry.DefaultRetryConfig()
	}
	cfg := *retryCfg
	cfg.Retryable = isTransientRedisError

	return &RedisStore{
		client: client,
		prefix: prefix,
		retry:  &cfg,
	}
}

func isTransientRedisError(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, redis.Nil)
}

func (r *RedisStore) redisKey(key Key) string {
	if r.prefix == "" {
		return key.String()
	}
	return r.prefix + ":" + key.String()
}

// Client returns the underlying Redis client
func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// Ping checks if Redis is reachable
func (r *RedisStore) Ping(ctx context.Context) error {
	return retry.Do(ctx, r.retry, func(ctx context.Context, attempt int) error {
		return r.client.Ping(ctx).Err()
	})
}

// Get retrieves a value by key
func (r *RedisStore) Get(ctx context.Context, key Key) ([]byte, error) {
	val, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewCacheError("get", err)
	}
	return val, nil
}

// Set writes a single value without expiry
func (r *RedisStore) Set(ctx context.Context, key Key, value []byte) error {
	if err := r.client.Set(ctx, r.redisKey(key), value, 0).Err(); err != nil {
		return apperrors.NewCacheError("set", err)
	}
	return nil
}

// Delete removes a key
func (r *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return apperrors.NewCacheError("delete", err)
	}
	return nil
}

// Apply writes a batch inside MULTI/EXEC. Every op is an absolute write, so
// replaying the batch after a transient failure is safe.
func (r *RedisStore) Apply(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}

	err := retry.Do(ctx, r.retry, func(ctx context.Context, attempt int) error {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range ops {
				if op.Delete {
					pipe.Del(ctx, r.redisKey(op.Key))
					continue
				}
				pipe.Set(ctx, r.redisKey(op.Key), op.Value, 0)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return apperrors.NewCacheError("apply", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
