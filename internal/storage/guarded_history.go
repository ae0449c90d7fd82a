package storage

import (
	"context"

	"github.com/portfolio-rebalancer/internal/circuitbreaker"
	"github.com/portfolio-rebalancer/internal/models"
)

// HistoryBackend is a destination for mirrored rebalance records
type HistoryBackend interface {
	Record(ctx context.Context, rec *models.RebalanceRecord) error
	ListByPortfolio(ctx context.Context, portfolioID uint64) ([]*models.RebalanceRecord, error)
}

// GuardedHistory puts a circuit breaker in front of a history backend so an
// unreachable mirror is skipped instead of retried on every rebalance.
type GuardedHistory struct {
	backend HistoryBackend
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedHistory wraps backend. A nil breaker gets the default config.
func NewGuardedHistory(backend HistoryBackend, breaker *circuitbreaker.CircuitBreaker) *GuardedHistory {
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("history-mirror"))
	}
	return &GuardedHistory{backend: backend, breaker: breaker}
}

// Record mirrors rec, failing fast with circuitbreaker.ErrCircuitOpen while
// the backend is considered down
func (g *GuardedHistory) Record(ctx context.Context, rec *models.RebalanceRecord) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.backend.Record(ctx, rec)
	})
}

// ListByPortfolio reads straight from the backend
func (g *GuardedHistory) ListByPortfolio(ctx context.Context, portfolioID uint64) ([]*models.RebalanceRecord, error) {
	return g.backend.ListByPortfolio(ctx, portfolioID)
}

// Breaker exposes the breaker for stats
func (g *GuardedHistory) Breaker() *circuitbreaker.CircuitBreaker {
	return g.breaker
}
