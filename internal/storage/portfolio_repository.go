package storage

import (
	"context"

	"github.com/portfolio-rebalancer/internal/models"
)

// PortfolioRepository handles portfolio records
type PortfolioRepository struct {
	kv KV
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(kv KV) *PortfolioRepository {
	return &PortfolioRepository{kv: kv}
}

// Get retrieves a portfolio by id. Returns ErrNotFound when absent.
func (r *PortfolioRepository) Get(ctx context.Context, id uint64) (*models.Portfolio, error) {
	return getJSON[models.Portfolio](ctx, r.kv, PortfolioKey(id))
}

// Put creates or replaces a portfolio
func (r *PortfolioRepository) Put(ctx context.Context, p *models.Portfolio) error {
	return putJSON(ctx, r.kv, PortfolioKey(p.ID), p)
}
