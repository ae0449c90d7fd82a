package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/portfolio-rebalancer/internal/models"
)

// PositionRepository handles user position records
type PositionRepository struct {
	kv KV
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(kv KV) *PositionRepository {
	return &PositionRepository{kv: kv}
}

// Get retrieves a holder's position in a portfolio
func (r *PositionRepository) Get(ctx context.Context, holder common.Address, portfolioID uint64) (*models.UserPosition, error) {
	return getJSON[models.UserPosition](ctx, r.kv, PositionKey(holder, portfolioID))
}

// Put creates or replaces a position
func (r *PositionRepository) Put(ctx context.Context, p *models.UserPosition) error {
	return putJSON(ctx, r.kv, PositionKey(p.Holder, p.PortfolioID), p)
}
