package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/portfolio-rebalancer/internal/models"
)

// TokenRegistryRepository handles approved token records
type TokenRegistryRepository struct {
	kv KV
}

// NewTokenRegistryRepository creates a new token registry repository
func NewTokenRegistryRepository(kv KV) *TokenRegistryRepository {
	return &TokenRegistryRepository{kv: kv}
}

// Get retrieves a token. Returns ErrNotFound when the token was never approved.
func (r *TokenRegistryRepository) Get(ctx context.Context, token common.Address) (*models.ApprovedToken, error) {
	return getJSON[models.ApprovedToken](ctx, r.kv, TokenKey(token))
}

// Put creates or replaces a token entry
func (r *TokenRegistryRepository) Put(ctx context.Context, t *models.ApprovedToken) error {
	return putJSON(ctx, r.kv, TokenKey(t.Token), t)
}
