package storage

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/portfolio-rebalancer/internal/models"
)

// AllocationRepository handles per-portfolio, per-token allocation records.
// It maintains an index of allocated tokens because the store has no range scan.
type AllocationRepository struct {
	kv KV
}

// NewAllocationRepository creates a new allocation repository
func NewAllocationRepository(kv KV) *AllocationRepository {
	return &AllocationRepository{kv: kv}
}

// Get retrieves an allocation. Returns ErrNotFound when absent.
func (r *AllocationRepository) Get(ctx context.Context, portfolioID uint64, token common.Address) (*models.Allocation, error) {
	return getJSON[models.Allocation](ctx, r.kv, AllocationKey(portfolioID, token))
}

// Put creates or replaces an allocation and records the token in the index
func (r *AllocationRepository) Put(ctx context.Context, a *models.Allocation) error {
	tokens, err := r.Tokens(ctx, a.PortfolioID)
	if err != nil {
		return err
	}

	known := false
	for _, t := range tokens {
		if t == a.Token {
			known = true
			break
		}
	}
	if !known {
		tokens = append(tokens, a.Token)
		if err := putJSON(ctx, r.kv, AllocationIndexKey(a.PortfolioID), tokens); err != nil {
			return err
		}
	}

	return putJSON(ctx, r.kv, AllocationKey(a.PortfolioID, a.Token), a)
}

// Tokens returns the allocated tokens of a portfolio in insertion order
func (r *AllocationRepository) Tokens(ctx context.Context, portfolioID uint64) ([]common.Address, error) {
	tokens, err := getJSON[[]common.Address](ctx, r.kv, AllocationIndexKey(portfolioID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return *tokens, nil
}

// List returns every allocation of a portfolio in insertion order
func (r *AllocationRepository) List(ctx context.Context, portfolioID uint64) ([]*models.Allocation, error) {
	tokens, err := r.Tokens(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	allocations := make([]*models.Allocation, 0, len(tokens))
	for _, token := range tokens {
		a, err := r.Get(ctx, portfolioID, token)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, nil
}
