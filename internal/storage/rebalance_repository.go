package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/portfolio-rebalancer/internal/models"
)

// ErrRecordExists is returned when appending a history record whose key is taken
var ErrRecordExists = errors.New("storage: record already exists")

// RebalanceRepository handles the append-only rebalance history
type RebalanceRepository struct {
	kv KV
}

// NewRebalanceRepository creates a new rebalance repository
func NewRebalanceRepository(kv KV) *RebalanceRepository {
	return &RebalanceRepository{kv: kv}
}

// Get retrieves a rebalance record
func (r *RebalanceRepository) Get(ctx context.Context, portfolioID, rebalanceID uint64) (*models.RebalanceRecord, error) {
	return getJSON[models.RebalanceRecord](ctx, r.kv, RebalanceKey(portfolioID, rebalanceID))
}

// Append writes a new record. Existing records are never overwritten.
func (r *RebalanceRepository) Append(ctx context.Context, rec *models.RebalanceRecord) error {
	_, err := r.kv.Get(ctx, RebalanceKey(rec.PortfolioID, rec.ID))
	if err == nil {
		return fmt.Errorf("rebalance %d of portfolio %d: %w", rec.ID, rec.PortfolioID, ErrRecordExists)
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	ids, err := r.IDs(ctx, rec.PortfolioID)
	if err != nil {
		return err
	}
	ids = append(ids, rec.ID)
	if err := putJSON(ctx, r.kv, RebalanceIndexKey(rec.PortfolioID), ids); err != nil {
		return err
	}

	return putJSON(ctx, r.kv, RebalanceKey(rec.PortfolioID, rec.ID), rec)
}

// IDs returns the rebalance ids of a portfolio in append order
func (r *RebalanceRepository) IDs(ctx context.Context, portfolioID uint64) ([]uint64, error) {
	ids, err := getJSON[[]uint64](ctx, r.kv, RebalanceIndexKey(portfolioID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return *ids, nil
}

// List returns the records of a portfolio in append order
func (r *RebalanceRepository) List(ctx context.Context, portfolioID uint64) ([]*models.RebalanceRecord, error) {
	ids, err := r.IDs(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	records := make([]*models.RebalanceRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := r.Get(ctx, portfolioID, id)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
