package service

import (
	"context"

	apperrors "github.com/portfolio-rebalancer/internal/errors"
	"github.com/portfolio-rebalancer/internal/models"
)

// GetRebalance returns one history record
func (e *Engine) GetRebalance(ctx context.Context, portfolioID, rebalanceID uint64) (*models.RebalanceRecord, error) {
	rec, err := e.snapshot().rebalances.Get(ctx, portfolioID, rebalanceID)
	if isNotFound(err) {
		return nil, apperrors.New(apperrors.KindNotFound, "no rebalance %d for portfolio %d", rebalanceID, portfolioID)
	}
	if err != nil {
		return nil, storeError("get rebalance", err)
	}
	return rec, nil
}

// ListRebalances returns a portfolio's history, oldest first
func (e *Engine) ListRebalances(ctx context.Context, portfolioID uint64) ([]*models.RebalanceRecord, error) {
	records, err := e.snapshot().rebalances.List(ctx, portfolioID)
	if err != nil {
		return nil, storeError("list rebalances", err)
	}
	return records, nil
}

// mirrorRecord forwards a committed record. The commit already happened, so
// a mirror failure is only logged.
func (e *Engine) mirrorRecord(ctx context.Context, rec *models.RebalanceRecord) {
	if e.mirror == nil {
		return
	}
	if err := e.mirror.Record(ctx, rec); err != nil {
		e.logger.WithError(err).WithFields(map[string]interface{}{
			"portfolio_id": rec.PortfolioID,
			"rebalance_id": rec.ID,
		}).Warn("Failed to mirror rebalance record")
	}
}
