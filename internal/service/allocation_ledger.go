package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/portfolio-rebalancer/internal/errors"
	"github.com/portfolio-rebalancer/internal/mathx"
	"github.com/portfolio-rebalancer/internal/models"
	"github.com/portfolio-rebalancer/internal/types"
)

// SetAllocationTarget creates or updates the target share of a token in a
// portfolio. Current amount and percentage are left as they are; only a
// rebalance moves funds.
func (e *Engine) SetAllocationTarget(ctx context.Context, call types.Call, portfolioID uint64, token common.Address, targetBps uint64, symbol string) error {
	return e.mutate(ctx, "set_allocation_target", call, func(ctx context.Context, u *unit) error {
		p, err := loadPortfolio(ctx, u.repos, portfolioID)
		if err != nil {
			return err
		}
		if !p.IsOwner(call.Caller) {
			return apperrors.New(apperrors.KindUnauthorized, "caller does not own portfolio %d", portfolioID)
		}
		if _, err := tokenTradable(ctx, u.repos, token); err != nil {
			return err
		}
		if targetBps == 0 || targetBps > types.BpsDenominator {
			return apperrors.New(apperrors.KindInvalidPercentage, "target %d bps outside (0, 10000]", targetBps)
		}

		a, err := u.repos.allocations.Get(ctx, portfolioID, token)
		switch {
		case isNotFound(err):
			tokens, err := u.repos.allocations.Tokens(ctx, portfolioID)
			if err != nil {
				return err
			}
			if len(tokens) >= e.params.MaxTokens {
				return apperrors.New(apperrors.KindInvalidToken,
					"portfolio %d already holds %d tokens", portfolioID, len(tokens))
			}
			a = &models.Allocation{PortfolioID: portfolioID, Token: token}
		case err != nil:
			return err
		}

		a.TargetBps = targetBps
		a.Symbol = symbol
		return u.repos.allocations.Put(ctx, a)
	})
}

// Deviation is the absolute difference between a target and a current
// percentage, in basis points
func Deviation(targetBps, currentBps uint64) uint64 {
	return mathx.AbsDiff(targetBps, currentBps)
}

// GetAllocation returns the allocation of token in a portfolio
func (e *Engine) GetAllocation(ctx context.Context, portfolioID uint64, token common.Address) (*models.Allocation, error) {
	a, err := e.snapshot().allocations.Get(ctx, portfolioID, token)
	if isNotFound(err) {
		return nil, apperrors.New(apperrors.KindNotFound, "no allocation of %s in portfolio %d", token.Hex(), portfolioID)
	}
	if err != nil {
		return nil, storeError("get allocation", err)
	}
	return a, nil
}

// ListAllocations returns a portfolio's allocations in the order they were added
func (e *Engine) ListAllocations(ctx context.Context, portfolioID uint64) ([]*models.Allocation, error) {
	allocations, err := e.snapshot().allocations.List(ctx, portfolioID)
	if err != nil {
		return nil, storeError("list allocations", err)
	}
	return allocations, nil
}

// TargetSum returns the sum of a portfolio's target percentages
func (e *Engine) TargetSum(ctx context.Context, portfolioID uint64) (uint64, error) {
	allocations, err := e.ListAllocations(ctx, portfolioID)
	if err != nil {
		return 0, err
	}
	return targetSum(allocations), nil
}

// PortfolioDeviation returns the largest per-token deviation between target
// and the live, price-weighted current percentage
func (e *Engine) PortfolioDeviation(ctx context.Context, portfolioID uint64) (uint64, error) {
	repos := e.snapshot()
	p, err := loadPortfolio(ctx, repos, portfolioID)
	if err != nil {
		return 0, storeError("portfolio deviation", err)
	}
	allocations, err := repos.allocations.List(ctx, portfolioID)
	if err != nil {
		return 0, storeError("portfolio deviation", err)
	}
	dev, err := maxDeviation(ctx, repos, p, allocations)
	if err != nil {
		return 0, storeError("portfolio deviation", err)
	}
	return dev, nil
}

func targetSum(allocations []*models.Allocation) uint64 {
	var sum uint64
	for _, a := range allocations {
		sum = mathx.AddSaturating(sum, a.TargetBps)
	}
	return sum
}

// liveBps is the share of total value held in an allocation at current prices
func liveBps(holdingValue, totalValue uint64) uint64 {
	if totalValue == 0 {
		return 0
	}
	return mathx.Min(mathx.MulDivSaturating(holdingValue, types.BpsDenominator, totalValue), types.BpsDenominator)
}

// maxDeviation compares each target with its share of the live portfolio
// value, idle value plus every holding at current prices
func maxDeviation(ctx context.Context, repos *repositories, p *models.Portfolio, allocations []*models.Allocation) (uint64, error) {
	holdings := make([]uint64, len(allocations))
	total := p.IdleValue
	for i, a := range allocations {
		value, err := priceOf(ctx, repos, a.Token, a.CurrentAmount)
		if err != nil {
			return 0, err
		}
		holdings[i] = value
		total = mathx.AddSaturating(total, value)
	}

	var worst uint64
	for i, a := range allocations {
		if d := Deviation(a.TargetBps, liveBps(holdings[i], total)); d > worst {
			worst = d
		}
	}
	return worst, nil
}
