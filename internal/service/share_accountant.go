package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/portfolio-rebalancer/internal/errors"
	"github.com/portfolio-rebalancer/internal/mathx"
	"github.com/portfolio-rebalancer/internal/models"
	"github.com/portfolio-rebalancer/internal/types"
)

// Deposit credits amount of value to a portfolio on behalf of the caller and
// returns the shares minted. The first deposit into an empty portfolio mints
// one share per unit; later deposits mint amount*1e6/totalValue, measured
// against the value before the deposit.
func (e *Engine) Deposit(ctx context.Context, call types.Call, portfolioID uint64, amount uint64) (uint64, error) {
	var minted uint64
	err := e.mutate(ctx, "deposit", call, func(ctx context.Context, u *unit) error {
		if u.state.Paused {
			return apperrors.New(apperrors.KindSystemPaused, "deposits are paused")
		}
		p, err := loadActivePortfolio(ctx, u.repos, portfolioID)
		if err != nil {
			return err
		}
		if amount == 0 {
			return apperrors.New(apperrors.KindInvalidAmount, "deposit amount must be positive")
		}

		shares, err := sharesFor(amount, p.TotalValue)
		if err != nil {
			return err
		}

		totalValue, ok1 := mathx.Add(p.TotalValue, amount)
		idleValue, ok2 := mathx.Add(p.IdleValue, amount)
		totalShares, ok3 := mathx.Add(p.TotalShares, shares)
		if !ok1 || !ok2 || !ok3 {
			return apperrors.New(apperrors.KindInvalidAmount, "deposit of %d overflows portfolio %d", amount, portfolioID)
		}

		pos, err := u.repos.positions.Get(ctx, call.Caller, portfolioID)
		switch {
		case isNotFound(err):
			pos = &models.UserPosition{Holder: call.Caller, PortfolioID: portfolioID}
		case err != nil:
			return err
		}

		posShares, ok1 := mathx.Add(pos.Shares, shares)
		posDeposit, ok2 := mathx.Add(pos.InitialDeposit, amount)
		if !ok1 || !ok2 {
			return apperrors.New(apperrors.KindInvalidAmount, "deposit of %d overflows position", amount)
		}
		pos.Shares = posShares
		pos.InitialDeposit = posDeposit
		pos.LastDeposit = amount
		pos.DepositedAt = call.Height

		p.TotalValue = totalValue
		p.IdleValue = idleValue
		p.TotalShares = totalShares

		if err := u.repos.positions.Put(ctx, pos); err != nil {
			return err
		}
		if err := u.repos.portfolios.Put(ctx, p); err != nil {
			return err
		}

		minted = shares
		u.log.WithFields(map[string]interface{}{
			"portfolio_id": portfolioID,
			"amount":       amount,
			"shares":       shares,
		}).Debug("Deposit accepted")
		return nil
	})
	if err != nil {
		return 0, err
	}
	return minted, nil
}

// sharesFor applies the minting rule against the pre-deposit total value
func sharesFor(amount, totalValue uint64) (uint64, error) {
	if totalValue == 0 {
		return amount, nil
	}
	shares, ok := mathx.MulDiv(amount, types.ShareScale, totalValue)
	if !ok {
		return 0, apperrors.New(apperrors.KindInvalidAmount, "deposit of %d mints too many shares", amount)
	}
	return shares, nil
}

// GetPosition returns a holder's position in a portfolio
func (e *Engine) GetPosition(ctx context.Context, holder common.Address, portfolioID uint64) (*models.UserPosition, error) {
	pos, err := e.snapshot().positions.Get(ctx, holder, portfolioID)
	if isNotFound(err) {
		return nil, apperrors.New(apperrors.KindNotFound, "%s holds no position in portfolio %d", holder.Hex(), portfolioID)
	}
	if err != nil {
		return nil, storeError("get position", err)
	}
	return pos, nil
}
