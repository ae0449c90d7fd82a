package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/portfolio-rebalancer/internal/errors"
	"github.com/portfolio-rebalancer/internal/models"
	"github.com/portfolio-rebalancer/internal/types"
)

// CreatePortfolio registers a new portfolio owned by the caller and returns
// its id. Ids start at 1.
func (e *Engine) CreatePortfolio(ctx context.Context, call types.Call, name string, performanceFeeBps uint64) (uint64, error) {
	var id uint64
	err := e.mutate(ctx, "create_portfolio", call, func(ctx context.Context, u *unit) error {
		if u.state.Paused {
			return apperrors.New(apperrors.KindSystemPaused, "portfolio creation is paused")
		}
		if performanceFeeBps > e.params.MaxPerformanceFeeBps {
			return apperrors.New(apperrors.KindInvalidPercentage,
				"performance fee %d bps exceeds %d bps", performanceFeeBps, e.params.MaxPerformanceFeeBps)
		}

		id = u.state.NextPortfolioID
		if err := u.repos.portfolios.Put(ctx, &models.Portfolio{
			ID:                id,
			Owner:             call.Caller,
			Name:              name,
			LastRebalance:     call.Height,
			Active:            true,
			PerformanceFeeBps: performanceFeeBps,
			CreatedAt:         call.Height,
		}); err != nil {
			return err
		}

		u.state.NextPortfolioID++
		u.log.WithField("portfolio_id", id).Debug("Portfolio created")
		return u.repos.state.Save(ctx, u.state)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// TogglePause flips the emergency pause flag and returns the new value
func (e *Engine) TogglePause(ctx context.Context, call types.Call) (bool, error) {
	var paused bool
	err := e.mutate(ctx, "toggle_pause", call, func(ctx context.Context, u *unit) error {
		if call.Caller != e.params.Registrar {
			return apperrors.New(apperrors.KindOwnerOnly, "only the registrar may toggle the pause")
		}
		u.state.Paused = !u.state.Paused
		paused = u.state.Paused
		return u.repos.state.Save(ctx, u.state)
	})
	if err != nil {
		return false, err
	}
	return paused, nil
}

// DeactivatePortfolio retires a portfolio. The record is kept; deposits and
// rebalances are refused from then on. Deactivating twice is a no-op.
func (e *Engine) DeactivatePortfolio(ctx context.Context, call types.Call, portfolioID uint64) error {
	return e.mutate(ctx, "deactivate_portfolio", call, func(ctx context.Context, u *unit) error {
		p, err := loadPortfolio(ctx, u.repos, portfolioID)
		if err != nil {
			return err
		}
		if !p.IsOwner(call.Caller) {
			return apperrors.New(apperrors.KindUnauthorized, "caller does not own portfolio %d", portfolioID)
		}
		if !p.Active {
			return nil
		}
		p.Active = false
		return u.repos.portfolios.Put(ctx, p)
	})
}

// SetFeeRecipient changes the identity credited with protocol fees
func (e *Engine) SetFeeRecipient(ctx context.Context, call types.Call, recipient common.Address) error {
	return e.mutate(ctx, "set_fee_recipient", call, func(ctx context.Context, u *unit) error {
		if call.Caller != e.params.Registrar {
			return apperrors.New(apperrors.KindOwnerOnly, "only the registrar may set the fee recipient")
		}
		u.state.FeeRecipient = recipient
		return u.repos.state.Save(ctx, u.state)
	})
}

// GetPortfolio returns a portfolio, active or not
func (e *Engine) GetPortfolio(ctx context.Context, portfolioID uint64) (*models.Portfolio, error) {
	p, err := loadPortfolio(ctx, e.snapshot(), portfolioID)
	if err != nil {
		return nil, storeError("get portfolio", err)
	}
	return p, nil
}

// IsPaused reports the emergency pause flag
func (e *Engine) IsPaused(ctx context.Context) (bool, error) {
	st, err := e.loadState(ctx)
	if err != nil {
		return false, err
	}
	return st.Paused, nil
}

// FeeRecipient returns the identity credited with protocol fees
func (e *Engine) FeeRecipient(ctx context.Context) (common.Address, error) {
	st, err := e.loadState(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return st.FeeRecipient, nil
}

// ProtocolFees returns the fees accrued by all rebalances
func (e *Engine) ProtocolFees(ctx context.Context) (uint64, error) {
	st, err := e.loadState(ctx)
	if err != nil {
		return 0, err
	}
	return st.ProtocolFees, nil
}

func loadPortfolio(ctx context.Context, repos *repositories, portfolioID uint64) (*models.Portfolio, error) {
	p, err := repos.portfolios.Get(ctx, portfolioID)
	if isNotFound(err) {
		return nil, apperrors.New(apperrors.KindPortfolioNotFound, "portfolio %d does not exist", portfolioID)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// loadActivePortfolio treats a deactivated portfolio as missing
func loadActivePortfolio(ctx context.Context, repos *repositories, portfolioID uint64) (*models.Portfolio, error) {
	p, err := loadPortfolio(ctx, repos, portfolioID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, apperrors.New(apperrors.KindPortfolioNotFound, "portfolio %d is inactive", portfolioID)
	}
	return p, nil
}
