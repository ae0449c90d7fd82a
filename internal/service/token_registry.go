package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/portfolio-rebalancer/internal/errors"
	"github.com/portfolio-rebalancer/internal/mathx"
	"github.com/portfolio-rebalancer/internal/models"
	"github.com/portfolio-rebalancer/internal/types"
)

// ApproveToken adds or refreshes a token in the registry. Re-approving a
// token reactivates it and resets its price to 1.0.
func (e *Engine) ApproveToken(ctx context.Context, call types.Call, token common.Address, symbol string, decimals uint8) error {
	return e.mutate(ctx, "approve_token", call, func(ctx context.Context, u *unit) error {
		if call.Caller != e.params.Registrar {
			return apperrors.New(apperrors.KindOwnerOnly, "only the registrar may approve tokens")
		}

		u.log.WithFields(map[string]interface{}{
			"token":  token.Hex(),
			"symbol": symbol,
		}).Debug("Approving token")

		return u.repos.tokens.Put(ctx, &models.ApprovedToken{
			Token:          token,
			Symbol:         symbol,
			Decimals:       decimals,
			Active:         true,
			Price:          types.PriceScale,
			PriceUpdatedAt: call.Height,
		})
	})
}

// UpdatePrice stores a new oracle price for an approved token
func (e *Engine) UpdatePrice(ctx context.Context, call types.Call, token common.Address, price uint64) error {
	return e.mutate(ctx, "update_price", call, func(ctx context.Context, u *unit) error {
		if call.Caller != e.params.Registrar && call.Caller != e.params.Oracle {
			return apperrors.New(apperrors.KindUnauthorized, "only the registrar or oracle may update prices")
		}
		if price == 0 {
			return apperrors.New(apperrors.KindInvalidAmount, "price must be positive")
		}

		t, err := u.repos.tokens.Get(ctx, token)
		if isNotFound(err) {
			return apperrors.New(apperrors.KindInvalidToken, "token %s is not registered", token.Hex())
		}
		if err != nil {
			return err
		}

		t.Price = price
		t.PriceUpdatedAt = call.Height
		return u.repos.tokens.Put(ctx, t)
	})
}

// DeactivateToken blocks new targets and trades for a token. Existing
// holdings keep their valuation.
func (e *Engine) DeactivateToken(ctx context.Context, call types.Call, token common.Address) error {
	return e.mutate(ctx, "deactivate_token", call, func(ctx context.Context, u *unit) error {
		if call.Caller != e.params.Registrar {
			return apperrors.New(apperrors.KindOwnerOnly, "only the registrar may deactivate tokens")
		}

		t, err := u.repos.tokens.Get(ctx, token)
		if isNotFound(err) {
			return apperrors.New(apperrors.KindNotFound, "token %s is not registered", token.Hex())
		}
		if err != nil {
			return err
		}

		t.Active = false
		return u.repos.tokens.Put(ctx, t)
	})
}

// GetToken returns a registry entry
func (e *Engine) GetToken(ctx context.Context, token common.Address) (*models.ApprovedToken, error) {
	t, err := e.snapshot().tokens.Get(ctx, token)
	if isNotFound(err) {
		return nil, apperrors.New(apperrors.KindNotFound, "token %s is not registered", token.Hex())
	}
	if err != nil {
		return nil, storeError("get token", err)
	}
	return t, nil
}

// PriceOf values amount of token at its last known price. Unknown tokens are
// worth zero.
func (e *Engine) PriceOf(ctx context.Context, token common.Address, amount uint64) (uint64, error) {
	value, err := priceOf(ctx, e.snapshot(), token, amount)
	if err != nil {
		return 0, storeError("price of", err)
	}
	return value, nil
}

func priceOf(ctx context.Context, repos *repositories, token common.Address, amount uint64) (uint64, error) {
	t, err := repos.tokens.Get(ctx, token)
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return valueAt(t, amount), nil
}

// valueAt is amount*price/1e6, saturating when the result exceeds 64 bits
func valueAt(t *models.ApprovedToken, amount uint64) uint64 {
	return mathx.MulDivSaturating(amount, t.Price, types.PriceScale)
}

// tokenTradable loads a token and requires it to be approved and active
func tokenTradable(ctx context.Context, repos *repositories, token common.Address) (*models.ApprovedToken, error) {
	t, err := repos.tokens.Get(ctx, token)
	if isNotFound(err) {
		return nil, apperrors.New(apperrors.KindInvalidToken, "token %s is not approved", token.Hex())
	}
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, apperrors.New(apperrors.KindInvalidToken, "token %s is inactive", token.Hex())
	}
	return t, nil
}

