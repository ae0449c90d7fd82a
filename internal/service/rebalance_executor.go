package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/portfolio-rebalancer/internal/errors"
	"github.com/portfolio-rebalancer/internal/mathx"
	"github.com/portfolio-rebalancer/internal/models"
	"github.com/portfolio-rebalancer/internal/types"
)

// pricedTrade is a validated trade with its realized value
type pricedTrade struct {
	types.Trade
	realized uint64
}

// ExecuteRebalance validates a batch of trades against a portfolio and, when
// every check passes, applies it together with the rebalance fee and appends
// a history record. Any failure leaves all state untouched.
//
// A portfolio is eligible once more than RebalanceWindow heights have passed
// since its last rebalance, or as soon as any allocation drifts at least
// DeviationThresholdBps from its target.
func (e *Engine) ExecuteRebalance(ctx context.Context, call types.Call, portfolioID uint64, trades []types.Trade, slippageLimitBps uint64, deadline uint64) (*types.RebalanceResult, error) {
	var (
		result *types.RebalanceResult
		record *models.RebalanceRecord
	)

	err := e.mutate(ctx, "execute_rebalance", call, func(ctx context.Context, u *unit) error {
		p, err := loadActivePortfolio(ctx, u.repos, portfolioID)
		if err != nil {
			return err
		}

		allocations, err := u.repos.allocations.List(ctx, portfolioID)
		if err != nil {
			return err
		}
		deviation, err := maxDeviation(ctx, u.repos, p, allocations)
		if err != nil {
			return err
		}

		if !e.eligible(p, call.Height, deviation) {
			return apperrors.New(apperrors.KindRebalanceNotNeeded,
				"portfolio %d deviates %d bps and was rebalanced at height %d", portfolioID, deviation, p.LastRebalance)
		}
		if call.Height > deadline {
			return apperrors.New(apperrors.KindDeadlineExceeded, "height %d is past deadline %d", call.Height, deadline)
		}
		if len(trades) > e.params.MaxTrades {
			return apperrors.New(apperrors.KindInvalidAmount, "batch of %d trades exceeds %d", len(trades), e.params.MaxTrades)
		}

		priced, err := e.priceTrades(ctx, u.repos, portfolioID, trades)
		if err != nil {
			return err
		}
		if err := e.checkSlippage(priced, slippageLimitBps); err != nil {
			return err
		}

		if sum := targetSum(allocations); sum > types.BpsDenominator {
			return apperrors.New(apperrors.KindInvalidPercentage, "targets of portfolio %d sum to %d bps", portfolioID, sum)
		}

		fee := e.fees.RebalanceFee(p.TotalValue, deviation)

		next, err := simulate(ctx, u.repos, p, allocations, priced, fee)
		if err != nil {
			return err
		}

		for _, a := range allocations {
			if err := u.repos.allocations.Put(ctx, a); err != nil {
				return err
			}
		}

		valueBefore := p.TotalValue
		p.TotalValue = next.totalValue
		p.IdleValue = next.idleValue
		p.LastRebalance = call.Height
		if err := u.repos.portfolios.Put(ctx, p); err != nil {
			return err
		}

		record = &models.RebalanceRecord{
			ID:            u.state.NextRebalanceID,
			PortfolioID:   portfolioID,
			Height:        call.Height,
			EstimatedCost: e.estimateCost(len(trades)),
			TokensTraded:  len(trades),
			TotalFees:     fee,
			Initiator:     call.Caller,
			ValueBefore:   valueBefore,
			ValueAfter:    next.totalValue,
			DeviationBps:  deviation,
		}
		if err := u.repos.rebalances.Append(ctx, record); err != nil {
			return err
		}

		u.state.NextRebalanceID++
		u.state.ProtocolFees = mathx.AddSaturating(u.state.ProtocolFees, fee)
		if err := u.repos.state.Save(ctx, u.state); err != nil {
			return err
		}

		result = &types.RebalanceResult{
			RebalanceID:    record.ID,
			TotalFees:      fee,
			TradesExecuted: len(trades),
			NewValue:       next.totalValue,
		}
		u.log.WithFields(map[string]interface{}{
			"portfolio_id": portfolioID,
			"rebalance_id": record.ID,
			"fee":          fee,
			"deviation":    deviation,
		}).Debug("Rebalance applied")
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.mirrorRecord(ctx, record)
	return result, nil
}

func (e *Engine) eligible(p *models.Portfolio, height, deviation uint64) bool {
	if height > p.LastRebalance && height-p.LastRebalance > e.params.RebalanceWindow {
		return true
	}
	return deviation >= e.params.DeviationThresholdBps
}

func (e *Engine) estimateCost(trades int) uint64 {
	perTrade := mathx.MulDivSaturating(e.params.CostPerTrade, uint64(trades), 1) // #nosec G115 - trades is a slice length
	return mathx.AddSaturating(e.params.BaseCost, perTrade)
}

// priceTrades checks each instruction on its own and values it
func (e *Engine) priceTrades(ctx context.Context, repos *repositories, portfolioID uint64, trades []types.Trade) ([]pricedTrade, error) {
	priced := make([]pricedTrade, 0, len(trades))
	for i, t := range trades {
		if t.Amount == 0 {
			return nil, apperrors.New(apperrors.KindInvalidAmount, "trade %d has zero amount", i)
		}
		token, err := tokenTradable(ctx, repos, t.Token)
		if err != nil {
			return nil, err
		}
		if _, err := repos.allocations.Get(ctx, portfolioID, t.Token); err != nil {
			if isNotFound(err) {
				return nil, apperrors.New(apperrors.KindNotFound, "trade %d: no allocation of %s", i, t.Token.Hex())
			}
			return nil, err
		}
		if !t.Action.Valid() {
			return nil, apperrors.New(apperrors.KindInvalidAmount, "trade %d has unknown action %q", i, t.Action)
		}

		realized := valueAt(token, t.Amount)
		if realized < t.MinReceived {
			return nil, apperrors.New(apperrors.KindSlippageExceeded,
				"trade %d realizes %d, below minimum %d", i, realized, t.MinReceived)
		}
		priced = append(priced, pricedTrade{Trade: t, realized: realized})
	}
	return priced, nil
}

// checkSlippage bounds the batch's aggregate slippage by both the caller's
// limit and the protocol ceiling
func (e *Engine) checkSlippage(trades []pricedTrade, limitBps uint64) error {
	var realized, slack uint64
	for _, t := range trades {
		realized = mathx.AddSaturating(realized, t.realized)
		if t.realized > t.MinReceived {
			slack = mathx.AddSaturating(slack, t.realized-t.MinReceived)
		}
	}

	slippage := mathx.MulDivSaturating(slack, types.BpsDenominator, realized)
	limit := mathx.Min(limitBps, e.params.MaxSlippageBps)
	if slippage > limit {
		return apperrors.New(apperrors.KindSlippageExceeded, "batch slippage %d bps exceeds %d bps", slippage, limit)
	}
	return nil
}

type simulation struct {
	idleValue  uint64
	totalValue uint64
}

// simulate applies trades and the fee to in-memory copies of the portfolio's
// allocations and recomputes valuations
func simulate(ctx context.Context, repos *repositories, p *models.Portfolio, allocations []*models.Allocation, trades []pricedTrade, fee uint64) (*simulation, error) {
	byToken := make(map[common.Address]*models.Allocation, len(allocations))
	for _, a := range allocations {
		byToken[a.Token] = a
	}

	idle := p.IdleValue
	for i, t := range trades {
		a := byToken[t.Token]
		switch t.Action {
		case types.ActionBuy:
			if idle < t.realized {
				return nil, apperrors.New(apperrors.KindInsufficientBalance,
					"trade %d needs %d idle value, portfolio has %d", i, t.realized, idle)
			}
			amount, ok := mathx.Add(a.CurrentAmount, t.Amount)
			if !ok {
				return nil, apperrors.New(apperrors.KindInvalidAmount, "trade %d overflows holding", i)
			}
			idle -= t.realized
			a.CurrentAmount = amount
		case types.ActionSell:
			if a.CurrentAmount < t.Amount {
				return nil, apperrors.New(apperrors.KindInsufficientBalance,
					"trade %d sells %d, portfolio holds %d", i, t.Amount, a.CurrentAmount)
			}
			credited, ok := mathx.Add(idle, t.realized)
			if !ok {
				return nil, apperrors.New(apperrors.KindInvalidAmount, "trade %d overflows idle value", i)
			}
			a.CurrentAmount -= t.Amount
			idle = credited
		}
	}

	if idle < fee {
		return nil, apperrors.New(apperrors.KindInsufficientBalance, "fee %d exceeds idle value %d", fee, idle)
	}
	idle -= fee

	holdings := make([]uint64, len(allocations))
	total := idle
	for i, a := range allocations {
		value, err := priceOf(ctx, repos, a.Token, a.CurrentAmount)
		if err != nil {
			return nil, err
		}
		holdings[i] = value
		total = mathx.AddSaturating(total, value)
	}
	for i, a := range allocations {
		a.CurrentBps = liveBps(holdings[i], total)
	}

	return &simulation{idleValue: idle, totalValue: total}, nil
}
