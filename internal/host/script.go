package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/portfolio-rebalancer/internal/service"
	"github.com/portfolio-rebalancer/internal/types"
)

// Step operations
const (
	StepAdvance             = "advance"
	StepApproveToken        = "approve_token"
	StepUpdatePrice         = "update_price"
	StepDeactivateToken     = "deactivate_token"
	StepCreatePortfolio     = "create_portfolio"
	StepDeactivatePortfolio = "deactivate_portfolio"
	StepSetFeeRecipient     = "set_fee_recipient"
	StepSetAllocationTarget = "set_allocation_target"
	StepDeposit             = "deposit"
	StepTogglePause         = "toggle_pause"
	StepExecuteRebalance    = "execute_rebalance"
)

// Step is one scripted engine call
type Step struct {
	Op          string         `json:"op"`
	Caller      common.Address `json:"caller"`
	Token       common.Address `json:"token,omitempty"`
	Symbol      string         `json:"symbol,omitempty"`
	Decimals    uint8          `json:"decimals,omitempty"`
	Price       uint64         `json:"price,omitempty"`
	Recipient   common.Address `json:"recipient,omitempty"`
	Name        string         `json:"name,omitempty"`
	FeeBps      uint64         `json:"feeBps,omitempty"`
	PortfolioID uint64         `json:"portfolioId,omitempty"`
	TargetBps   uint64         `json:"targetBps,omitempty"`
	Amount      uint64         `json:"amount,omitempty"`
	Trades      []types.Trade  `json:"trades,omitempty"`
	Slippage    uint64         `json:"slippageBps,omitempty"`
	Deadline    uint64         `json:"deadline,omitempty"`
	Blocks      uint64         `json:"blocks,omitempty"`
}

// StepResult reports the outcome of one step
type StepResult struct {
	Index  int         `json:"index"`
	Op     string      `json:"op"`
	Height uint64      `json:"height"`
	Value  interface{} `json:"value,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// DecodeScript reads a JSON array of steps
func DecodeScript(r io.Reader) ([]Step, error) {
	var steps []Step
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&steps); err != nil {
		return nil, fmt.Errorf("failed to decode script: %w", err)
	}
	return steps, nil
}

// Run executes steps in order. Engine rejections are recorded in the
// results and do not stop the run. A script containing an unknown op is
// rejected before any step runs.
func (r *Runtime) Run(ctx context.Context, steps []Step) ([]StepResult, error) {
	for i, step := range steps {
		if step.Op != StepAdvance && !knownOps[step.Op] {
			return nil, fmt.Errorf("step %d: unknown op %q", i, step.Op)
		}
	}

	results := make([]StepResult, 0, len(steps))
	for i, step := range steps {
		if step.Op == StepAdvance {
			results = append(results, StepResult{Index: i, Op: step.Op, Height: r.Advance(step.Blocks)})
			continue
		}

		res := StepResult{Index: i, Op: step.Op}
		err := r.Invoke(ctx, step.Caller, func(ctx context.Context, e *service.Engine, call types.Call) error {
			res.Height = call.Height
			value, err := apply(ctx, e, call, step)
			if err == nil {
				res.Value = value
			}
			return err
		})
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

var knownOps = map[string]bool{
	StepApproveToken:        true,
	StepUpdatePrice:         true,
	StepDeactivateToken:     true,
	StepCreatePortfolio:     true,
	StepDeactivatePortfolio: true,
	StepSetFeeRecipient:     true,
	StepSetAllocationTarget: true,
	StepDeposit:             true,
	StepTogglePause:         true,
	StepExecuteRebalance:    true,
}

func apply(ctx context.Context, e *service.Engine, call types.Call, step Step) (interface{}, error) {
	switch step.Op {
	case StepApproveToken:
		return nil, e.ApproveToken(ctx, call, step.Token, step.Symbol, step.Decimals)
	case StepUpdatePrice:
		return nil, e.UpdatePrice(ctx, call, step.Token, step.Price)
	case StepDeactivateToken:
		return nil, e.DeactivateToken(ctx, call, step.Token)
	case StepCreatePortfolio:
		return e.CreatePortfolio(ctx, call, step.Name, step.FeeBps)
	case StepDeactivatePortfolio:
		return nil, e.DeactivatePortfolio(ctx, call, step.PortfolioID)
	case StepSetFeeRecipient:
		return nil, e.SetFeeRecipient(ctx, call, step.Recipient)
	case StepSetAllocationTarget:
		return nil, e.SetAllocationTarget(ctx, call, step.PortfolioID, step.Token, step.TargetBps, step.Symbol)
	case StepDeposit:
		return e.Deposit(ctx, call, step.PortfolioID, step.Amount)
	case StepTogglePause:
		return e.TogglePause(ctx, call)
	case StepExecuteRebalance:
		return e.ExecuteRebalance(ctx, call, step.PortfolioID, step.Trades, step.Slippage, step.Deadline)
	default:
		return nil, fmt.Errorf("unknown op %q", step.Op)
	}
}
