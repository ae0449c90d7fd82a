package service

import (
	"github.com/portfolio-rebalancer/internal/mathx"
	"github.com/portfolio-rebalancer/internal/types"
)

// deviationFeeDivisor scales the deviation term: one bps of deviation costs
// a tenth of a bps of value
const deviationFeeDivisor uint64 = 100_000

// FeeCalculator computes rebalance fees
type FeeCalculator struct {
	baseFeeBps uint64
}

// NewFeeCalculator creates a calculator charging baseFeeBps on every rebalance
func NewFeeCalculator(baseFeeBps uint64) *FeeCalculator {
	return &FeeCalculator{baseFeeBps: baseFeeBps}
}

// RebalanceFee returns value*base/10000 + value*deviation/100000. Each term
// truncates on its own and the total saturates at the 64-bit maximum.
func (f *FeeCalculator) RebalanceFee(value, deviationBps uint64) uint64 {
	base := mathx.MulDivSaturating(value, f.baseFeeBps, types.BpsDenominator)
	drift := mathx.MulDivSaturating(value, deviationBps, deviationFeeDivisor)
	return mathx.AddSaturating(base, drift)
}
