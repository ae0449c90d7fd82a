// Package types provides common type definitions for the portfolio rebalancer.
package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	// PriceScale is the fixed-point scale of oracle prices (1.0 == 1_000_000)
	PriceScale uint64 = 1_000_000
	// ShareScale is the precision factor applied when minting shares
	ShareScale uint64 = 1_000_000
	// BpsDenominator is 100% expressed in basis points
	BpsDenominator uint64 = 10_000
)

// Call carries the trusted caller identity and the logical height at which
// an operation executes. The host supplies both.
type Call struct {
	Caller common.Address
	Height uint64
}

// NewCall creates a call context
func NewCall(caller common.Address, height uint64) Call {
	return Call{Caller: caller, Height: height}
}

// TradeAction represents the direction of a trade instruction
type TradeAction string

const (
	// ActionBuy converts idle portfolio value into the token
	ActionBuy TradeAction = "buy"
	// ActionSell converts token holdings back into idle portfolio value
	ActionSell TradeAction = "sell"
)

// Valid reports whether the action is known
func (a TradeAction) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// Trade is a single rebalance instruction
type Trade struct {
	Token       common.Address `json:"token"`
	Action      TradeAction    `json:"action"`
	Amount      uint64         `json:"amount"`      // token units
	MinReceived uint64         `json:"minReceived"` // normalized value floor
}

// RebalanceResult is returned by a successful rebalance
type RebalanceResult struct {
	RebalanceID    uint64 `json:"rebalanceId"`
	TotalFees      uint64 `json:"totalFees"`
	TradesExecuted int    `json:"tradesExecuted"`
	NewValue       uint64 `json:"newValue"`
}

// FormatScaled renders a fixed-point value with the given scale exponent,
// e.g. FormatScaled(1_500_000, 6) == "1.5".
func FormatScaled(value uint64, exp int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(value), 0).Shift(-exp).String()
}

// FormatBps renders basis points as a percentage string, e.g. 250 -> "2.5%"
func FormatBps(bps uint64) string {
	return FormatScaled(bps, 2) + "%"
}
