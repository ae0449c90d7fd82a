package models

import "github.com/ethereum/go-ethereum/common"

// RebalanceRecord is an immutable history entry written by each rebalance
type RebalanceRecord struct {
	ID            uint64         `json:"id"`
	PortfolioID   uint64         `json:"portfolioId"`
	Height        uint64         `json:"height"`
	EstimatedCost uint64         `json:"estimatedCost"`
	TokensTraded  int            `json:"tokensTraded"`
	TotalFees     uint64         `json:"totalFees"`
	Initiator     common.Address `json:"initiator"`
	ValueBefore   uint64         `json:"valueBefore"`
	ValueAfter    uint64         `json:"valueAfter"`
	DeviationBps  uint64         `json:"deviationBps"`
}
