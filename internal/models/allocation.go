package models

import "github.com/ethereum/go-ethereum/common"

// Allocation is the target and current share of one token within a portfolio
type Allocation struct {
	PortfolioID   uint64         `json:"portfolioId"`
	Token         common.Address `json:"token"`
	TargetBps     uint64         `json:"targetBps"`
	CurrentBps    uint64         `json:"currentBps"`
	CurrentAmount uint64         `json:"currentAmount"`
	Symbol        string         `json:"symbol"`
}
