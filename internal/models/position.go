package models

import "github.com/ethereum/go-ethereum/common"

// UserPosition records a holder's shares in one portfolio
type UserPosition struct {
	Holder         common.Address `json:"holder"`
	PortfolioID    uint64         `json:"portfolioId"`
	Shares         uint64         `json:"shares"`
	InitialDeposit uint64         `json:"initialDeposit"` // cumulative
	LastDeposit    uint64         `json:"lastDeposit"`
	DepositedAt    uint64         `json:"depositedAt"`
}
