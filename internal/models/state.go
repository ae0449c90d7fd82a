package models

import "github.com/ethereum/go-ethereum/common"

// GlobalState holds the engine's singleton scalars
type GlobalState struct {
	NextPortfolioID uint64
	NextRebalanceID uint64
	FeeRecipient    common.Address
	Paused          bool
	ProtocolFees    uint64 // accrued rebalance fees
}
