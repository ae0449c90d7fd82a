package models

import "github.com/ethereum/go-ethereum/common"

// ApprovedToken is a registry entry for a token that portfolios may hold
type ApprovedToken struct {
	Token          common.Address `json:"token"`
	Symbol         string         `json:"symbol"`
	Decimals       uint8          `json:"decimals"`
	Active         bool           `json:"active"`
	Price          uint64         `json:"price"` // 1e6 scale
	PriceUpdatedAt uint64         `json:"priceUpdatedAt"`
}
