// Package models provides the persisted records of the rebalancing engine.
package models

import "github.com/ethereum/go-ethereum/common"

// Portfolio represents a pooled, multi-asset portfolio
type Portfolio struct {
	ID                uint64         `json:"id"`
	Owner             common.Address `json:"owner"`
	Name              string         `json:"name"`
	TotalValue        uint64         `json:"totalValue"`
	IdleValue         uint64         `json:"idleValue"` // value not held in any token
	TotalShares       uint64         `json:"totalShares"`
	LastRebalance     uint64         `json:"lastRebalance"`
	Active            bool           `json:"active"`
	PerformanceFeeBps uint64         `json:"performanceFeeBps"`
	CreatedAt         uint64         `json:"createdAt"`
}

// IsOwner reports whether id administers the portfolio
func (p *Portfolio) IsOwner(id common.Address) bool {
	return p.Owner == id
}
