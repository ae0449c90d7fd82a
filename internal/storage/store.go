// Package storage provides the key-value persistence seam of the engine, its
// backends (memory, Redis, Postgres), the typed repositories layered on top,
// and the ClickHouse history mirror.
package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotFound is returned by Get when a key holds no value
var ErrNotFound = errors.New("storage: key not found")

// Record tables
const (
	TablePortfolio  = "portfolio"
	TableAllocation = "allocation"
	TablePosition   = "position"
	TableToken      = "token"
	TableRebalance  = "rebalance"
	TableScalar     = "scalar"
	TableIndex      = "index"
)

// Key is a composite record key: a table name plus ordered tuple parts
type Key struct {
	Table string
	Parts []string
}

// String encodes the key as "table/part/part"
func (k Key) String() string {
	if len(k.Parts) == 0 {
		return k.Table
	}
	return k.Table + "/" + strings.Join(k.Parts, "/")
}

// KV is the minimal read/write surface shared by stores and transactions
type KV interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
}

// Op is a single staged write. Delete ops ignore Value.
type Op struct {
	Key    Key
	Value  []byte
	Delete bool
}

// Store is a key-value backend. Apply must make all ops visible atomically
// or none of them.
type Store interface {
	KV
	Apply(ctx context.Context, ops []Op) error
	Close() error
}

func addrPart(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func idPart(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// PortfolioKey addresses a Portfolio record
func PortfolioKey(id uint64) Key {
	return Key{Table: TablePortfolio, Parts: []string{idPart(id)}}
}

// AllocationKey addresses an Allocation record
func AllocationKey(portfolioID uint64, token common.Address) Key {
	return Key{Table: TableAllocation, Parts: []string{idPart(portfolioID), addrPart(token)}}
}

// PositionKey addresses a UserPosition record
func PositionKey(holder common.Address, portfolioID uint64) Key {
	return Key{Table: TablePosition, Parts: []string{addrPart(holder), idPart(portfolioID)}}
}

// TokenKey addresses an ApprovedToken record
func TokenKey(token common.Address) Key {
	return Key{Table: TableToken, Parts: []string{addrPart(token)}}
}

// RebalanceKey addresses a RebalanceRecord
func RebalanceKey(portfolioID, rebalanceID uint64) Key {
	return Key{Table: TableRebalance, Parts: []string{idPart(portfolioID), idPart(rebalanceID)}}
}

// ScalarKey addresses a global scalar value
func ScalarKey(name string) Key {
	return Key{Table: TableScalar, Parts: []string{name}}
}

// AllocationIndexKey lists the tokens allocated in a portfolio
func AllocationIndexKey(portfolioID uint64) Key {
	return Key{Table: TableIndex, Parts: []string{TableAllocation, idPart(portfolioID)}}
}

// RebalanceIndexKey lists the rebalance ids of a portfolio
func RebalanceIndexKey(portfolioID uint64) Key {
	return Key{Table: TableIndex, Parts: []string{TableRebalance, idPart(portfolioID)}}
}
