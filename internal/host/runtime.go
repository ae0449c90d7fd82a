// Package host serializes calls into the engine and supplies the caller
// identity and logical height each call executes at.
package host

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/portfolio-rebalancer/internal/service"
	"github.com/portfolio-rebalancer/internal/types"
)

// Runtime owns the single lock around an engine. Every mutating call runs at
// a fresh height; reads run at the current height and never advance it.
type Runtime struct {
	mu     sync.Mutex
	engine *service.Engine
	height uint64
}

// NewRuntime hosts engine starting at the given height
func NewRuntime(engine *service.Engine, height uint64) *Runtime {
	return &Runtime{engine: engine, height: height}
}

// Height returns the current logical height
func (r *Runtime) Height() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.height
}

// Advance moves the height forward by n and returns the new height
func (r *Runtime) Advance(n uint64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.height += n
	return r.height
}

// Invoke runs a mutating call as caller. The height advances by one before
// the call, whether or not it succeeds.
func (r *Runtime) Invoke(ctx context.Context, caller common.Address, fn func(ctx context.Context, e *service.Engine, call types.Call) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.height++
	return fn(ctx, r.engine, types.NewCall(caller, r.height))
}

// Query runs a read-only call under the lock so it sees a consistent state
func (r *Runtime) Query(ctx context.Context, fn func(ctx context.Context, e *service.Engine) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return fn(ctx, r.engine)
}
