package storage

import (
	"context"
	"errors"
)

// ErrTxDone is returned when a committed or discarded Tx is used again
var ErrTxDone = errors.New("storage: transaction already finished")

// Tx stages writes in memory and applies them to the underlying store in one
// Apply call. Reads see the transaction's own pending writes first.
type Tx struct {
	store   Store
	ops     []Op
	pending map[string]int // encoded key -> index in ops
	done    bool
}

// NewTx starts a write-staging transaction over store
func NewTx(store Store) *Tx {
	return &Tx{
		store:   store,
		pending: make(map[string]int),
	}
}

// Get returns the staged value for key, falling back to the store
func (t *Tx) Get(ctx context.Context, key Key) ([]byte, error) {
	if t.done {
		return nil, ErrTxDone
	}
	if idx, ok := t.pending[key.String()]; ok {
		op := t.ops[idx]
		if op.Delete {
			return nil, ErrNotFound
		}
		return cloneBytes(op.Value), nil
	}
	return t.store.Get(ctx, key)
}

// Set stages a write
func (t *Tx) Set(ctx context.Context, key Key, value []byte) error {
	return t.stage(Op{Key: key, Value: cloneBytes(value)})
}

// Delete stages a removal
func (t *Tx) Delete(ctx context.Context, key Key) error {
	return t.stage(Op{Key: key, Delete: true})
}

func (t *Tx) stage(op Op) error {
	if t.done {
		return ErrTxDone
	}
	k := op.Key.String()
	if idx, ok := t.pending[k]; ok {
		t.ops[idx] = op
		return nil
	}
	t.pending[k] = len(t.ops)
	t.ops = append(t.ops, op)
	return nil
}

// Len returns the number of distinct keys staged
func (t *Tx) Len() int {
	return len(t.ops)
}

// Ops returns the staged operations in first-write order
func (t *Tx) Ops() []Op {
	out := make([]Op, len(t.ops))
	copy(out, t.ops)
	return out
}

// Commit applies every staged write atomically. An empty transaction commits
// without touching the store.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if len(t.ops) == 0 {
		return nil
	}
	return t.store.Apply(ctx, t.ops)
}

// Discard drops all staged writes
func (t *Tx) Discard() {
	t.done = true
	t.ops = nil
	t.pending = nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
