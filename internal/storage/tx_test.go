package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records how often Apply is called
type countingStore struct {
	*MemoryStore
	applies int
}

func (s *countingStore) Apply(ctx context.Context, ops []Op) error {
	s.applies++
	return s.MemoryStore.Apply(ctx, ops)
}

func TestTx_ReadYourWrites(t *testing.T) {
	ctx := testContext(t)
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, ScalarKey("kept"), []byte("old")))
	require.NoError(t, store.Set(ctx, ScalarKey("dropped"), []byte("old")))

	tx := NewTx(store)
	require.NoError(t, tx.Set(ctx, ScalarKey("kept"), []byte("new")))
	require.NoError(t, tx.Delete(ctx, ScalarKey("dropped")))

	got, err := tx.Get(ctx, ScalarKey("kept"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	_, err = tx.Get(ctx, ScalarKey("dropped"))
	assert.ErrorIs(t, err, ErrNotFound)

	raw, err := store.Get(ctx, ScalarKey("kept"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(raw), "store is untouched before commit")
}

func TestTx_CommitAppliesOnce(t *testing.T) {
	ctx := testContext(t)
	store := &countingStore{MemoryStore: NewMemoryStore()}

	tx := NewTx(store)
	require.NoError(t, tx.Set(ctx, ScalarKey("a"), []byte("1")))
	require.NoError(t, tx.Set(ctx, ScalarKey("b"), []byte("2")))
	require.NoError(t, tx.Set(ctx, ScalarKey("a"), []byte("3")))
	assert.Equal(t, 2, tx.Len())

	ops := tx.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, "scalar/a", ops[0].Key.String(), "first-write order")

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, 1, store.applies)

	a, err := store.Get(ctx, ScalarKey("a"))
	require.NoError(t, err)
	assert.Equal(t, "3", string(a))

	assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
	assert.ErrorIs(t, tx.Set(ctx, ScalarKey("c"), nil), ErrTxDone)
	_, err = tx.Get(ctx, ScalarKey("a"))
	assert.ErrorIs(t, err, ErrTxDone)
}

func TestTx_EmptyCommitSkipsStore(t *testing.T) {
	ctx := testContext(t)
	store := &countingStore{MemoryStore: NewMemoryStore()}

	require.NoError(t, NewTx(store).Commit(ctx))
	assert.Zero(t, store.applies)
}

func TestTx_Discard(t *testing.T) {
	ctx := testContext(t)
	store := NewMemoryStore()

	tx := NewTx(store)
	require.NoError(t, tx.Set(ctx, ScalarKey("a"), []byte("1")))
	tx.Discard()

	assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
	assert.Empty(t, store.Keys())
}

func TestTx_StagedValuesAreCopied(t *testing.T) {
	ctx := testContext(t)
	tx := NewTx(NewMemoryStore())

	value := []byte("abc")
	require.NoError(t, tx.Set(ctx, ScalarKey("k"), value))
	value[0] = 'z'

	got, err := tx.Get(ctx, ScalarKey("k"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
