package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// runStoreContract exercises the behavior every Store backend must share
func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := testContext(t)

	t.Run("missing key", func(t *testing.T) {
		_, err := store.Get(ctx, ScalarKey("missing"))
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	})

	t.Run("set get delete", func(t *testing.T) {
		key := PortfolioKey(1)
		require.NoError(t, store.Set(ctx, key, []byte(`{"id":1}`)))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"id":1}`), got)

		require.NoError(t, store.Delete(ctx, key))
		_, err = store.Get(ctx, key)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, store.Delete(ctx, key), "deleting a missing key is not an error")
	})

	t.Run("apply batch", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, TokenKey([20]byte{1}), []byte("stale")))

		err := store.Apply(ctx, []Op{
			{Key: ScalarKey("a"), Value: []byte("1")},
			{Key: ScalarKey("b"), Value: []byte("2")},
			{Key: TokenKey([20]byte{1}), Delete: true},
		})
		require.NoError(t, err)

		a, err := store.Get(ctx, ScalarKey("a"))
		require.NoError(t, err)
		assert.Equal(t, "1", string(a))

		b, err := store.Get(ctx, ScalarKey("b"))
		require.NoError(t, err)
		assert.Equal(t, "2", string(b))

		_, err = store.Get(ctx, TokenKey([20]byte{1}))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty batch", func(t *testing.T) {
		require.NoError(t, store.Apply(ctx, nil))
	})
}
