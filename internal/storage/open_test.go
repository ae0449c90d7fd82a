package storage

import (
	"testing"

	"github.com/portfolio-rebalancer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore_Memory(t *testing.T) {
	store, err := OpenStore(testContext(t), &config.Config{Store: config.StoreConfig{Backend: config.BackendMemory}})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
}

func TestOpenStore_Unknown(t *testing.T) {
	_, err := OpenStore(testContext(t), &config.Config{Store: config.StoreConfig{Backend: "etcd"}})
	assert.Error(t, err)
}

func TestOpenHistoryMirror_Disabled(t *testing.T) {
	mirror, closeFn, err := OpenHistoryMirror(testContext(t), &config.ClickHouseConfig{})
	require.NoError(t, err)
	assert.Nil(t, mirror)
	assert.NoError(t, closeFn())
}
