package main

import (
	"context"
	"testing"

	"github.com/portfolio-rebalancer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect_ReturnsErrors(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Store: config.StoreConfig{Backend: config.BackendMemory}}

	err := inspect(ctx, cfg, 1, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to inspect portfolio")

	err = inspect(ctx, &config.Config{Store: config.StoreConfig{Backend: "etcd"}}, 1, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open store")
}
