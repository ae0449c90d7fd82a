package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// getJSON loads and decodes the record stored under key into a new T
func getJSON[T any](ctx context.Context, kv KV, key Key) (*T, error) {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return &v, nil
}

// putJSON encodes v and writes it under key
func putJSON(ctx context.Context, kv KV, key Key, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, raw)
}
