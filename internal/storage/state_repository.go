package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/portfolio-rebalancer/internal/models"
)

// Scalar names
const (
	ScalarNextPortfolioID = "next-portfolio-id"
	ScalarNextRebalanceID = "next-rebalance-id"
	ScalarFeeRecipient    = "fee-recipient"
	ScalarPaused          = "paused"
	ScalarProtocolFees    = "protocol-fees"
)

// StateRepository reads and writes the global scalar values
type StateRepository struct {
	kv KV
}

// NewStateRepository creates a new state repository
func NewStateRepository(kv KV) *StateRepository {
	return &StateRepository{kv: kv}
}

// Load reads the global state. Scalars that were never written take their
// value from defaults, so a fresh store behaves as freshly initialized.
func (r *StateRepository) Load(ctx context.Context, defaults models.GlobalState) (*models.GlobalState, error) {
	st := defaults

	if err := r.loadUint(ctx, ScalarNextPortfolioID, &st.NextPortfolioID); err != nil {
		return nil, err
	}
	if err := r.loadUint(ctx, ScalarNextRebalanceID, &st.NextRebalanceID); err != nil {
		return nil, err
	}
	if err := r.loadUint(ctx, ScalarProtocolFees, &st.ProtocolFees); err != nil {
		return nil, err
	}

	raw, err := r.get(ctx, ScalarFeeRecipient)
	if err != nil {
		return nil, err
	}
	if raw != "" {
		st.FeeRecipient = common.HexToAddress(raw)
	}

	raw, err = r.get(ctx, ScalarPaused)
	if err != nil {
		return nil, err
	}
	if raw != "" {
		paused, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode scalar %s: %w", ScalarPaused, err)
		}
		st.Paused = paused
	}

	return &st, nil
}

// Save writes every scalar
func (r *StateRepository) Save(ctx context.Context, st *models.GlobalState) error {
	values := map[string]string{
		ScalarNextPortfolioID: strconv.FormatUint(st.NextPortfolioID, 10),
		ScalarNextRebalanceID: strconv.FormatUint(st.NextRebalanceID, 10),
		ScalarProtocolFees:    strconv.FormatUint(st.ProtocolFees, 10),
		ScalarFeeRecipient:    st.FeeRecipient.Hex(),
		ScalarPaused:          strconv.FormatBool(st.Paused),
	}
	for _, name := range []string{ScalarNextPortfolioID, ScalarNextRebalanceID, ScalarProtocolFees, ScalarFeeRecipient, ScalarPaused} {
		if err := r.kv.Set(ctx, ScalarKey(name), []byte(values[name])); err != nil {
			return err
		}
	}
	return nil
}

func (r *StateRepository) get(ctx context.Context, name string) (string, error) {
	raw, err := r.kv.Get(ctx, ScalarKey(name))
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (r *StateRepository) loadUint(ctx context.Context, name string, dst *uint64) error {
	raw, err := r.get(ctx, name)
	if err != nil || raw == "" {
		return err
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("failed to decode scalar %s: %w", name, err)
	}
	*dst = v
	return nil
}
