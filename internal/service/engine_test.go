package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/portfolio-rebalancer/internal/errors"
	"github.com/portfolio-rebalancer/internal/logging"
	"github.com/portfolio-rebalancer/internal/storage"
	"github.com/portfolio-rebalancer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	registrar = common.HexToAddress("0x1000000000000000000000000000000000000001")
	oracle    = common.HexToAddress("0x2000000000000000000000000000000000000002")
	owner     = common.HexToAddress("0x3000000000000000000000000000000000000003")
	alice     = common.HexToAddress("0x4000000000000000000000000000000000000004")
	bob       = common.HexToAddress("0x5000000000000000000000000000000000000005")
	tokenA    = common.HexToAddress("0xa00000000000000000000000000000000000000a")
	tokenB    = common.HexToAddress("0xb00000000000000000000000000000000000000b")
)

// fixture hosts an engine over a memory store with a manually driven height
type fixture struct {
	ctx    context.Context
	store  *storage.MemoryStore
	engine *Engine
	height uint64
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	params := DefaultParams(registrar)
	params.Oracle = oracle

	store := storage.NewMemoryStore()
	opts = append([]Option{WithLogger(logging.NewLoggerWithOutput(logging.LevelError, logging.FormatJSON, io.Discard))}, opts...)
	return &fixture{
		ctx:    context.Background(),
		store:  store,
		engine: NewEngine(store, params, opts...),
	}
}

// call returns a call at the current height
func (f *fixture) call(caller common.Address) types.Call {
	return types.NewCall(caller, f.height)
}

func (f *fixture) advance(n uint64) {
	f.height += n
}

func (f *fixture) approve(t *testing.T, token common.Address, symbol string) {
	t.Helper()
	require.NoError(t, f.engine.ApproveToken(f.ctx, f.call(registrar), token, symbol, 18))
}

func (f *fixture) createPortfolio(t *testing.T) uint64 {
	t.Helper()
	id, err := f.engine.CreatePortfolio(f.ctx, f.call(owner), "growth", 100)
	require.NoError(t, err)
	return id
}

// fundedPortfolio creates a portfolio targeting 50% tokenA and 50% tokenB
// with 1000 units of idle value
func (f *fixture) fundedPortfolio(t *testing.T) uint64 {
	t.Helper()
	f.approve(t, tokenA, "AAA")
	f.approve(t, tokenB, "BBB")
	pid := f.createPortfolio(t)
	require.NoError(t, f.engine.SetAllocationTarget(f.ctx, f.call(owner), pid, tokenA, 5000, "AAA"))
	require.NoError(t, f.engine.SetAllocationTarget(f.ctx, f.call(owner), pid, tokenB, 5000, "BBB"))
	_, err := f.engine.Deposit(f.ctx, f.call(alice), pid, 1000)
	require.NoError(t, err)
	return pid
}

func requireKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperrors.KindOf(err), "unexpected error: %v", err)
}

func TestNewEngine_DefaultsFeeRecipientToRegistrar(t *testing.T) {
	params := DefaultParams(registrar)
	params.FeeRecipient = common.Address{}

	e := NewEngine(storage.NewMemoryStore(), params)
	assert.Equal(t, registrar, e.Params().FeeRecipient)

	recipient, err := e.FeeRecipient(context.Background())
	require.NoError(t, err)
	assert.Equal(t, registrar, recipient)
}

func TestEngine_FreshStoreState(t *testing.T) {
	f := newFixture(t)

	paused, err := f.engine.IsPaused(f.ctx)
	require.NoError(t, err)
	assert.False(t, paused)

	fees, err := f.engine.ProtocolFees(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, fees)

	assert.Empty(t, f.store.Keys())
}

func TestEngine_FailedOperationWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.approve(t, tokenA, "AAA")
	before := f.store.Keys()

	_, err := f.engine.CreatePortfolio(f.ctx, f.call(owner), "too expensive", 2001)
	requireKind(t, err, apperrors.KindInvalidPercentage)

	assert.Equal(t, before, f.store.Keys())
}

func TestEngine_LogsOperationOutcome(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, WithLogger(logging.NewLoggerWithOutput(logging.LevelInfo, logging.FormatJSON, &buf)))

	_, err := f.engine.TogglePause(f.ctx, f.call(alice))
	requireKind(t, err, apperrors.KindOwnerOnly)
	_, err = f.engine.TogglePause(f.ctx, f.call(registrar))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var rejected, committed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rejected))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &committed))

	assert.Equal(t, "Operation rejected", rejected["message"])
	assert.Equal(t, "OWNER_ONLY", rejected["kind"])
	assert.Equal(t, "toggle_pause", rejected["op"])
	assert.NotEmpty(t, rejected["op_id"])

	assert.Equal(t, "Operation committed", committed["message"])
	assert.NotEqual(t, rejected["op_id"], committed["op_id"])
}

type failingStore struct {
	*storage.MemoryStore
	err error
}

func (s *failingStore) Apply(ctx context.Context, ops []storage.Op) error {
	return s.err
}

func TestEngine_CommitFailureIsSystemError(t *testing.T) {
	store := &failingStore{
		MemoryStore: storage.NewMemoryStore(),
		err:         apperrors.NewDatabaseError("apply", assert.AnError),
	}
	e := NewEngine(store, DefaultParams(registrar),
		WithLogger(logging.NewLoggerWithOutput(logging.LevelError, logging.FormatJSON, io.Discard)))

	err := e.ApproveToken(context.Background(), types.NewCall(registrar, 1), tokenA, "AAA", 18)
	require.Error(t, err)
	assert.True(t, apperrors.IsSystemError(err))
	assert.ErrorIs(t, err, assert.AnError)

	_, err = e.GetToken(context.Background(), tokenA)
	requireKind(t, err, apperrors.KindNotFound)
}
