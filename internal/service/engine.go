// Package service implements the portfolio rebalancing engine: token and
// portfolio registries, the allocation ledger, share accounting, fees, and
// validated batch rebalancing with an append-only history.
package service

import (
	"context"
	stderrors "errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/portfolio-rebalancer/internal/config"
	apperrors "github.com/portfolio-rebalancer/internal/errors"
	"github.com/portfolio-rebalancer/internal/logging"
	"github.com/portfolio-rebalancer/internal/models"
	"github.com/portfolio-rebalancer/internal/storage"
	"github.com/portfolio-rebalancer/internal/types"
)

// Params are the protocol parameters of an engine instance
type Params struct {
	Registrar             common.Address // registry owner
	Oracle                common.Address // may push prices alongside the registrar
	FeeRecipient          common.Address // initial fee recipient; zero means the registrar
	BaseFeeBps            uint64
	MaxPerformanceFeeBps  uint64
	RebalanceWindow       uint64
	DeviationThresholdBps uint64
	MaxSlippageBps        uint64
	MaxTrades             int
	MaxTokens             int
	BaseCost              uint64
	CostPerTrade          uint64
}

// DefaultParams returns the protocol constants with the given registrar
func DefaultParams(registrar common.Address) Params {
	return Params{
		Registrar:             registrar,
		Oracle:                registrar,
		FeeRecipient:          registrar,
		BaseFeeBps:            50,
		MaxPerformanceFeeBps:  2000,
		RebalanceWindow:       144,
		DeviationThresholdBps: 100,
		MaxSlippageBps:        500,
		MaxTrades:             20,
		MaxTokens:             20,
		BaseCost:              50_000,
		CostPerTrade:          25_000,
	}
}

// ParamsFromConfig converts loaded engine configuration
func ParamsFromConfig(cfg config.EngineConfig) Params {
	return Params{
		Registrar:             cfg.Registrar,
		Oracle:                cfg.Oracle,
		FeeRecipient:          cfg.FeeRecipient,
		BaseFeeBps:            cfg.BaseFeeBps,
		MaxPerformanceFeeBps:  cfg.MaxPerformanceFeeBps,
		RebalanceWindow:       cfg.RebalanceWindow,
		DeviationThresholdBps: cfg.DeviationThresholdBps,
		MaxSlippageBps:        cfg.MaxSlippageBps,
		MaxTrades:             cfg.MaxTrades,
		MaxTokens:             cfg.MaxTokens,
		BaseCost:              cfg.BaseCost,
		CostPerTrade:          cfg.CostPerTrade,
	}
}

// HistoryMirror receives every committed rebalance record
type HistoryMirror interface {
	Record(ctx context.Context, rec *models.RebalanceRecord) error
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHistoryMirror forwards committed rebalance records to mirror
func WithHistoryMirror(mirror HistoryMirror) Option {
	return func(e *Engine) {
		e.mirror = mirror
	}
}

// Engine is the rebalancing engine. It performs no locking: the host must
// serialize calls (see internal/host).
type Engine struct {
	store  storage.Store
	params Params
	logger *logging.Logger
	mirror HistoryMirror
	fees   *FeeCalculator
}

// NewEngine creates an engine over store
func NewEngine(store storage.Store, params Params, opts ...Option) *Engine {
	if params.FeeRecipient == (common.Address{}) {
		params.FeeRecipient = params.Registrar
	}
	e := &Engine{
		store:  store,
		params: params,
		logger: logging.GetGlobalLogger(),
		fees:   NewFeeCalculator(params.BaseFeeBps),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params returns the engine parameters
func (e *Engine) Params() Params {
	return e.params
}

// Fees returns the fee calculator used by rebalances
func (e *Engine) Fees() *FeeCalculator {
	return e.fees
}

// repositories groups the typed views over one KV (store or transaction)
type repositories struct {
	portfolios  *storage.PortfolioRepository
	allocations *storage.AllocationRepository
	positions   *storage.PositionRepository
	tokens      *storage.TokenRegistryRepository
	rebalances  *storage.RebalanceRepository
	state       *storage.StateRepository
}

func newRepositories(kv storage.KV) *repositories {
	return &repositories{
		portfolios:  storage.NewPortfolioRepository(kv),
		allocations: storage.NewAllocationRepository(kv),
		positions:   storage.NewPositionRepository(kv),
		tokens:      storage.NewTokenRegistryRepository(kv),
		rebalances:  storage.NewRebalanceRepository(kv),
		state:       storage.NewStateRepository(kv),
	}
}

func (e *Engine) defaultState() models.GlobalState {
	return models.GlobalState{
		NextPortfolioID: 1,
		NextRebalanceID: 1,
		FeeRecipient:    e.params.FeeRecipient,
	}
}

// unit is one mutating operation in progress
type unit struct {
	repos *repositories
	state *models.GlobalState
	log   *logging.Logger
}

// mutate runs fn against a staging transaction and commits its writes only
// when fn succeeds. Failed operations leave the store untouched.
func (e *Engine) mutate(ctx context.Context, op string, call types.Call, fn func(ctx context.Context, u *unit) error) error {
	log := e.logger.WithFields(map[string]interface{}{
		"op_id":  uuid.NewString(),
		"op":     op,
		"caller": call.Caller.Hex(),
		"height": call.Height,
	})

	tx := storage.NewTx(e.store)
	defer tx.Discard()

	repos := newRepositories(tx)
	st, err := repos.state.Load(ctx, e.defaultState())
	if err != nil {
		err = storeError("load state", err)
		log.WithError(err).Error("Operation failed")
		return err
	}

	u := &unit{repos: repos, state: st, log: log}
	if err := fn(ctx, u); err != nil {
		err = storeError(op, err)
		if apperrors.IsUserError(err) {
			log.WithError(err).WithField("kind", apperrors.KindOf(err).String()).Warn("Operation rejected")
		} else {
			log.WithError(err).Error("Operation failed")
		}
		return err
	}

	staged := tx.Len()
	if err := tx.Commit(ctx); err != nil {
		err = storeError("commit", err)
		log.WithError(err).Error("Commit failed")
		return err
	}

	log.WithField("writes", staged).Info("Operation committed")
	return nil
}

// snapshot returns repositories reading the store directly
func (e *Engine) snapshot() *repositories {
	return newRepositories(e.store)
}

func (e *Engine) loadState(ctx context.Context) (*models.GlobalState, error) {
	st, err := e.snapshot().state.Load(ctx, e.defaultState())
	if err != nil {
		return nil, storeError("load state", err)
	}
	return st, nil
}

// storeError passes engine errors through and wraps anything else
func storeError(op string, err error) error {
	var catErr *apperrors.CategorizedError
	if stderrors.As(err, &catErr) {
		return err
	}
	return apperrors.NewInternalError(op+" failed", err)
}

func isNotFound(err error) bool {
	return stderrors.Is(err, storage.ErrNotFound)
}
