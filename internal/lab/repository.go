package lab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// Repository persists computed results. Service treats it as fire-and-forget:
// errors are logged and counted, never returned to the caller.
type Repository interface {
	SaveBacktest(ctx context.Context, result *domain.BacktestResult) error
	SaveOptimization(ctx context.Context, run *domain.OptimizationRun) error
}

// StoreRepository writes results to the storage layer.
// Any store may be nil; its part of the result is then not persisted.
type StoreRepository struct {
	runs          storage.BacktestRunStore
	equity        storage.EquityCurveStore
	optimizations storage.OptimizationRunStore
	now           func() time.Time
}

// NewStoreRepository creates a repository over the given stores.
func NewStoreRepository(
	runs storage.BacktestRunStore,
	equity storage.EquityCurveStore,
	optimizations storage.OptimizationRunStore,
) *StoreRepository {
	return &StoreRepository{
		runs:          runs,
		equity:        equity,
		optimizations: optimizations,
		now:           time.Now,
	}
}

// SaveBacktest stores the run with its trades, then its equity curve.
// Run ids are deterministic, so a duplicate means the same run is already
// stored and is not an error.
func (r *StoreRepository) SaveBacktest(ctx context.Context, result *domain.BacktestResult) error {
	if result == nil || result.RunID == "" {
		return storage.ErrInvalidInput
	}

	if r.runs != nil {
		run := domain.NewBacktestRun(result, r.now().UTC())
		if err := r.runs.Insert(ctx, run); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("save backtest run %s: %w", result.RunID, err)
		}
	}

	if r.equity != nil && len(result.EquityCurve) > 0 {
		if err := r.equity.InsertBulk(ctx, result.RunID, result.EquityCurve); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("save equity curve %s: %w", result.RunID, err)
		}
	}
	return nil
}

// SaveOptimization stores an optimization run.
func (r *StoreRepository) SaveOptimization(ctx context.Context, run *domain.OptimizationRun) error {
	if r.optimizations == nil {
		return nil
	}
	if err := r.optimizations.Insert(ctx, run); err != nil {
		return fmt.Errorf("save optimization run %s: %w", run.RunID, err)
	}
	return nil
}

var _ Repository = (*StoreRepository)(nil)
