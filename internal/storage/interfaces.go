package storage

import (
	"context"
	"time"

	"strategy-lab/internal/domain"
)

// CandleSource provides read access to historical daily candles.
type CandleSource interface {
	// GetCandles retrieves candles for symbol within [start, end] (inclusive),
	// ordered by date ASC. A zero start or end leaves that side unbounded.
	GetCandles(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Candle, error)
}

// CandleStore is a CandleSource that can also be written to.
type CandleStore interface {
	CandleSource

	// InsertBulk adds multiple candles. Fails entire batch on duplicate (symbol, date).
	InsertBulk(ctx context.Context, candles []*domain.Candle) error

	// Symbols returns all symbols with at least one candle, sorted ASC.
	Symbols(ctx context.Context) ([]string, error)
}

// BacktestRunStore provides access to backtest_runs storage.
type BacktestRunStore interface {
	// Insert adds a new run with its trades. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.BacktestRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// GetByStrategy retrieves all runs of a strategy, ordered by created_at ASC.
	GetByStrategy(ctx context.Context, strategyID domain.StrategyKind) ([]*domain.BacktestRun, error)
}

// OptimizationRunStore provides access to optimization_runs storage.
type OptimizationRunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.OptimizationRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.OptimizationRun, error)
}

// EquityCurveStore provides access to equity_curves storage.
type EquityCurveStore interface {
	// InsertBulk adds the equity curve of a run. Fails entire batch on duplicate (run_id, date).
	InsertBulk(ctx context.Context, runID string, points []domain.EquityPoint) error

	// GetByRunID retrieves the curve of a run, ordered by date ASC.
	GetByRunID(ctx context.Context, runID string) ([]domain.EquityPoint, error)
}

// StrategySummaryStore provides access to strategy_summaries storage.
type StrategySummaryStore interface {
	// Insert adds a new summary. Returns ErrDuplicateKey if (strategy_id, run_count) exists.
	Insert(ctx context.Context, s *domain.StrategySummary) error

	// GetByStrategy retrieves all summaries of a strategy, ordered by run_count ASC.
	GetByStrategy(ctx context.Context, strategyID domain.StrategyKind) ([]*domain.StrategySummary, error)
}
