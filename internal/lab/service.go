// Package lab is the entry point for backtests and portfolio optimization.
// It resolves strategy parameters, loads candles, runs the engines, and
// hands results to the commentary and persistence collaborators.
package lab

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/commentary"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/metrics"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/optimizer"
	"strategy-lab/internal/params"
	"strategy-lab/internal/storage"
)

// ErrNoCandleSource is returned by operations that load candles when the
// service has no candle source configured.
var ErrNoCandleSource = errors.New("no candle source configured")

// Options for creating a Service. Only what an operation needs must be set:
// RunBacktest works with no collaborators at all.
type Options struct {
	Candles     storage.CandleSource
	Params      params.Store
	Repository  Repository
	Runs        storage.BacktestRunStore
	Summaries   storage.StrategySummaryStore
	Commentator commentary.Commentator

	// Concurrency bounds parallel backtests in a sweep.
	Concurrency int
	// Workers is the optimizer worker count when a call does not set one.
	Workers int

	Logger *log.Logger
	Now    func() time.Time
}

// Service runs backtests and optimizations.
type Service struct {
	candles     storage.CandleSource
	params      params.Store
	repo        Repository
	runs        storage.BacktestRunStore
	summaries   storage.StrategySummaryStore
	commentator commentary.Commentator
	concurrency int
	workers     int
	logger      *log.Logger
	now         func() time.Time
}

// New creates a new Service.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = backtest.DefaultConcurrency
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Service{
		candles:     opts.Candles,
		params:      opts.Params,
		repo:        opts.Repository,
		runs:        opts.Runs,
		summaries:   opts.Summaries,
		commentator: opts.Commentator,
		concurrency: concurrency,
		workers:     workers,
		logger:      logger,
		now:         now,
	}
}

// RunBacktest simulates strategyID over candles. overrides are layered on
// top of the strategy defaults and the stored parameter set.
func (s *Service) RunBacktest(
	ctx context.Context,
	strategyID domain.StrategyKind,
	symbol string,
	candles []*domain.Candle,
	overrides domain.Params,
	initialCapital float64,
) (*domain.BacktestResult, error) {
	return s.StreamBacktest(ctx, strategyID, symbol, candles, overrides, initialCapital, nil)
}

// StreamBacktest is RunBacktest with an observer called after every candle.
func (s *Service) StreamBacktest(
	ctx context.Context,
	strategyID domain.StrategyKind,
	symbol string,
	candles []*domain.Candle,
	overrides domain.Params,
	initialCapital float64,
	onStep backtest.StepFunc,
) (*domain.BacktestResult, error) {
	p, err := params.Resolve(ctx, s.params, strategyID, overrides)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := backtest.Run(ctx, backtest.Job{
		Kind:           strategyID,
		Symbol:         symbol,
		Candles:        candles,
		Params:         p,
		InitialCapital: initialCapital,
		OnStep:         onStep,
	})
	if err != nil {
		observability.RecordBacktest(string(strategyID), observability.StatusError, time.Since(start).Seconds())
		return nil, err
	}
	s.recordBacktest(result, time.Since(start))

	s.annotateBacktest(ctx, result)
	s.persistBacktest(ctx, result)
	return result, nil
}

// BacktestSymbol loads candles for symbol in [start, end] and backtests them.
func (s *Service) BacktestSymbol(
	ctx context.Context,
	strategyID domain.StrategyKind,
	symbol string,
	start, end time.Time,
	overrides domain.Params,
	initialCapital float64,
) (*domain.BacktestResult, error) {
	candles, err := s.LoadCandles(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	return s.RunBacktest(ctx, strategyID, symbol, candles, overrides, initialCapital)
}

// GetBacktest returns a stored run.
func (s *Service) GetBacktest(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	if s.runs == nil {
		return nil, storage.ErrNotFound
	}
	return s.runs.GetByID(ctx, runID)
}

// Summary summarizes the stored runs of strategyID without persisting it.
func (s *Service) Summary(ctx context.Context, strategyID domain.StrategyKind) (*domain.StrategySummary, error) {
	if s.runs == nil {
		return nil, metrics.ErrNoRuns
	}
	return s.aggregator().ComputeSummary(ctx, strategyID)
}

// Optimize searches for the allocation over returns (ticker to aligned
// daily return series) that best meets objective.
func (s *Service) Optimize(
	ctx context.Context,
	returns map[string][]float64,
	objective domain.Objective,
	opts optimizer.Options,
) (*domain.OptimizationResult, error) {
	start := time.Now()
	result, err := optimizer.New(s.optimizerOptions(opts)).Optimize(ctx, returns, objective)
	s.recordOptimization(objective, result, err, time.Since(start))

	run := &domain.OptimizationRun{
		RunID:     idhash.NewOptimizationRunID(),
		Tickers:   sortedTickers(returns),
		Objective: objective,
		CreatedAt: s.now().UTC(),
	}
	if err != nil {
		msg := err.Error()
		run.Error = &msg
		s.persistOptimization(ctx, run)
		return nil, err
	}

	s.annotateOptimization(ctx, result)
	run.Result = result
	s.persistOptimization(ctx, run)
	return result, nil
}

// EfficientFrontier traces the frontier over returns, sorted by volatility.
func (s *Service) EfficientFrontier(
	ctx context.Context,
	returns map[string][]float64,
	opts optimizer.Options,
) ([]domain.EfficientFrontierPoint, error) {
	start := time.Now()
	points, err := optimizer.New(s.optimizerOptions(opts)).EfficientFrontier(ctx, returns)

	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusError
	}
	observability.RecordOptimization(string(domain.ObjectiveEfficientFrontier), status, time.Since(start).Seconds(), len(points))

	run := &domain.OptimizationRun{
		RunID:     idhash.NewOptimizationRunID(),
		Tickers:   sortedTickers(returns),
		Objective: domain.ObjectiveEfficientFrontier,
		Frontier:  points,
		CreatedAt: s.now().UTC(),
	}
	if err != nil {
		msg := err.Error()
		run.Error = &msg
	}
	s.persistOptimization(ctx, run)

	if err != nil {
		return nil, err
	}
	return points, nil
}

// OptimizeTickers loads candles for tickers, derives aligned daily returns
// over the lookback window and optimizes them.
func (s *Service) OptimizeTickers(
	ctx context.Context,
	tickers []string,
	start, end time.Time,
	objective domain.Objective,
	opts optimizer.Options,
) (*domain.OptimizationResult, error) {
	returns, err := s.loadReturns(ctx, tickers, start, end, opts.LookbackDays)
	if err != nil {
		return nil, err
	}
	return s.Optimize(ctx, returns, objective, opts)
}

// FrontierTickers is EfficientFrontier over candles loaded for tickers.
func (s *Service) FrontierTickers(
	ctx context.Context,
	tickers []string,
	start, end time.Time,
	opts optimizer.Options,
) ([]domain.EfficientFrontierPoint, error) {
	returns, err := s.loadReturns(ctx, tickers, start, end, opts.LookbackDays)
	if err != nil {
		return nil, err
	}
	return s.EfficientFrontier(ctx, returns, opts)
}

// LoadCandles returns the candles of symbol in [start, end] from the
// configured source.
func (s *Service) LoadCandles(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Candle, error) {
	if s.candles == nil {
		return nil, ErrNoCandleSource
	}
	candles, err := s.candles.GetCandles(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("load candles %s: %w", symbol, err)
	}
	return candles, nil
}

func (s *Service) loadReturns(ctx context.Context, tickers []string, start, end time.Time, lookback int) (map[string][]float64, error) {
	byTicker := make(map[string][]*domain.Candle, len(tickers))
	for _, t := range tickers {
		candles, err := s.LoadCandles(ctx, t, start, end)
		if err != nil {
			return nil, err
		}
		byTicker[t] = candles
	}
	return optimizer.AlignedReturns(byTicker, lookback)
}

func (s *Service) optimizerOptions(opts optimizer.Options) optimizer.Options {
	if opts.Workers <= 0 {
		opts.Workers = s.workers
	}
	if opts.Now == nil {
		opts.Now = s.now
	}
	return opts
}

func (s *Service) aggregator() *metrics.Aggregator {
	return metrics.NewAggregator(s.runs, s.summaries)
}

// annotateBacktest attaches commentary. A failing commentator leaves the
// result untouched.
func (s *Service) annotateBacktest(ctx context.Context, result *domain.BacktestResult) {
	if s.commentator == nil {
		return
	}
	text, err := s.commentator.Backtest(ctx, result)
	if err != nil {
		s.logger.Printf("Commentary for backtest %s failed: %v", result.RunID, err)
		return
	}
	result.Commentary = text
}

func (s *Service) annotateOptimization(ctx context.Context, result *domain.OptimizationResult) {
	if s.commentator == nil {
		return
	}
	text, err := s.commentator.Optimization(ctx, result)
	if err != nil {
		s.logger.Printf("Commentary for %s optimization failed: %v", result.Method, err)
		return
	}
	result.Commentary = text
}

// persistBacktest saves result. A request that was cancelled after the
// computation finished still persists it.
func (s *Service) persistBacktest(ctx context.Context, result *domain.BacktestResult) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveBacktest(context.WithoutCancel(ctx), result); err != nil {
		s.logger.Printf("Failed to persist backtest %s: %v", result.RunID, err)
		observability.RecordPersistenceFailure("backtest")
	}
}

func (s *Service) persistOptimization(ctx context.Context, run *domain.OptimizationRun) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveOptimization(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Printf("Failed to persist optimization %s: %v", run.RunID, err)
		observability.RecordPersistenceFailure("optimization")
	}
}

func (s *Service) recordBacktest(result *domain.BacktestResult, dur time.Duration) {
	kind := string(result.StrategyID)
	observability.RecordBacktest(kind, observability.StatusSuccess, dur.Seconds())
	for _, t := range result.Trades {
		observability.RecordTradeClosed(kind, t.ExitSignal)
	}
	observability.RecordEntriesRejected(kind, result.RejectedEntries)
	observability.UpdateLastSuccessfulBacktest(s.now().Unix())
}

func (s *Service) recordOptimization(objective domain.Objective, result *domain.OptimizationResult, err error, dur time.Duration) {
	if err != nil {
		observability.RecordOptimization(string(objective), observability.StatusError, dur.Seconds(), 0)
		return
	}
	observability.RecordOptimization(string(objective), observability.StatusSuccess, dur.Seconds(),
		int(result.Metrics["valid_candidates"]))
}

func sortedTickers(returns map[string][]float64) []string {
	tickers := make([]string, 0, len(returns))
	for t := range returns {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}
