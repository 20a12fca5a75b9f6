package lab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/metrics"
	"strategy-lab/internal/params"
	"strategy-lab/internal/storage"
)

// SweepRequest selects the (strategy, symbol) grid of a sweep.
// An empty Kinds runs every known strategy.
type SweepRequest struct {
	Kinds          []domain.StrategyKind
	Symbols        []string
	Start          time.Time
	End            time.Time
	Overrides      domain.Params
	InitialCapital float64
}

// SweepResult contains the outcome of a sweep.
type SweepResult struct {
	Results          []*domain.BacktestResult
	SummariesCreated int
	Errors           []string
}

// Sweep backtests every strategy on every symbol, then stores a fresh
// summary per strategy.
// Phases:
//  1. Load candles once per symbol
//  2. Run all (strategy, symbol) jobs in parallel
//  3. Persist each result
//  4. Summarize stored runs per strategy
//
// Per-symbol load failures are collected in Errors and skip that symbol.
func (s *Service) Sweep(ctx context.Context, req SweepRequest) (*SweepResult, error) {
	kinds := req.Kinds
	if len(kinds) == 0 {
		kinds = domain.StrategyKinds
	}
	result := &SweepResult{}

	// Phase 1: candles
	s.logger.Printf("Sweep: loading candles for %d symbols", len(req.Symbols))
	series := make(map[string][]*domain.Candle, len(req.Symbols))
	for _, symbol := range req.Symbols {
		candles, err := s.LoadCandles(ctx, symbol, req.Start, req.End)
		if err != nil {
			if errors.Is(err, ErrNoCandleSource) {
				return nil, err
			}
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		series[symbol] = candles
	}

	// Phase 2: backtests
	var jobs []backtest.Job
	for _, kind := range kinds {
		p, err := params.Resolve(ctx, s.params, kind, req.Overrides)
		if err != nil {
			return nil, err
		}
		for _, symbol := range req.Symbols {
			candles, ok := series[symbol]
			if !ok {
				continue
			}
			jobs = append(jobs, backtest.Job{
				Kind:           kind,
				Symbol:         symbol,
				Candles:        candles,
				Params:         p,
				InitialCapital: req.InitialCapital,
			})
		}
	}

	s.logger.Printf("Sweep: running %d backtests (concurrency %d)", len(jobs), s.concurrency)
	start := time.Now()
	results, err := backtest.RunMany(ctx, jobs, s.concurrency)
	if err != nil {
		return nil, fmt.Errorf("sweep backtests: %w", err)
	}
	perRun := time.Since(start) / time.Duration(max(len(results), 1))

	// Phase 3: persistence
	for _, r := range results {
		s.recordBacktest(r, perRun)
		s.persistBacktest(ctx, r)
	}
	result.Results = results

	// Phase 4: summaries
	if s.runs != nil && s.summaries != nil {
		agg := s.aggregator()
		for _, kind := range kinds {
			_, err := agg.ComputeAndStore(ctx, kind)
			if err != nil {
				// Same run count already summarized, or nothing to summarize
				if errors.Is(err, storage.ErrDuplicateKey) || errors.Is(err, metrics.ErrNoRuns) {
					continue
				}
				result.Errors = append(result.Errors, fmt.Sprintf("summarize %s: %v", kind, err))
				continue
			}
			result.SummariesCreated++
		}
	}

	s.logger.Printf("Sweep completed: %d backtests, %d summaries, %d errors",
		len(result.Results), result.SummariesCreated, len(result.Errors))
	return result, nil
}
