package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/metrics"
	"strategy-lab/internal/risk"
	"strategy-lab/internal/strategy"
)

// DefaultConcurrency bounds RunMany when no limit is given.
const DefaultConcurrency = 4

// ErrNonFiniteCapital is returned for a NaN or infinite initial capital.
var ErrNonFiniteCapital = errors.New("initial capital must be a finite number")

// Job describes one independent backtest.
type Job struct {
	Kind           domain.StrategyKind
	Symbol         string
	Candles        []*domain.Candle
	Params         domain.Params
	InitialCapital float64
	OnStep         StepFunc
}

// Run executes a single backtest job and computes its metrics.
// Unknown strategy kinds and non-finite capital or params fail before any
// candle is simulated.
// Empty candle series produce zero metrics, not an error.
func Run(ctx context.Context, job Job) (*domain.BacktestResult, error) {
	if math.IsNaN(job.InitialCapital) || math.IsInf(job.InitialCapital, 0) {
		return nil, ErrNonFiniteCapital
	}
	if err := job.Params.CheckFinite(); err != nil {
		return nil, err
	}
	strat, err := strategy.FromParams(job.Kind, job.Params)
	if err != nil {
		return nil, err
	}

	engine := NewEngine(strat, NewMachine(job.Symbol, risk.FromParams(job.Params)), job.InitialCapital)
	if job.OnStep != nil {
		engine.OnStep(job.OnStep)
	}

	res, err := engine.Run(ctx, job.Candles)
	if err != nil {
		return nil, fmt.Errorf("backtest %s/%s: %w", job.Kind, job.Symbol, err)
	}

	out := &domain.BacktestResult{
		StrategyID:      job.Kind,
		Symbol:          job.Symbol,
		InitialCapital:  job.InitialCapital,
		Params:          job.Params.Clone(),
		Trades:          res.Trades,
		EquityCurve:     res.EquityCurve,
		Metrics:         metrics.Compute(res.Trades, res.EquityCurve, job.InitialCapital),
		OpenPosition:    res.Final.Position,
		RejectedEntries: res.Final.Rejected,
	}
	out.RunID = idhash.ComputeBacktestRunID(string(job.Kind), job.Symbol,
		periodStart(job.Candles), periodEnd(job.Candles),
		job.InitialCapital, idhash.CandleDigest(job.Candles), job.Params)
	return out, nil
}

// RunMany executes independent jobs concurrently with at most limit in flight.
// Results are returned in job order. The first failure cancels the rest.
func RunMany(ctx context.Context, jobs []Job, limit int) ([]*domain.BacktestResult, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]*domain.BacktestResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := range jobs {
		g.Go(func() error {
			res, err := Run(gctx, jobs[i])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func periodStart(candles []*domain.Candle) int64 {
	if len(candles) == 0 {
		return 0
	}
	return candles[0].Date.Unix()
}

func periodEnd(candles []*domain.Candle) int64 {
	if len(candles) == 0 {
		return 0
	}
	return candles[len(candles)-1].Date.Unix()
}
