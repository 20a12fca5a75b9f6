package metrics

import (
	"context"
	"errors"
	"sort"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// ErrNoRuns is returned when no backtest runs are available for aggregation.
var ErrNoRuns = errors.New("no backtest runs available for aggregation")

// Aggregator summarizes stored backtest runs per strategy.
type Aggregator struct {
	runStore     storage.BacktestRunStore
	summaryStore storage.StrategySummaryStore
	now          func() time.Time
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(runStore storage.BacktestRunStore, summaryStore storage.StrategySummaryStore) *Aggregator {
	return &Aggregator{
		runStore:     runStore,
		summaryStore: summaryStore,
		now:          time.Now,
	}
}

// ComputeSummary loads all runs of strategyID and summarizes them.
// Returns ErrNoRuns if the strategy has no stored runs.
func (a *Aggregator) ComputeSummary(ctx context.Context, strategyID domain.StrategyKind) (*domain.StrategySummary, error) {
	runs, err := a.runStore.GetByStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}

	s := Summarize(runs)
	s.StrategyID = strategyID
	s.ComputedAt = a.now().UTC()
	return s, nil
}

// ComputeAndStore computes and persists the summary.
// Returns storage.ErrDuplicateKey if a summary over the same run count exists.
func (a *Aggregator) ComputeAndStore(ctx context.Context, strategyID domain.StrategyKind) (*domain.StrategySummary, error) {
	s, err := a.ComputeSummary(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if err := a.summaryStore.Insert(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Summarize reduces runs to a distribution of their headline metrics.
// Runs are ordered by (created_at, run_id) first so the result does not
// depend on store iteration order.
func Summarize(runs []*domain.BacktestRun) *domain.StrategySummary {
	n := len(runs)
	if n == 0 {
		return &domain.StrategySummary{}
	}

	sorted := make([]*domain.BacktestRun, n)
	copy(sorted, runs)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].RunID < sorted[j].RunID
	})

	returns := make([]float64, n)
	symbols := make(map[string]struct{})
	var sharpeSum, ddSum, ddMax float64
	profitable, trades := 0, 0
	for i, r := range sorted {
		returns[i] = r.Metrics.TotalReturnPct
		if r.Metrics.TotalReturnPct > 0 {
			profitable++
		}
		symbols[r.Symbol] = struct{}{}
		sharpeSum += r.Metrics.SharpeRatio
		ddSum += r.Metrics.MaxDrawdownPct
		if r.Metrics.MaxDrawdownPct > ddMax {
			ddMax = r.Metrics.MaxDrawdownPct
		}
		trades += r.Metrics.TotalTrades
	}

	ordered := sortedCopy(returns)
	mean := computeMean(returns)

	return &domain.StrategySummary{
		StrategyID:       sorted[0].StrategyID,
		RunCount:         n,
		Symbols:          len(symbols),
		ProfitableRunPct: computeWinRate(profitable, n),
		ReturnMean:       mean,
		ReturnMedian:     computePercentile(ordered, 0.50),
		ReturnP10:        computePercentile(ordered, 0.10),
		ReturnP90:        computePercentile(ordered, 0.90),
		ReturnMin:        ordered[0],
		ReturnMax:        ordered[n-1],
		ReturnStddev:     computeStddev(returns, mean),
		SharpeMean:       sharpeSum / float64(n),
		MaxDrawdownMean:  ddSum / float64(n),
		MaxDrawdownMax:   ddMax,
		TotalTrades:      trades,
	}
}
