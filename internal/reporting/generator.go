package reporting

import (
	"context"
	"errors"
	"sort"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// Generator produces reports from results and stored runs.
type Generator struct {
	runStore     storage.BacktestRunStore
	equityStore  storage.EquityCurveStore
	summaryStore storage.StrategySummaryStore
	currency     string
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. Any store may be nil; the
// reports that need it then fail with storage.ErrNotFound or omit the section.
func NewGenerator(
	runStore storage.BacktestRunStore,
	equityStore storage.EquityCurveStore,
	summaryStore storage.StrategySummaryStore,
) *Generator {
	return &Generator{
		runStore:     runStore,
		equityStore:  equityStore,
		summaryStore: summaryStore,
		currency:     DefaultCurrency,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithCurrency sets the ISO currency code used for money columns.
func (g *Generator) WithCurrency(code string) *Generator {
	g.currency = code
	return g
}

// BacktestResult builds a report from an in-memory backtest result.
func (g *Generator) BacktestResult(r *domain.BacktestResult) *BacktestReport {
	report := &BacktestReport{
		GeneratedAt:    g.now(),
		Currency:       g.currency,
		RunID:          r.RunID,
		StrategyID:     r.StrategyID,
		Symbol:         r.Symbol,
		InitialCapital: r.InitialCapital,
		Params:         paramRows(r.Params),
		Metrics:        r.Metrics,
		Trades:         tradeRows(r.Trades),
		OpenPosition:   r.OpenPosition,
		Commentary:     r.Commentary,
	}
	if n := len(r.EquityCurve); n > 0 {
		report.PeriodStart = r.EquityCurve[0].Date
		report.PeriodEnd = r.EquityCurve[n-1].Date
	}
	report.PeakEquity, report.TroughEquity = equityRange(r.EquityCurve)
	return report
}

// Backtest builds a report for a stored run. The equity section is filled
// when an equity store is configured and holds the run's curve.
func (g *Generator) Backtest(ctx context.Context, runID string) (*BacktestReport, error) {
	if g.runStore == nil {
		return nil, storage.ErrNotFound
	}
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	report := &BacktestReport{
		GeneratedAt:    g.now(),
		Currency:       g.currency,
		RunID:          run.RunID,
		StrategyID:     run.StrategyID,
		Symbol:         run.Symbol,
		PeriodStart:    run.PeriodStart,
		PeriodEnd:      run.PeriodEnd,
		InitialCapital: run.InitialCapital,
		Params:         paramRows(run.Params),
		Metrics:        run.Metrics,
		Trades:         tradeRows(run.Trades),
	}

	if g.equityStore != nil {
		curve, err := g.equityStore.GetByRunID(ctx, runID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		report.PeakEquity, report.TroughEquity = equityRange(curve)
	}
	return report, nil
}

// Optimization builds a report from an optimizer result and optional frontier.
func (g *Generator) Optimization(tickers []string, result *domain.OptimizationResult, frontier []domain.EfficientFrontierPoint) *OptimizationReport {
	report := &OptimizationReport{
		GeneratedAt: g.now(),
		Tickers:     append([]string(nil), tickers...),
		Result:      result,
		Frontier:    frontier,
	}
	sort.Strings(report.Tickers)
	if result != nil {
		report.Weights = weightRows(result.Weights)
	}
	return report
}

// Summaries builds a report with the latest summary of each strategy.
// Strategies without a stored summary are omitted.
func (g *Generator) Summaries(ctx context.Context, kinds []domain.StrategyKind) (*SummaryReport, error) {
	report := &SummaryReport{GeneratedAt: g.now()}
	if g.summaryStore == nil {
		return report, nil
	}

	for _, kind := range kinds {
		all, err := g.summaryStore.GetByStrategy(ctx, kind)
		if err != nil {
			return nil, err
		}
		if len(all) > 0 {
			report.Summaries = append(report.Summaries, all[len(all)-1])
		}
	}

	sort.Slice(report.Summaries, func(i, j int) bool {
		return report.Summaries[i].StrategyID < report.Summaries[j].StrategyID
	})
	return report, nil
}

func paramRows(p domain.Params) []ParamRow {
	rows := make([]ParamRow, 0, len(p))
	for _, k := range p.Keys() {
		rows = append(rows, ParamRow{Name: k, Value: p[k]})
	}
	return rows
}

func tradeRows(trades []domain.Trade) []TradeRow {
	rows := make([]TradeRow, len(trades))
	for i, t := range trades {
		rows[i] = TradeRow{
			Seq:           i + 1,
			Side:          t.Side,
			EntryDate:     t.EntryDate,
			ExitDate:      t.ExitDate,
			EntryPrice:    t.EntryPrice,
			ExitPrice:     t.ExitPrice,
			Quantity:      t.Quantity,
			EntrySignal:   t.EntrySignal,
			ExitSignal:    t.ExitSignal,
			PnL:           t.PnL,
			PnLPercentage: t.PnLPercentage,
			DurationDays:  t.DurationDays,
			Commission:    t.Commission,
		}
	}
	return rows
}

// weightRows sorts by weight DESC, ticker ASC.
func weightRows(weights map[string]float64) []WeightRow {
	rows := make([]WeightRow, 0, len(weights))
	for t, w := range weights {
		rows = append(rows, WeightRow{Ticker: t, Weight: w})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Weight != rows[j].Weight {
			return rows[i].Weight > rows[j].Weight
		}
		return rows[i].Ticker < rows[j].Ticker
	})
	return rows
}

func equityRange(curve []domain.EquityPoint) (peak, trough float64) {
	for i, p := range curve {
		if i == 0 || p.Equity > peak {
			peak = p.Equity
		}
		if i == 0 || p.Equity < trough {
			trough = p.Equity
		}
	}
	return peak, trough
}
