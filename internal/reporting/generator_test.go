package reporting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
	"strategy-lab/internal/storage/memory"
)

var (
	day0      = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	fixedTime = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
)

func fixedClock() time.Time { return fixedTime }

func sampleResult() *domain.BacktestResult {
	stop := 95.0
	return &domain.BacktestResult{
		RunID:          "run-1",
		StrategyID:     domain.StrategyTurtle,
		Symbol:         "AAPL",
		InitialCapital: 100000,
		Params:         domain.Params{"exit_days": 10, "entry_days": 20},
		Trades: []domain.Trade{
			{
				Symbol: "AAPL", Side: domain.SideLong,
				EntryDate: day0.AddDate(0, 0, 1), ExitDate: day0.AddDate(0, 0, 4),
				EntryPrice: 100, ExitPrice: 110, Quantity: 100,
				EntrySignal: "BUY", ExitSignal: "SELL",
				PnL: 998, PnLPercentage: 9.98, DurationDays: 3, Commission: 2,
			},
		},
		EquityCurve: []domain.EquityPoint{
			{Date: day0, Equity: 100000},
			{Date: day0.AddDate(0, 0, 2), Equity: 99500},
			{Date: day0.AddDate(0, 0, 4), Equity: 100998},
		},
		Metrics: domain.PerformanceMetrics{
			FinalCapital:   100998,
			TotalReturnPct: 0.998,
			TotalTrades:    1,
			WinningTrades:  1,
			WinRate:        100,
			SharpeRatio:    1.25,
			MaxDrawdownPct: 0.5,
		},
		OpenPosition: &domain.Position{
			Side: domain.SideLong, EntryPrice: 101, EntryDate: day0.AddDate(0, 0, 4),
			Quantity: 50, StopLoss: &stop, EntrySignal: "BUY",
		},
		Commentary: "Trend captured cleanly.",
	}
}

func TestBacktestResult_Report(t *testing.T) {
	g := NewGenerator(nil, nil, nil).WithClock(fixedClock)
	report := g.BacktestResult(sampleResult())

	if !report.GeneratedAt.Equal(fixedTime) {
		t.Errorf("Expected GeneratedAt %v, got %v", fixedTime, report.GeneratedAt)
	}
	if len(report.Params) != 2 || report.Params[0].Name != "entry_days" {
		t.Errorf("Expected params sorted by name, got %+v", report.Params)
	}
	if report.PeakEquity != 100998 || report.TroughEquity != 99500 {
		t.Errorf("Expected equity range 99500..100998, got %v..%v", report.TroughEquity, report.PeakEquity)
	}
	if !report.PeriodEnd.Equal(day0.AddDate(0, 0, 4)) {
		t.Errorf("Unexpected PeriodEnd %v", report.PeriodEnd)
	}
	if len(report.Trades) != 1 || report.Trades[0].Seq != 1 {
		t.Errorf("Expected one trade with seq 1, got %+v", report.Trades)
	}
}

func TestRenderBacktestMarkdown_ContainsSections(t *testing.T) {
	md := RenderBacktestMarkdown(NewGenerator(nil, nil, nil).WithClock(fixedClock).BacktestResult(sampleResult()))

	requiredSections := []string{
		"# Backtest Report: turtle on AAPL",
		"Generated: 2024-06-15T10:30:00Z",
		"Period: 2024-01-02 to 2024-01-06",
		"## Parameters",
		"| entry_days | 20 |",
		"## Performance",
		"| Initial Capital | $100,000.00 |",
		"| Win Rate | 100.00% |",
		"## Trades",
		"| 1 | LONG | 2024-01-03 | 2024-01-06 | 100.00 | 110.00 | 100 | SELL | $998.00 | 9.98% | 3 |",
		"## Open Position",
		"stop 95.00",
		"## Commentary",
	}
	for _, section := range requiredSections {
		if !strings.Contains(md, section) {
			t.Errorf("Markdown missing %q", section)
		}
	}
}

func TestRenderBacktestMarkdown_Empty(t *testing.T) {
	md := RenderBacktestMarkdown(&BacktestReport{StrategyID: domain.StrategySupportProximity, Symbol: "MSFT"})

	if !strings.Contains(md, "No closed trades.") {
		t.Error("Expected empty trade log note")
	}
	if !strings.Contains(md, "Strategy defaults.") {
		t.Error("Expected defaults note")
	}
	if strings.Contains(md, "## Open Position") || strings.Contains(md, "## Commentary") {
		t.Error("Optional sections should be omitted")
	}
}

func TestGenerator_BacktestFromStore(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewBacktestRunStore()
	curves := memory.NewEquityCurveStore()

	result := sampleResult()
	if err := runs.Insert(ctx, domain.NewBacktestRun(result, fixedTime)); err != nil {
		t.Fatalf("Insert run failed: %v", err)
	}
	if err := curves.InsertBulk(ctx, result.RunID, result.EquityCurve); err != nil {
		t.Fatalf("Insert curve failed: %v", err)
	}

	report, err := NewGenerator(runs, curves, nil).WithClock(fixedClock).Backtest(ctx, "run-1")
	if err != nil {
		t.Fatalf("Backtest failed: %v", err)
	}
	if report.Metrics.FinalCapital != 100998 {
		t.Errorf("Expected final capital 100998, got %v", report.Metrics.FinalCapital)
	}
	if report.PeakEquity != 100998 {
		t.Errorf("Expected peak 100998, got %v", report.PeakEquity)
	}

	_, err = NewGenerator(runs, nil, nil).Backtest(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestOptimizationReport(t *testing.T) {
	result := &domain.OptimizationResult{
		Weights:        map[string]float64{"AAPL": 0.25, "MSFT": 0.5, "GOOG": 0.25},
		ExpectedReturn: 0.12,
		Volatility:     0.2,
		SharpeRatio:    0.5,
		Method:         domain.ObjectiveMaxSharpe,
	}
	frontier := []domain.EfficientFrontierPoint{
		{ExpectedReturn: 0.08, Volatility: 0.15, SharpeRatio: 0.4, Weights: map[string]float64{"AAPL": 1}},
	}
	report := NewGenerator(nil, nil, nil).WithClock(fixedClock).
		Optimization([]string{"MSFT", "AAPL", "GOOG"}, result, frontier)

	want := []string{"MSFT", "AAPL", "GOOG"}
	for i, w := range report.Weights {
		if w.Ticker != want[i] {
			t.Errorf("Weights[%d]: got %s, want %s", i, w.Ticker, want[i])
		}
	}

	md := RenderOptimizationMarkdown(report)
	for _, s := range []string{"Tickers: AAPL, GOOG, MSFT", "## Allocation (max_sharpe)", "| MSFT | 50.00% |", "| Expected Return | 12.00% |", "## Efficient Frontier"} {
		if !strings.Contains(md, s) {
			t.Errorf("Markdown missing %q", s)
		}
	}
}

func TestGenerator_Summaries(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStrategySummaryStore()
	for _, s := range []*domain.StrategySummary{
		{StrategyID: domain.StrategyTurtle, RunCount: 1, ReturnMean: 1},
		{StrategyID: domain.StrategyTurtle, RunCount: 3, ReturnMean: 2},
		{StrategyID: domain.StrategyMACrossover, RunCount: 2, ReturnMean: -1},
	} {
		if err := store.Insert(ctx, s); err != nil {
			t.Fatalf("Insert summary failed: %v", err)
		}
	}

	report, err := NewGenerator(nil, nil, store).WithClock(fixedClock).Summaries(ctx, domain.StrategyKinds)
	if err != nil {
		t.Fatalf("Summaries failed: %v", err)
	}
	if len(report.Summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(report.Summaries))
	}
	if report.Summaries[0].StrategyID != domain.StrategyMACrossover {
		t.Errorf("Expected ma_crossover first, got %s", report.Summaries[0].StrategyID)
	}
	if report.Summaries[1].RunCount != 3 {
		t.Errorf("Expected latest turtle summary, got run_count %d", report.Summaries[1].RunCount)
	}

	md := RenderSummaryMarkdown(report)
	if !strings.Contains(md, "| turtle | 3 |") {
		t.Errorf("Summary markdown missing turtle row:\n%s", md)
	}
}

func TestRenderCSV(t *testing.T) {
	report := NewGenerator(nil, nil, nil).BacktestResult(sampleResult())

	trades := RenderTradesCSV(report.Trades)
	lines := strings.Split(strings.TrimSpace(trades), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "1,LONG,2024-01-03,2024-01-06,100.000000,110.000000,100,BUY,SELL,998.000000") {
		t.Errorf("Unexpected trade row: %s", lines[1])
	}

	equity := RenderEquityCSV(sampleResult().EquityCurve)
	if !strings.Contains(equity, "2024-01-04,99500.000000") {
		t.Errorf("Unexpected equity csv: %s", equity)
	}

	frontier := RenderFrontierCSV([]string{"AAPL", "MSFT"}, []domain.EfficientFrontierPoint{
		{ExpectedReturn: 0.1, Volatility: 0.2, SharpeRatio: 0.4, Weights: map[string]float64{"AAPL": 0.3, "MSFT": 0.7}},
	})
	if !strings.Contains(frontier, "expected_return,volatility,sharpe_ratio,w_AAPL,w_MSFT\n0.100000,0.200000,0.400000,0.300000,0.700000") {
		t.Errorf("Unexpected frontier csv: %s", frontier)
	}
}

func TestFormatMoney(t *testing.T) {
	if got := formatMoney(1234.5, ""); got != "$1,234.50" {
		t.Errorf("formatMoney USD: got %s", got)
	}
	if got := formatMoney(10, "XXX-unknown"); got != "10.00" {
		t.Errorf("formatMoney unknown: got %s", got)
	}
}
