package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderBacktestMarkdown renders a backtest report as Markdown string.
func RenderBacktestMarkdown(r *BacktestReport) string {
	var sb strings.Builder
	cur := r.Currency

	// Header
	sb.WriteString(fmt.Sprintf("# Backtest Report: %s on %s\n\n", r.StrategyID, r.Symbol))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", r.RunID))
	}
	if !r.PeriodStart.IsZero() {
		sb.WriteString(fmt.Sprintf("Period: %s to %s\n\n",
			r.PeriodStart.Format(time.DateOnly), r.PeriodEnd.Format(time.DateOnly)))
	}

	// Parameters
	sb.WriteString("## Parameters\n\n")
	if len(r.Params) > 0 {
		sb.WriteString("| Parameter | Value |\n")
		sb.WriteString("|-----------|-------|\n")
		for _, p := range r.Params {
			sb.WriteString(fmt.Sprintf("| %s | %g |\n", p.Name, p.Value))
		}
	} else {
		sb.WriteString("Strategy defaults.\n")
	}
	sb.WriteString("\n")

	// Performance
	m := r.Metrics
	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Initial Capital | %s |\n", formatMoney(r.InitialCapital, cur)))
	sb.WriteString(fmt.Sprintf("| Final Capital | %s |\n", formatMoney(m.FinalCapital, cur)))
	sb.WriteString(fmt.Sprintf("| Total Return | %s |\n", formatPct(m.TotalReturnPct)))
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", m.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Winning / Losing | %d / %d |\n", m.WinningTrades, m.LosingTrades))
	sb.WriteString(fmt.Sprintf("| Win Rate | %s |\n", formatPct(m.WinRate)))
	sb.WriteString(fmt.Sprintf("| Profit Factor | %s |\n", formatFixed(m.ProfitFactor, 2)))
	sb.WriteString(fmt.Sprintf("| Avg Winning Trade | %s |\n", formatMoney(m.AvgWinningTrade, cur)))
	sb.WriteString(fmt.Sprintf("| Avg Losing Trade | %s |\n", formatMoney(m.AvgLosingTrade, cur)))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %s |\n", formatFixed(m.SharpeRatio, 2)))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %s |\n", formatPct(m.MaxDrawdownPct)))
	if r.PeakEquity != 0 {
		sb.WriteString(fmt.Sprintf("| Peak Equity | %s |\n", formatMoney(r.PeakEquity, cur)))
		sb.WriteString(fmt.Sprintf("| Trough Equity | %s |\n", formatMoney(r.TroughEquity, cur)))
	}
	sb.WriteString("\n")

	// Trades
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| # | Side | Entry | Exit | Entry Price | Exit Price | Qty | Exit Signal | P&L | P&L % | Days |\n")
		sb.WriteString("|---|------|-------|------|-------------|------------|-----|-------------|-----|-------|------|\n")
		for _, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s | %s | %s | %s | %d |\n",
				t.Seq, t.Side,
				t.EntryDate.Format(time.DateOnly), t.ExitDate.Format(time.DateOnly),
				formatFixed(t.EntryPrice, 2), formatFixed(t.ExitPrice, 2), formatFixed(t.Quantity, 0),
				t.ExitSignal, formatMoney(t.PnL, cur), formatPct(t.PnLPercentage), t.DurationDays))
		}
	} else {
		sb.WriteString("No closed trades.\n")
	}
	sb.WriteString("\n")

	if p := r.OpenPosition; p != nil {
		sb.WriteString("## Open Position\n\n")
		sb.WriteString(fmt.Sprintf("%s %s units at %s since %s",
			p.Side, formatFixed(p.Quantity, 0), formatFixed(p.EntryPrice, 2), p.EntryDate.Format(time.DateOnly)))
		if p.StopLoss != nil {
			sb.WriteString(fmt.Sprintf(", stop %s", formatFixed(*p.StopLoss, 2)))
		}
		if p.TakeProfit != nil {
			sb.WriteString(fmt.Sprintf(", target %s", formatFixed(*p.TakeProfit, 2)))
		}
		sb.WriteString(".\n\n")
	}

	if r.Commentary != "" {
		sb.WriteString("## Commentary\n\n")
		sb.WriteString(r.Commentary)
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderOptimizationMarkdown renders an optimization report as Markdown string.
func RenderOptimizationMarkdown(r *OptimizationReport) string {
	var sb strings.Builder

	sb.WriteString("# Portfolio Optimization Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Tickers: %s\n\n", strings.Join(r.Tickers, ", ")))

	if res := r.Result; res != nil {
		sb.WriteString(fmt.Sprintf("## Allocation (%s)\n\n", res.Method))
		sb.WriteString("| Ticker | Weight |\n")
		sb.WriteString("|--------|--------|\n")
		for _, w := range r.Weights {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", w.Ticker, formatFraction(w.Weight)))
		}
		sb.WriteString("\n")

		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Expected Return | %s |\n", formatFraction(res.ExpectedReturn)))
		sb.WriteString(fmt.Sprintf("| Volatility | %s |\n", formatFraction(res.Volatility)))
		sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %s |\n", formatFixed(res.SharpeRatio, 3)))
		sb.WriteString("\n")
	}

	if len(r.Frontier) > 0 {
		sb.WriteString("## Efficient Frontier\n\n")
		sb.WriteString("| # | Expected Return | Volatility | Sharpe |\n")
		sb.WriteString("|---|-----------------|------------|--------|\n")
		for i, p := range r.Frontier {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n",
				i+1, formatFraction(p.ExpectedReturn), formatFraction(p.Volatility), formatFixed(p.SharpeRatio, 3)))
		}
		sb.WriteString("\n")
	}

	if r.Commentary != "" {
		sb.WriteString("## Commentary\n\n")
		sb.WriteString(r.Commentary)
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderSummaryMarkdown renders strategy summaries as Markdown string.
func RenderSummaryMarkdown(r *SummaryReport) string {
	var sb strings.Builder

	sb.WriteString("# Strategy Summary\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	if len(r.Summaries) == 0 {
		sb.WriteString("No strategy summaries available.\n")
		return sb.String()
	}

	sb.WriteString("| Strategy | Runs | Symbols | Profitable | Mean | Median | P10 | P90 | Sharpe | MaxDD mean | MaxDD max | Trades |\n")
	sb.WriteString("|----------|------|---------|------------|------|--------|-----|-----|--------|------------|-----------|--------|\n")
	for _, s := range r.Summaries {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %s | %s | %s | %s | %s | %s | %s | %d |\n",
			s.StrategyID, s.RunCount, s.Symbols, formatPct(s.ProfitableRunPct),
			formatPct(s.ReturnMean), formatPct(s.ReturnMedian), formatPct(s.ReturnP10), formatPct(s.ReturnP90),
			formatFixed(s.SharpeMean, 2), formatPct(s.MaxDrawdownMean), formatPct(s.MaxDrawdownMax), s.TotalTrades))
	}
	sb.WriteString("\n")

	return sb.String()
}
