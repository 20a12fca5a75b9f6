package reporting

import (
	"fmt"
	"strings"
	"time"

	"strategy-lab/internal/domain"
)

// RenderTradesCSV renders a trade log as CSV string.
func RenderTradesCSV(trades []TradeRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("seq,side,entry_date,exit_date,entry_price,exit_price,quantity,")
	sb.WriteString("entry_signal,exit_signal,pnl,pnl_percentage,duration_days,commission\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%s,%.6f,%.6f,%.0f,%s,%s,%.6f,%.6f,%d,%.6f\n",
			t.Seq,
			t.Side,
			t.EntryDate.Format(time.DateOnly),
			t.ExitDate.Format(time.DateOnly),
			t.EntryPrice,
			t.ExitPrice,
			t.Quantity,
			t.EntrySignal,
			t.ExitSignal,
			t.PnL,
			t.PnLPercentage,
			t.DurationDays,
			t.Commission,
		))
	}

	return sb.String()
}

// RenderEquityCSV renders an equity curve as CSV string.
func RenderEquityCSV(points []domain.EquityPoint) string {
	var sb strings.Builder

	sb.WriteString("date,equity\n")
	for _, p := range points {
		sb.WriteString(fmt.Sprintf("%s,%.6f\n", p.Date.Format(time.DateOnly), p.Equity))
	}

	return sb.String()
}

// RenderFrontierCSV renders efficient frontier points as CSV string.
// Weight columns follow tickers in the given order.
func RenderFrontierCSV(tickers []string, points []domain.EfficientFrontierPoint) string {
	var sb strings.Builder

	sb.WriteString("expected_return,volatility,sharpe_ratio")
	for _, t := range tickers {
		sb.WriteString(",w_")
		sb.WriteString(t)
	}
	sb.WriteString("\n")

	for _, p := range points {
		sb.WriteString(fmt.Sprintf("%.6f,%.6f,%.6f", p.ExpectedReturn, p.Volatility, p.SharpeRatio))
		for _, t := range tickers {
			sb.WriteString(fmt.Sprintf(",%.6f", p.Weights[t]))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
