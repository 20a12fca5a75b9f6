package domain

import "time"

// PerformanceMetrics summarizes a completed backtest.
// Percentages are on a 0-100 scale.
type PerformanceMetrics struct {
	FinalCapital    float64 `json:"final_capital"`
	TotalReturnPct  float64 `json:"total_return_pct"`
	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	WinRate         float64 `json:"win_rate"`
	ProfitFactor    float64 `json:"profit_factor"`
	AvgWinningTrade float64 `json:"avg_winning_trade"`
	AvgLosingTrade  float64 `json:"avg_losing_trade"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	MaxDrawdownPct  float64 `json:"max_drawdown_pct"`
}

// BacktestResult is what a single backtest produces.
type BacktestResult struct {
	RunID           string             `json:"run_id"`
	StrategyID      StrategyKind       `json:"strategy_id"`
	Symbol          string             `json:"symbol"`
	InitialCapital  float64            `json:"initial_capital"`
	Params          Params             `json:"params"`
	Trades          []Trade            `json:"trades"`
	EquityCurve     []EquityPoint      `json:"equity_curve"`
	Metrics         PerformanceMetrics `json:"metrics"`
	OpenPosition    *Position          `json:"open_position,omitempty"`
	RejectedEntries int                `json:"rejected_entries"`
	Commentary      string             `json:"commentary,omitempty"`
}

// BacktestRun is the persisted record of a backtest.
type BacktestRun struct {
	RunID          string             `json:"run_id"`
	StrategyID     StrategyKind       `json:"strategy_id"`
	Symbol         string             `json:"symbol"`
	PeriodStart    time.Time          `json:"period_start"`
	PeriodEnd      time.Time          `json:"period_end"`
	InitialCapital float64            `json:"initial_capital"`
	Params         Params             `json:"params"`
	Metrics        PerformanceMetrics `json:"metrics"`
	Trades         []Trade            `json:"trades"`
	CreatedAt      time.Time          `json:"created_at"`
}

// NewBacktestRun builds the persisted record for result.
func NewBacktestRun(result *BacktestResult, createdAt time.Time) *BacktestRun {
	run := &BacktestRun{
		RunID:          result.RunID,
		StrategyID:     result.StrategyID,
		Symbol:         result.Symbol,
		InitialCapital: result.InitialCapital,
		Params:         result.Params.Clone(),
		Metrics:        result.Metrics,
		Trades:         append([]Trade(nil), result.Trades...),
		CreatedAt:      createdAt,
	}
	if n := len(result.EquityCurve); n > 0 {
		run.PeriodStart = result.EquityCurve[0].Date
		run.PeriodEnd = result.EquityCurve[n-1].Date
	}
	return run
}
