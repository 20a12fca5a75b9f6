package domain

import "time"

// StrategySummary aggregates the stored backtest runs of one strategy.
// Return and drawdown figures are percentages (0-100 scale).
// Key: (StrategyID, RunCount).
type StrategySummary struct {
	StrategyID StrategyKind `json:"strategy_id"`
	RunCount   int          `json:"run_count"`
	Symbols    int          `json:"symbols"`

	// Share of runs with a positive total return, 0-100.
	ProfitableRunPct float64 `json:"profitable_run_pct"`

	ReturnMean   float64 `json:"return_mean"`
	ReturnMedian float64 `json:"return_median"`
	ReturnP10    float64 `json:"return_p10"`
	ReturnP90    float64 `json:"return_p90"`
	ReturnMin    float64 `json:"return_min"`
	ReturnMax    float64 `json:"return_max"`
	ReturnStddev float64 `json:"return_stddev"`

	SharpeMean      float64 `json:"sharpe_mean"`
	MaxDrawdownMean float64 `json:"max_drawdown_mean"`
	MaxDrawdownMax  float64 `json:"max_drawdown_max"`
	TotalTrades     int     `json:"total_trades"`

	ComputedAt time.Time `json:"computed_at"`
}
