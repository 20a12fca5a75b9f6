package reporting

import (
	"time"

	"strategy-lab/internal/domain"
)

// BacktestReport represents a rendered backtest run.
type BacktestReport struct {
	// Metadata
	GeneratedAt time.Time
	Currency    string
	RunID       string
	StrategyID  domain.StrategyKind
	Symbol      string
	PeriodStart time.Time
	PeriodEnd   time.Time

	InitialCapital float64
	Params         []ParamRow // sorted by name
	Metrics        domain.PerformanceMetrics

	// Trade log in close order
	Trades       []TradeRow
	OpenPosition *domain.Position

	// Equity curve extremes; zero when the curve was not available
	PeakEquity   float64
	TroughEquity float64

	Commentary string
}

// ParamRow is one strategy parameter.
type ParamRow struct {
	Name  string
	Value float64
}

// TradeRow represents one row in the trade log.
type TradeRow struct {
	Seq           int
	Side          domain.Side
	EntryDate     time.Time
	ExitDate      time.Time
	EntryPrice    float64
	ExitPrice     float64
	Quantity      float64
	EntrySignal   string
	ExitSignal    string
	PnL           float64
	PnLPercentage float64
	DurationDays  int
	Commission    float64
}

// OptimizationReport represents a rendered optimizer result.
type OptimizationReport struct {
	GeneratedAt time.Time
	Tickers     []string
	Result      *domain.OptimizationResult
	Weights     []WeightRow // sorted by weight DESC, ticker ASC
	Frontier    []domain.EfficientFrontierPoint
	Commentary  string
}

// WeightRow is one asset allocation.
type WeightRow struct {
	Ticker string
	Weight float64
}

// SummaryReport lists the cross-run summaries of strategies.
type SummaryReport struct {
	GeneratedAt time.Time
	Summaries   []*domain.StrategySummary // sorted by strategy_id
}
