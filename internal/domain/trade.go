package domain

import "time"

// Side is the direction of a position.
type Side string

// Side constants.
const (
	SideFlat  Side = "FLAT"
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Direction returns +1 for LONG, -1 for SHORT and 0 for FLAT.
func (s Side) Direction() float64 {
	switch s {
	case SideLong:
		return 1
	case SideShort:
		return -1
	default:
		return 0
	}
}

// Position is the single open position of a backtest run.
type Position struct {
	Side        Side      `json:"side"`
	EntryPrice  float64   `json:"entry_price"`
	EntryDate   time.Time `json:"entry_date"`
	Quantity    float64   `json:"quantity"`
	StopLoss    *float64  `json:"stop_loss,omitempty"`
	TakeProfit  *float64  `json:"take_profit,omitempty"`
	EntrySignal string    `json:"entry_signal"`
}

// UnrealizedPnL returns the mark-to-market P&L at price, before commissions.
func (p *Position) UnrealizedPnL(price float64) float64 {
	if p == nil {
		return 0
	}
	return (price - p.EntryPrice) * p.Quantity * p.Side.Direction()
}

// Trade is a closed position. Trades are only created on close and the
// trade log is append-only.
type Trade struct {
	Symbol        string    `json:"symbol"`
	EntryDate     time.Time `json:"entry_date"`
	ExitDate      time.Time `json:"exit_date"`
	EntryPrice    float64   `json:"entry_price"`
	ExitPrice     float64   `json:"exit_price"`
	Quantity      float64   `json:"quantity"`
	Side          Side      `json:"side"`
	EntrySignal   string    `json:"entry_signal"`
	ExitSignal    string    `json:"exit_signal"`
	PnL           float64   `json:"pnl"`
	PnLPercentage float64   `json:"pnl_percentage"` // 0-100 scale
	DurationDays  int       `json:"duration_days"`
	Commission    float64   `json:"commission"` // entry + exit
}

// Exit signal codes for risk-driven exits.
const (
	ExitSignalStopLoss   = "STOP_LOSS"
	ExitSignalTakeProfit = "TAKE_PROFIT"
)
