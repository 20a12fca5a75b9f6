package domain

// Action is what a signal generator asks the simulator to do.
type Action string

// Action constants.
const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionShort Action = "SHORT"
	ActionCover Action = "COVER"
	ActionHold  Action = "HOLD"
)

// IsEntry reports whether the action opens a position.
func (a Action) IsEntry() bool {
	return a == ActionBuy || a == ActionShort
}

// Signal is produced fresh on each step and never persisted.
type Signal struct {
	Action     Action   `json:"action"`
	Price      float64  `json:"price"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
	Reasoning  string   `json:"reasoning"`
}
