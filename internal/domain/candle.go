package domain

import "time"

// Candle is one OHLCV bar of a historical price series.
// Series are ordered by Date ascending and are read-only to the engine.
type Candle struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// EquityPoint is the account equity observed at one candle.
// Equity = cash + unrealized P&L of the open position.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}
