package backtest

import (
	"strategy-lab/internal/domain"
	"strategy-lab/internal/strategy"
)

// ScriptedStrategy replays a fixed signal per candle index.
// It also records how many candles it was shown on each call, so tests
// can verify the simulator never reveals future candles.
type ScriptedStrategy struct {
	signals map[int]*domain.Signal
	seen    []int
}

// NewScriptedStrategy creates a strategy emitting signals[i] on the i-th candle.
func NewScriptedStrategy(signals map[int]*domain.Signal) *ScriptedStrategy {
	return &ScriptedStrategy{
		signals: signals,
		seen:    make([]int, 0),
	}
}

// Evaluate returns the scripted signal for the latest candle.
func (s *ScriptedStrategy) Evaluate(history []*domain.Candle) *domain.Signal {
	s.seen = append(s.seen, len(history))
	return s.signals[len(history)-1]
}

// Kind returns the strategy kind. Scripted strategies are not registered.
func (s *ScriptedStrategy) Kind() domain.StrategyKind {
	return "scripted"
}

// ID returns the strategy identifier.
func (s *ScriptedStrategy) ID() string {
	return "scripted"
}

// Seen returns the history lengths passed to Evaluate, in call order.
func (s *ScriptedStrategy) Seen() []int {
	return s.seen
}

// Ensure ScriptedStrategy implements strategy.Strategy
var _ strategy.Strategy = (*ScriptedStrategy)(nil)
