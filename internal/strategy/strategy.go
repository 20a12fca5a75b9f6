package strategy

import (
	"strategy-lab/internal/domain"
)

// Strategy produces entry/exit signals from a candle history.
type Strategy interface {
	// Evaluate inspects history (ascending, latest candle last) and returns
	// a signal, or nil when there is nothing to do or not enough history.
	// Implementations must not look past the end of history.
	Evaluate(history []*domain.Candle) *domain.Signal

	// Kind returns the strategy variant.
	Kind() domain.StrategyKind

	// ID returns strategy identifier (includes parameters).
	ID() string
}

func floatPtr(v float64) *float64 {
	return &v
}
