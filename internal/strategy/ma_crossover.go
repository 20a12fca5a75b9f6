package strategy

import (
	"fmt"

	"strategy-lab/internal/domain"
)

// MACrossoverStrategy follows the trend when a fast SMA sits above a slow SMA
// and price confirms above the fast one.
// Entries carry the slow SMA as their stop so the risk manager can size them.
type MACrossoverStrategy struct {
	FastPeriod int // default 20
	SlowPeriod int // default 50
}

// NewMACrossoverStrategy creates a new MACrossoverStrategy.
func NewMACrossoverStrategy(fast, slow int) *MACrossoverStrategy {
	return &MACrossoverStrategy{FastPeriod: fast, SlowPeriod: slow}
}

// Kind returns domain.StrategyMACrossover.
func (s *MACrossoverStrategy) Kind() domain.StrategyKind {
	return domain.StrategyMACrossover
}

// ID returns the strategy identifier including parameters.
func (s *MACrossoverStrategy) ID() string {
	return fmt.Sprintf("MA_CROSSOVER_%d_%d", s.FastPeriod, s.SlowPeriod)
}

// Evaluate emits BUY on fast > slow && close > fast and SELL on the mirror.
func (s *MACrossoverStrategy) Evaluate(history []*domain.Candle) *domain.Signal {
	fast, ok := simpleMovingAverage(history, s.FastPeriod)
	if !ok {
		return nil
	}
	slow, ok := simpleMovingAverage(history, s.SlowPeriod)
	if !ok {
		return nil
	}
	latest := history[len(history)-1]

	switch {
	case fast > slow && latest.Close > fast:
		return &domain.Signal{
			Action:    domain.ActionBuy,
			Price:     latest.Close,
			StopLoss:  floatPtr(slow),
			Reasoning: fmt.Sprintf("SMA%d %.4f above SMA%d %.4f, close %.4f", s.FastPeriod, fast, s.SlowPeriod, slow, latest.Close),
		}
	case fast < slow && latest.Close < fast:
		return &domain.Signal{
			Action:    domain.ActionSell,
			Price:     latest.Close,
			Reasoning: fmt.Sprintf("SMA%d %.4f below SMA%d %.4f, close %.4f", s.FastPeriod, fast, s.SlowPeriod, slow, latest.Close),
		}
	}
	return nil
}
