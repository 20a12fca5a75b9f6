package strategy

import (
	"fmt"

	"strategy-lab/internal/domain"
)

// BreakoutStrategy is the turtle channel breakout.
// Entry: close above the highest high of the EntryDays candles before it.
// Exit: close below the lowest low of the ExitDays candles before it.
type BreakoutStrategy struct {
	EntryDays       int     // channel length for entries (default 20)
	ExitDays        int     // channel length for exits (default 10)
	ATRPeriod       int     // true range averaging window (default 20)
	StopATRMultiple float64 // stop distance in ATRs (default 2)
}

// NewBreakoutStrategy creates a new BreakoutStrategy with the default ATR stop.
func NewBreakoutStrategy(entryDays, exitDays int) *BreakoutStrategy {
	return &BreakoutStrategy{
		EntryDays:       entryDays,
		ExitDays:        exitDays,
		ATRPeriod:       DefaultATRPeriod,
		StopATRMultiple: DefaultStopATRMultiple,
	}
}

// Kind returns domain.StrategyTurtle.
func (s *BreakoutStrategy) Kind() domain.StrategyKind {
	return domain.StrategyTurtle
}

// ID returns the strategy identifier including parameters.
func (s *BreakoutStrategy) ID() string {
	return fmt.Sprintf("TURTLE_entry%d_exit%d_atr%d", s.EntryDays, s.ExitDays, s.ATRPeriod)
}

// Evaluate checks the entry channel first, then the exit channel.
func (s *BreakoutStrategy) Evaluate(history []*domain.Candle) *domain.Signal {
	n := len(history)
	if n == 0 {
		return nil
	}
	latest := history[n-1]
	prior := history[:n-1]

	if s.EntryDays > 0 && len(prior) >= s.EntryDays {
		upper := highestHigh(prior[len(prior)-s.EntryDays:])
		if latest.Close > upper {
			atr := averageTrueRange(history, s.ATRPeriod)
			return &domain.Signal{
				Action:    domain.ActionBuy,
				Price:     latest.Close,
				StopLoss:  floatPtr(latest.Close - s.StopATRMultiple*atr),
				Reasoning: fmt.Sprintf("close %.4f broke %d-day high %.4f (ATR %.4f)", latest.Close, s.EntryDays, upper, atr),
			}
		}
	}

	if s.ExitDays > 0 && len(prior) >= s.ExitDays {
		lower := lowestLow(prior[len(prior)-s.ExitDays:])
		if latest.Close < lower {
			return &domain.Signal{
				Action:    domain.ActionSell,
				Price:     latest.Close,
				Reasoning: fmt.Sprintf("close %.4f broke %d-day low %.4f", latest.Close, s.ExitDays, lower),
			}
		}
	}

	return nil
}
