package strategy

import (
	"fmt"

	"strategy-lab/internal/domain"
)

// SupportProximityStrategy buys when price trades close to its recent floor.
type SupportProximityStrategy struct {
	Lookback     int     // candles used to find support, latest included (default 50)
	ProximityPct float64 // max distance above support as a fraction (default 0.02)
	StopPct      float64 // stop below support as a fraction (default 0.02)
}

// NewSupportProximityStrategy creates a new SupportProximityStrategy.
func NewSupportProximityStrategy(lookback int) *SupportProximityStrategy {
	return &SupportProximityStrategy{
		Lookback:     lookback,
		ProximityPct: DefaultSupportProximity,
		StopPct:      DefaultSupportStop,
	}
}

// Kind returns domain.StrategySupportProximity.
func (s *SupportProximityStrategy) Kind() domain.StrategyKind {
	return domain.StrategySupportProximity
}

// ID returns the strategy identifier including parameters.
func (s *SupportProximityStrategy) ID() string {
	return fmt.Sprintf("SUPPORT_lookback%d_prox%.0f", s.Lookback, s.ProximityPct*100)
}

// Evaluate emits BUY when close <= support * (1 + ProximityPct).
func (s *SupportProximityStrategy) Evaluate(history []*domain.Candle) *domain.Signal {
	n := len(history)
	if s.Lookback <= 0 || n < s.Lookback {
		return nil
	}
	latest := history[n-1]
	support := lowestLow(history[n-s.Lookback:])
	if support <= 0 {
		return nil
	}

	if latest.Close <= support*(1+s.ProximityPct) {
		return &domain.Signal{
			Action:    domain.ActionBuy,
			Price:     latest.Close,
			StopLoss:  floatPtr(support * (1 - s.StopPct)),
			Reasoning: fmt.Sprintf("close %.4f within %.0f%% of %d-day support %.4f", latest.Close, s.ProximityPct*100, s.Lookback, support),
		}
	}
	return nil
}
