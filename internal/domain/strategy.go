package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// StrategyKind identifies a signal generator variant.
type StrategyKind string

// Strategy kind constants
const (
	StrategyTurtle           StrategyKind = "turtle"
	StrategySupportProximity StrategyKind = "support"
	StrategyMACrossover      StrategyKind = "ma_crossover"
)

// StrategyKinds lists every known kind in a stable order.
var StrategyKinds = []StrategyKind{
	StrategyTurtle,
	StrategySupportProximity,
	StrategyMACrossover,
}

// ParseStrategyKind converts a user-supplied name into a StrategyKind.
// "breakout" is accepted as an alias of the turtle strategy.
func ParseStrategyKind(s string) (StrategyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "turtle", "breakout":
		return StrategyTurtle, nil
	case "support", "support_proximity":
		return StrategySupportProximity, nil
	case "ma_crossover", "ma", "sma_crossover":
		return StrategyMACrossover, nil
	default:
		return "", fmt.Errorf("unknown strategy kind %q", s)
	}
}

// Params is a flat key→value strategy configuration
// (entry_days, unit_risk, commission, ...).
type Params map[string]float64

// Get returns the value for key or def when the key is absent.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Int returns the value for key truncated to int, or def when absent or non-positive.
func (p Params) Int(key string, def int) int {
	v, ok := p[key]
	if !ok || v <= 0 {
		return def
	}
	return int(v)
}

// Clone returns a copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ErrNonFiniteParam is returned by CheckFinite for a NaN or infinite value.
var ErrNonFiniteParam = errors.New("parameter must be a finite number")

// CheckFinite reports the first parameter, in key order, whose value is
// NaN or infinite.
func (p Params) CheckFinite() error {
	for _, k := range p.Keys() {
		if v := p[k]; math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%g", ErrNonFiniteParam, k, v)
		}
	}
	return nil
}

// Keys returns the parameter names sorted ascending.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Common parameter keys.
const (
	ParamEntryDays   = "entry_days"
	ParamExitDays    = "exit_days"
	ParamATRPeriod   = "atr_period"
	ParamLookback    = "lookback"
	ParamFastPeriod  = "fast_period"
	ParamSlowPeriod  = "slow_period"
	ParamUnitRisk    = "unit_risk"
	ParamCommission  = "commission"
	ParamRewardRatio = "reward_ratio"
)
