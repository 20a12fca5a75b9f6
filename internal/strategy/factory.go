package strategy

import (
	"errors"
	"fmt"

	"strategy-lab/internal/domain"
)

// Defaults for strategy parameters.
const (
	DefaultEntryDays        = 20
	DefaultExitDays         = 10
	DefaultATRPeriod        = 20
	DefaultStopATRMultiple  = 2.0
	DefaultSupportLookback  = 50
	DefaultSupportProximity = 0.02
	DefaultSupportStop      = 0.02
	DefaultFastPeriod       = 20
	DefaultSlowPeriod       = 50
)

// Factory errors
var (
	ErrUnknownStrategyKind = errors.New("unknown strategy kind")
	ErrInvalidPeriods      = errors.New("fast period must be shorter than slow period")
)

// Constructor builds a Strategy from flat parameters.
type Constructor func(params domain.Params) (Strategy, error)

// registry maps every known kind to its constructor.
var registry = map[domain.StrategyKind]Constructor{
	domain.StrategyTurtle:           fromTurtleParams,
	domain.StrategySupportProximity: fromSupportParams,
	domain.StrategyMACrossover:      fromMACrossoverParams,
}

// FromParams creates a Strategy of the given kind.
// Missing parameters fall back to defaults; unknown kinds fail here rather
// than at evaluation time.
func FromParams(kind domain.StrategyKind, params domain.Params) (Strategy, error) {
	ctor, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyKind, kind)
	}
	return ctor(params)
}

// DefaultParams returns the default parameters of kind, including the
// shared risk settings.
func DefaultParams(kind domain.StrategyKind) (domain.Params, error) {
	p := domain.Params{
		domain.ParamUnitRisk:    0.02,
		domain.ParamCommission:  1.0,
		domain.ParamRewardRatio: 0,
	}
	switch kind {
	case domain.StrategyTurtle:
		p[domain.ParamEntryDays] = DefaultEntryDays
		p[domain.ParamExitDays] = DefaultExitDays
		p[domain.ParamATRPeriod] = DefaultATRPeriod
	case domain.StrategySupportProximity:
		p[domain.ParamLookback] = DefaultSupportLookback
	case domain.StrategyMACrossover:
		p[domain.ParamFastPeriod] = DefaultFastPeriod
		p[domain.ParamSlowPeriod] = DefaultSlowPeriod
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyKind, kind)
	}
	return p, nil
}

func fromTurtleParams(params domain.Params) (Strategy, error) {
	s := NewBreakoutStrategy(
		params.Int(domain.ParamEntryDays, DefaultEntryDays),
		params.Int(domain.ParamExitDays, DefaultExitDays),
	)
	s.ATRPeriod = params.Int(domain.ParamATRPeriod, DefaultATRPeriod)
	return s, nil
}

func fromSupportParams(params domain.Params) (Strategy, error) {
	return NewSupportProximityStrategy(params.Int(domain.ParamLookback, DefaultSupportLookback)), nil
}

func fromMACrossoverParams(params domain.Params) (Strategy, error) {
	fast := params.Int(domain.ParamFastPeriod, DefaultFastPeriod)
	slow := params.Int(domain.ParamSlowPeriod, DefaultSlowPeriod)
	if fast >= slow {
		return nil, fmt.Errorf("%w: fast=%d slow=%d", ErrInvalidPeriods, fast, slow)
	}
	return NewMACrossoverStrategy(fast, slow), nil
}
