package backtest

import (
	"context"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/strategy"
)

// StepFunc observes every simulated candle: the equity point just recorded
// and the trade closed on that candle (nil if none).
type StepFunc func(point domain.EquityPoint, trade *domain.Trade)

// Results holds backtest output.
type Results struct {
	StrategyID  string
	Symbol      string
	Trades      []domain.Trade
	EquityCurve []domain.EquityPoint
	Final       State
}

// Engine drives the time loop of a single backtest.
// An Engine is not safe for concurrent use; run one per goroutine.
type Engine struct {
	strategy       strategy.Strategy
	machine        *Machine
	initialCapital float64
	onStep         StepFunc
}

// NewEngine creates a new backtest engine.
func NewEngine(strat strategy.Strategy, machine *Machine, initialCapital float64) *Engine {
	return &Engine{
		strategy:       strat,
		machine:        machine,
		initialCapital: initialCapital,
	}
}

// OnStep registers an observer invoked after each candle.
func (e *Engine) OnStep(fn StepFunc) {
	e.onStep = fn
}

// Run replays candles in order. The strategy only sees candles[:i+1] at step i.
// Cancellation is checked between candles.
func (e *Engine) Run(ctx context.Context, candles []*domain.Candle) (*Results, error) {
	results := &Results{
		StrategyID:  e.strategy.ID(),
		Symbol:      e.machine.Symbol,
		Trades:      make([]domain.Trade, 0),
		EquityCurve: make([]domain.EquityPoint, 0, len(candles)),
	}
	state := State{Cash: e.initialCapital}

	for i, candle := range candles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Stops are checked before the strategy is consulted.
		var signal *domain.Signal
		if _, hit := e.machine.ExitTriggered(state, candle); !hit {
			signal = e.strategy.Evaluate(candles[:i+1])
		}

		var trade *domain.Trade
		state, trade = e.machine.Transition(state, candle, signal)
		if trade != nil {
			results.Trades = append(results.Trades, *trade)
		}

		point := domain.EquityPoint{Date: candle.Date, Equity: state.Equity(candle.Close)}
		results.EquityCurve = append(results.EquityCurve, point)

		if e.onStep != nil {
			e.onStep(point, trade)
		}
	}

	results.Final = state
	return results, nil
}
