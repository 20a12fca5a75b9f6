package backtest

import (
	"math"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/risk"
)

// State is the simulator state between candles.
// Position is nil while FLAT. Cash excludes position notional.
type State struct {
	Cash     float64
	Position *domain.Position
	Entries  int // accepted entries
	Rejected int // entries refused by the risk manager
}

// Side returns the current FSM state.
func (s State) Side() domain.Side {
	if s.Position == nil {
		return domain.SideFlat
	}
	return s.Position.Side
}

// Equity is cash plus unrealized P&L at price.
func (s State) Equity(price float64) float64 {
	return s.Cash + s.Position.UnrealizedPnL(price)
}

// Machine holds the fixed inputs of the FSM: the instrument and the risk manager.
type Machine struct {
	Symbol string
	Risk   *risk.Manager
}

// NewMachine creates a new Machine.
func NewMachine(symbol string, rm *risk.Manager) *Machine {
	if rm == nil {
		rm = risk.NewManager()
	}
	return &Machine{Symbol: symbol, Risk: rm}
}

// ExitTriggered reports whether the open position's stop or target is hit
// at the candle's close, and the exit signal code.
func (m *Machine) ExitTriggered(state State, candle *domain.Candle) (string, bool) {
	p := state.Position
	if p == nil {
		return "", false
	}
	price := candle.Close

	switch p.Side {
	case domain.SideLong:
		if p.StopLoss != nil && price <= *p.StopLoss {
			return domain.ExitSignalStopLoss, true
		}
		if p.TakeProfit != nil && price >= *p.TakeProfit {
			return domain.ExitSignalTakeProfit, true
		}
	case domain.SideShort:
		if p.StopLoss != nil && price >= *p.StopLoss {
			return domain.ExitSignalStopLoss, true
		}
		if p.TakeProfit != nil && price <= *p.TakeProfit {
			return domain.ExitSignalTakeProfit, true
		}
	}
	return "", false
}

// Transition applies one candle to state and returns the next state plus
// the trade closed on this candle, if any. It never mutates its input.
//
// Order: a stop/target hit closes the position and the signal is ignored;
// otherwise BUY/SHORT open from FLAT, SELL closes LONG and COVER closes SHORT.
// Any other combination leaves the state unchanged.
func (m *Machine) Transition(state State, candle *domain.Candle, signal *domain.Signal) (State, *domain.Trade) {
	if code, hit := m.ExitTriggered(state, candle); hit {
		return m.close(state, candle, code)
	}
	if signal == nil {
		return state, nil
	}

	switch state.Side() {
	case domain.SideFlat:
		if signal.Action.IsEntry() {
			return m.open(state, candle, signal), nil
		}
	case domain.SideLong:
		if signal.Action == domain.ActionSell {
			return m.close(state, candle, string(signal.Action))
		}
	case domain.SideShort:
		if signal.Action == domain.ActionCover {
			return m.close(state, candle, string(signal.Action))
		}
	}
	return state, nil
}

func (m *Machine) open(state State, candle *domain.Candle, signal *domain.Signal) State {
	order, err := m.Risk.Size(signal, state.Cash)
	if err != nil {
		state.Rejected++
		return state
	}

	state.Cash -= m.Risk.Commission
	state.Entries++
	state.Position = &domain.Position{
		Side:        order.Side,
		EntryPrice:  order.Price,
		EntryDate:   candle.Date,
		Quantity:    order.Quantity,
		StopLoss:    floatPtr(order.StopLoss),
		TakeProfit:  order.TakeProfit,
		EntrySignal: string(signal.Action),
	}
	return state
}

func (m *Machine) close(state State, candle *domain.Candle, exitSignal string) (State, *domain.Trade) {
	p := state.Position
	exitPrice := candle.Close
	gross := p.UnrealizedPnL(exitPrice)
	commission := m.Risk.TradeCommission()
	pnl := gross - commission

	var pnlPct float64
	if notional := p.EntryPrice * p.Quantity; notional != 0 {
		pnlPct = pnl / notional * 100
	}

	trade := &domain.Trade{
		Symbol:        m.Symbol,
		EntryDate:     p.EntryDate,
		ExitDate:      candle.Date,
		EntryPrice:    p.EntryPrice,
		ExitPrice:     exitPrice,
		Quantity:      p.Quantity,
		Side:          p.Side,
		EntrySignal:   p.EntrySignal,
		ExitSignal:    exitSignal,
		PnL:           pnl,
		PnLPercentage: pnlPct,
		DurationDays:  int(math.Floor(candle.Date.Sub(p.EntryDate).Hours() / 24)),
		Commission:    commission,
	}

	// Entry commission was debited on open; credit gross and debit the exit side.
	state.Cash += gross - m.Risk.Commission
	state.Position = nil
	return state, trade
}

func floatPtr(v float64) *float64 {
	return &v
}
