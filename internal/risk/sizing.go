// Package risk converts entry signals into sized orders.
package risk

import (
	"errors"
	"math"

	"strategy-lab/internal/domain"
)

// Defaults
const (
	DefaultUnitRisk   = 0.02
	DefaultCommission = 1.0
)

// Rejection reasons. An entry rejected by the sizer opens no position.
var (
	ErrNoStopLoss       = errors.New("entry signal has no stop loss")
	ErrZeroStopDistance = errors.New("stop distance must be positive")
	ErrZeroQuantity     = errors.New("risk budget buys less than one unit")
	ErrNotEntry         = errors.New("signal is not an entry")
	ErrNonFiniteRisk    = errors.New("capital and risk amount must be finite")
)

// Manager sizes positions by fixed fractional risk.
type Manager struct {
	UnitRisk    float64 // fraction of capital risked per trade
	Commission  float64 // flat per-side commission
	RewardRatio float64 // take-profit distance in stop distances; 0 disables
}

// NewManager creates a Manager with the default unit risk and commission.
func NewManager() *Manager {
	return &Manager{
		UnitRisk:   DefaultUnitRisk,
		Commission: DefaultCommission,
	}
}

// FromParams reads unit_risk, commission and reward_ratio from params.
func FromParams(params domain.Params) *Manager {
	return &Manager{
		UnitRisk:    params.Get(domain.ParamUnitRisk, DefaultUnitRisk),
		Commission:  params.Get(domain.ParamCommission, DefaultCommission),
		RewardRatio: params.Get(domain.ParamRewardRatio, 0),
	}
}

// Order is a sized entry.
type Order struct {
	Side       domain.Side
	Price      float64
	Quantity   float64
	StopLoss   float64
	TakeProfit *float64
	RiskAmount float64
}

// Size computes the order for an entry signal:
//   - risk_amount = capital * unit_risk
//   - stop_distance = |price - stop_loss|
//   - quantity = floor(risk_amount / stop_distance)
//
// Returns an error when the entry must be rejected.
func (m *Manager) Size(sig *domain.Signal, capital float64) (*Order, error) {
	if sig == nil || !sig.Action.IsEntry() {
		return nil, ErrNotEntry
	}
	if sig.StopLoss == nil {
		return nil, ErrNoStopLoss
	}

	stopDistance := math.Abs(sig.Price - *sig.StopLoss)
	if stopDistance <= 0 || math.IsNaN(stopDistance) || math.IsInf(stopDistance, 0) {
		return nil, ErrZeroStopDistance
	}

	riskAmount := capital * m.UnitRisk
	if !isFinite(capital) || !isFinite(riskAmount) {
		return nil, ErrNonFiniteRisk
	}
	quantity := math.Floor(riskAmount / stopDistance)
	if !(quantity > 0) || math.IsInf(quantity, 0) {
		return nil, ErrZeroQuantity
	}

	side := domain.SideLong
	if sig.Action == domain.ActionShort {
		side = domain.SideShort
	}

	order := &Order{
		Side:       side,
		Price:      sig.Price,
		Quantity:   quantity,
		StopLoss:   *sig.StopLoss,
		RiskAmount: riskAmount,
	}

	switch {
	case sig.TakeProfit != nil:
		tp := *sig.TakeProfit
		order.TakeProfit = &tp
	case m.RewardRatio > 0:
		tp := sig.Price + side.Direction()*m.RewardRatio*stopDistance
		order.TakeProfit = &tp
	}

	return order, nil
}

// TradeCommission is the commission recorded on a closed trade (entry + exit).
func (m *Manager) TradeCommission() float64 {
	return 2 * m.Commission
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
