package domain

import (
	"fmt"
	"time"
)

// Objective selects what the portfolio optimizer searches for.
type Objective string

// Objective constants.
const (
	ObjectiveMaxSharpe         Objective = "max_sharpe"
	ObjectiveMinVariance       Objective = "min_variance"
	ObjectiveTargetReturn      Objective = "target_return"
	ObjectiveEfficientFrontier Objective = "efficient_frontier"
)

// IsValid returns true if o is a known objective.
func (o Objective) IsValid() bool {
	switch o {
	case ObjectiveMaxSharpe, ObjectiveMinVariance, ObjectiveTargetReturn, ObjectiveEfficientFrontier:
		return true
	}
	return false
}

// ParseObjective validates s as an Objective.
func ParseObjective(s string) (Objective, error) {
	o := Objective(s)
	if !o.IsValid() {
		return "", fmt.Errorf("unknown objective %q", s)
	}
	return o, nil
}

// OptimizationResult is the chosen allocation for one objective.
// Weights, returns and volatility are fractions.
type OptimizationResult struct {
	Weights        map[string]float64 `json:"weights"`
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
	Method         Objective          `json:"method"`
	Metrics        map[string]float64 `json:"metrics"`
	CalculatedAt   time.Time          `json:"calculated_at"`
	Commentary     string             `json:"commentary,omitempty"`
}

// EfficientFrontierPoint is one minimum-volatility allocation for a target return.
type EfficientFrontierPoint struct {
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	Weights        map[string]float64 `json:"weights"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
}

// OptimizationRun is the persisted record of an optimizer invocation.
// Error is set instead of Result when the optimization failed.
type OptimizationRun struct {
	RunID     string                   `json:"run_id"`
	Tickers   []string                 `json:"tickers"`
	Objective Objective                `json:"objective"`
	Result    *OptimizationResult      `json:"result,omitempty"`
	Frontier  []EfficientFrontierPoint `json:"frontier,omitempty"`
	Error     *string                  `json:"error,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
}
