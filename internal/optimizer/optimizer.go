// Package optimizer searches for portfolio weights by Monte Carlo sampling
// over a mean-variance model of daily returns.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"strategy-lab/internal/domain"
)

// Defaults
const (
	DefaultIterations     = 10000
	DefaultRiskFreeRate   = 0.02
	DefaultLookbackDays   = 252
	DefaultFrontierPoints = 20
	DefaultTolerance      = 0.01
)

// Optimizer errors
var (
	ErrInsufficientData  = errors.New("insufficient return data")
	ErrTargetUnreachable = errors.New("target return unreachable")
	ErrNoValidCandidate  = errors.New("no valid candidate portfolio")
	ErrInvalidBounds     = errors.New("invalid weight bounds")
	ErrUnknownObjective  = errors.New("unknown objective")
)

// Options configures a search. Zero values fall back to defaults, except
// MinWeight which is a legitimate 0.
type Options struct {
	Iterations     int
	RiskFreeRate   *float64 // nil means DefaultRiskFreeRate
	MinWeight      float64
	MaxWeight      float64 // 0 means 1
	TargetReturn   float64 // used by target_return
	Tolerance      float64 // absolute band around TargetReturn
	LookbackDays   int
	FrontierPoints int
	Workers        int

	// Rand seeds the per-worker generators. nil means a time-seeded source.
	Rand *rand.Rand
	// Now stamps results. nil means time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Iterations <= 0 {
		o.Iterations = DefaultIterations
	}
	if o.RiskFreeRate == nil {
		rf := DefaultRiskFreeRate
		o.RiskFreeRate = &rf
	}
	if o.MaxWeight <= 0 {
		o.MaxWeight = 1
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.LookbackDays <= 0 {
		o.LookbackDays = DefaultLookbackDays
	}
	if o.FrontierPoints <= 0 {
		o.FrontierPoints = DefaultFrontierPoints
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		o.Rand = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) validate(n int) error {
	if o.MinWeight < 0 || o.MinWeight > o.MaxWeight || o.MaxWeight > 1 {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidBounds, o.MinWeight, o.MaxWeight)
	}
	if o.MinWeight*float64(n) > 1+1e-12 || o.MaxWeight*float64(n) < 1-1e-12 {
		return fmt.Errorf("%w: [%g, %g] cannot sum to 1 over %d assets", ErrInvalidBounds, o.MinWeight, o.MaxWeight, n)
	}
	return nil
}

// Optimizer runs searches with a fixed set of options.
// It is safe for concurrent use; the injected generator is only touched
// under a lock to derive per-search seeds.
type Optimizer struct {
	mu   sync.Mutex
	opts Options
}

// New creates an Optimizer.
func New(opts Options) *Optimizer {
	return &Optimizer{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (o *Optimizer) Options() Options {
	return o.opts
}

// seeds draws one (hi, lo) PCG seed pair per worker from the master generator.
func (o *Optimizer) seeds(workers int) [][2]uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([][2]uint64, workers)
	for i := range out {
		out[i] = [2]uint64{o.opts.Rand.Uint64(), o.opts.Rand.Uint64()}
	}
	return out
}

// Optimize searches for the allocation that best satisfies objective.
// returns maps ticker to its aligned daily return series; only the last
// LookbackDays observations are used.
// efficient_frontier yields the highest-Sharpe point of the frontier.
func (o *Optimizer) Optimize(ctx context.Context, returns map[string][]float64, objective domain.Objective) (*domain.OptimizationResult, error) {
	if !objective.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownObjective, objective)
	}
	m, err := o.buildModel(returns)
	if err != nil {
		return nil, err
	}

	if objective == domain.ObjectiveEfficientFrontier {
		return o.frontierResult(ctx, m)
	}

	if objective == domain.ObjectiveTargetReturn {
		// Every allocation is a convex combination of the assets, so a
		// target outside the single-asset range can never be met.
		if lo, hi := m.assetReturnRange(); o.opts.TargetReturn > hi || o.opts.TargetReturn < lo {
			return nil, fmt.Errorf("%w: target %.4f outside asset return range [%.4f, %.4f]",
				ErrTargetUnreachable, o.opts.TargetReturn, lo, hi)
		}
	}

	sel := selectorFor(objective, o.opts.TargetReturn, o.opts.Tolerance)
	best, stats, err := o.search(ctx, m, sel)
	if err != nil {
		return nil, err
	}
	if best == nil {
		if objective == domain.ObjectiveTargetReturn {
			return nil, fmt.Errorf("%w: target %.4f ±%.4f not matched in %d iterations",
				ErrTargetUnreachable, o.opts.TargetReturn, o.opts.Tolerance, stats.iterations)
		}
		return nil, ErrNoValidCandidate
	}

	res := o.toResult(m, best, objective, stats)
	if objective == domain.ObjectiveTargetReturn {
		res.Metrics["target_return"] = o.opts.TargetReturn
	}
	return res, nil
}

// buildModel trims each series to the lookback window and estimates the model.
func (o *Optimizer) buildModel(returns map[string][]float64) (*model, error) {
	if len(returns) == 0 {
		return nil, fmt.Errorf("%w: no tickers", ErrInsufficientData)
	}

	tickers := make([]string, 0, len(returns))
	for t := range returns {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	if err := o.opts.validate(len(tickers)); err != nil {
		return nil, err
	}

	// Use the common tail of all series, capped at the lookback.
	obs := o.opts.LookbackDays
	for _, t := range tickers {
		if len(returns[t]) < obs {
			obs = len(returns[t])
		}
	}

	series := make([][]float64, len(tickers))
	for i, t := range tickers {
		s := returns[t]
		series[i] = s[len(s)-obs:]
	}
	return newModel(tickers, series)
}

func (o *Optimizer) toResult(m *model, c *candidate, method domain.Objective, stats searchStats) *domain.OptimizationResult {
	weights := make(map[string]float64, len(m.tickers))
	var sumSq float64
	maxW, minW := c.weights[0], c.weights[0]
	for i, t := range m.tickers {
		w := c.weights[i]
		weights[t] = w
		sumSq += w * w
		if w > maxW {
			maxW = w
		}
		if w < minW {
			minW = w
		}
	}

	effective := 0.0
	if sumSq > 0 {
		effective = 1 / sumSq
	}

	return &domain.OptimizationResult{
		Weights:        weights,
		ExpectedReturn: c.ret,
		Volatility:     c.volatility,
		SharpeRatio:    c.sharpe,
		Method:         method,
		Metrics: map[string]float64{
			"iterations":       float64(stats.iterations),
			"valid_candidates": float64(stats.valid),
			"variance":         c.variance,
			"effective_assets": effective,
			"max_weight":       maxW,
			"min_weight":       minW,
		},
		CalculatedAt: o.opts.Now().UTC(),
	}
}
