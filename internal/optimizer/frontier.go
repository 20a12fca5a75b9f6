package optimizer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"strategy-lab/internal/domain"
)

// EfficientFrontier runs a target-return search for FrontierPoints targets
// evenly spaced between the lowest and highest single-asset expected
// return. Targets that cannot be matched are skipped. Points are sorted by
// volatility ASC.
func (o *Optimizer) EfficientFrontier(ctx context.Context, returns map[string][]float64) ([]domain.EfficientFrontierPoint, error) {
	m, err := o.buildModel(returns)
	if err != nil {
		return nil, err
	}
	points, _, err := o.frontier(ctx, m)
	return points, err
}

// frontier returns the points and the candidate behind each of them.
func (o *Optimizer) frontier(ctx context.Context, m *model) ([]domain.EfficientFrontierPoint, []*candidate, error) {
	lo, hi := m.assetReturnRange()
	targets := frontierTargets(lo, hi, o.opts.FrontierPoints)

	type found struct {
		point domain.EfficientFrontierPoint
		cand  *candidate
	}
	var all []found

	for _, target := range targets {
		best, _, err := o.search(ctx, m, targetSelector(target, o.opts.Tolerance))
		if err != nil {
			return nil, nil, err
		}
		if best == nil {
			continue
		}
		weights := make(map[string]float64, len(m.tickers))
		for i, t := range m.tickers {
			weights[t] = best.weights[i]
		}
		all = append(all, found{
			point: domain.EfficientFrontierPoint{
				ExpectedReturn: best.ret,
				Volatility:     best.volatility,
				Weights:        weights,
				SharpeRatio:    best.sharpe,
			},
			cand: best,
		})
	}

	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%w: no frontier target in [%.4f, %.4f] matched", ErrTargetUnreachable, lo, hi)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].point.Volatility < all[j].point.Volatility
	})

	points := make([]domain.EfficientFrontierPoint, len(all))
	cands := make([]*candidate, len(all))
	for i, f := range all {
		points[i] = f.point
		cands[i] = f.cand
	}
	return points, cands, nil
}

// frontierResult picks the highest-Sharpe frontier point as the result of
// an efficient_frontier optimization.
func (o *Optimizer) frontierResult(ctx context.Context, m *model) (*domain.OptimizationResult, error) {
	points, cands, err := o.frontier(ctx, m)
	if err != nil {
		return nil, err
	}

	var best *candidate
	for _, c := range cands {
		if !c.valid {
			continue
		}
		if best == nil || c.sharpe > best.sharpe {
			best = c
		}
	}
	if best == nil {
		return nil, errors.Join(ErrNoValidCandidate, fmt.Errorf("all %d frontier points have zero volatility", len(points)))
	}

	res := o.toResult(m, best, domain.ObjectiveEfficientFrontier, searchStats{
		iterations: o.opts.Iterations * o.opts.FrontierPoints,
		valid:      len(points),
	})
	res.Metrics["frontier_points"] = float64(len(points))
	return res, nil
}

// frontierTargets returns n evenly spaced values over [lo, hi].
func frontierTargets(lo, hi float64, n int) []float64 {
	if n <= 1 || hi == lo {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
