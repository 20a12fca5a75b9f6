package optimizer

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"strategy-lab/internal/domain"
)

var fixedNow = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

// syntheticReturns builds reproducible daily returns with distinct drifts.
func syntheticReturns(n int) map[string][]float64 {
	rng := rand.New(rand.NewPCG(1, 2))
	specs := map[string][2]float64{
		"AAA": {0.0010, 0.010},
		"BBB": {0.0005, 0.020},
		"CCC": {-0.0002, 0.015},
	}
	out := make(map[string][]float64, len(specs))
	for _, t := range []string{"AAA", "BBB", "CCC"} {
		s := specs[t]
		rets := make([]float64, n)
		for i := range rets {
			rets[i] = s[0] + s[1]*rng.NormFloat64()
		}
		out[t] = rets
	}
	return out
}

func seeded(seed uint64, workers int) Options {
	return Options{
		Iterations: 4000,
		Workers:    workers,
		Rand:       rand.New(rand.NewPCG(seed, seed+1)),
		Now:        fixedNow,
	}
}

func checkWeights(t *testing.T, weights map[string]float64, lo, hi float64) {
	t.Helper()
	var sum float64
	for k, w := range weights {
		sum += w
		if w < lo-1e-9 || w > hi+1e-9 {
			t.Errorf("weight %s=%f outside [%f, %f]", k, w, lo, hi)
		}
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("weights sum to %f", sum)
	}
}

func TestOptimize_WeightsSumToOne(t *testing.T) {
	returns := syntheticReturns(252)
	for _, obj := range []domain.Objective{domain.ObjectiveMaxSharpe, domain.ObjectiveMinVariance} {
		res, err := New(seeded(7, 2)).Optimize(context.Background(), returns, obj)
		if err != nil {
			t.Fatalf("%s: Optimize failed: %v", obj, err)
		}
		checkWeights(t, res.Weights, 0, 1)
		if res.Method != obj {
			t.Errorf("expected method %s, got %s", obj, res.Method)
		}
		if len(res.Weights) != 3 {
			t.Errorf("expected 3 weights, got %d", len(res.Weights))
		}
		if res.Metrics["iterations"] != 4000 {
			t.Errorf("expected 4000 iterations, got %f", res.Metrics["iterations"])
		}
		if res.Metrics["effective_assets"] < 1 || res.Metrics["effective_assets"] > 3 {
			t.Errorf("effective assets out of range: %f", res.Metrics["effective_assets"])
		}
		if !res.CalculatedAt.Equal(fixedNow()) {
			t.Errorf("unexpected timestamp %s", res.CalculatedAt)
		}
		if math.Abs(res.Volatility*res.Volatility-res.Metrics["variance"]) > 1e-12 {
			t.Errorf("volatility and variance disagree")
		}
	}
}

func TestOptimize_SeededDeterminism(t *testing.T) {
	returns := syntheticReturns(252)
	for _, workers := range []int{1, 4} {
		a, err := New(seeded(42, workers)).Optimize(context.Background(), returns, domain.ObjectiveMaxSharpe)
		if err != nil {
			t.Fatalf("Optimize failed: %v", err)
		}
		b, err := New(seeded(42, workers)).Optimize(context.Background(), returns, domain.ObjectiveMaxSharpe)
		if err != nil {
			t.Fatalf("Optimize failed: %v", err)
		}
		for k, w := range a.Weights {
			if b.Weights[k] != w {
				t.Errorf("workers=%d: weight %s differs: %f vs %f", workers, k, w, b.Weights[k])
			}
		}
		if a.SharpeRatio != b.SharpeRatio {
			t.Errorf("workers=%d: sharpe differs", workers)
		}
	}
}

func TestOptimize_MaxSharpeBeatsMinVariance(t *testing.T) {
	returns := syntheticReturns(252)
	sharpe, err := New(seeded(3, 1)).Optimize(context.Background(), returns, domain.ObjectiveMaxSharpe)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	minVar, err := New(seeded(3, 1)).Optimize(context.Background(), returns, domain.ObjectiveMinVariance)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if sharpe.SharpeRatio < minVar.SharpeRatio {
		t.Errorf("max_sharpe %f below min_variance sharpe %f", sharpe.SharpeRatio, minVar.SharpeRatio)
	}
	if minVar.Volatility > sharpe.Volatility {
		t.Errorf("min_variance vol %f above max_sharpe vol %f", minVar.Volatility, sharpe.Volatility)
	}
}

// Scenario B: perfectly anti-correlated assets hedge to an even split.
func TestOptimize_AntiCorrelatedMinVariance(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	r1 := make([]float64, 252)
	r2 := make([]float64, 252)
	for i := range r1 {
		r1[i] = 0.01 * rng.NormFloat64()
		r2[i] = -r1[i]
	}

	opts := seeded(11, 1)
	opts.Iterations = DefaultIterations
	res, err := New(opts).Optimize(context.Background(), map[string][]float64{"X": r1, "Y": r2}, domain.ObjectiveMinVariance)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if math.Abs(res.Weights["X"]-0.5) > 0.01 || math.Abs(res.Weights["Y"]-0.5) > 0.01 {
		t.Errorf("expected ~0.5/0.5, got %v", res.Weights)
	}
	if res.Volatility > 0.01 {
		t.Errorf("expected near-zero volatility, got %f", res.Volatility)
	}
}

func TestOptimize_TargetReturn(t *testing.T) {
	returns := syntheticReturns(252)
	probe := New(seeded(1, 1))
	m, err := probe.buildModel(returns)
	if err != nil {
		t.Fatalf("buildModel failed: %v", err)
	}
	lo, hi := m.assetReturnRange()
	target := (lo + hi) / 2

	opts := seeded(5, 2)
	opts.TargetReturn = target
	res, err := New(opts).Optimize(context.Background(), returns, domain.ObjectiveTargetReturn)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if math.Abs(res.ExpectedReturn-target) > DefaultTolerance {
		t.Errorf("return %f not within tolerance of %f", res.ExpectedReturn, target)
	}
	if res.Metrics["target_return"] != target {
		t.Errorf("expected target_return metric %f, got %f", target, res.Metrics["target_return"])
	}
	checkWeights(t, res.Weights, 0, 1)
}

// Scenario D: a target above every asset's return is an error, not a result.
func TestOptimize_TargetUnreachable(t *testing.T) {
	returns := syntheticReturns(252)
	m, _ := New(seeded(1, 1)).buildModel(returns)
	_, hi := m.assetReturnRange()

	opts := seeded(5, 1)
	opts.TargetReturn = hi + 0.005
	res, err := New(opts).Optimize(context.Background(), returns, domain.ObjectiveTargetReturn)
	if !errors.Is(err, ErrTargetUnreachable) {
		t.Fatalf("expected ErrTargetUnreachable, got %v", err)
	}
	if res != nil {
		t.Errorf("expected nil result, got %+v", res)
	}
}

func TestOptimize_InsufficientData(t *testing.T) {
	opt := New(seeded(1, 1))
	ctx := context.Background()

	if _, err := opt.Optimize(ctx, nil, domain.ObjectiveMaxSharpe); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData for no tickers, got %v", err)
	}
	_, err := opt.Optimize(ctx, map[string][]float64{"A": {0.01}, "B": {0.02, 0.01}}, domain.ObjectiveMinVariance)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData for short series, got %v", err)
	}
}

func TestOptimize_InvalidInputs(t *testing.T) {
	returns := syntheticReturns(50)
	ctx := context.Background()

	if _, err := New(seeded(1, 1)).Optimize(ctx, returns, "best_guess"); !errors.Is(err, ErrUnknownObjective) {
		t.Errorf("expected ErrUnknownObjective, got %v", err)
	}

	opts := seeded(1, 1)
	opts.MinWeight = 0.5 // 3 assets * 0.5 > 1
	if _, err := New(opts).Optimize(ctx, returns, domain.ObjectiveMaxSharpe); !errors.Is(err, ErrInvalidBounds) {
		t.Errorf("expected ErrInvalidBounds, got %v", err)
	}
}

func TestOptimize_ZeroVolatility(t *testing.T) {
	flat := map[string][]float64{"A": make([]float64, 30), "B": make([]float64, 30)}
	ctx := context.Background()

	if _, err := New(seeded(1, 1)).Optimize(ctx, flat, domain.ObjectiveMaxSharpe); !errors.Is(err, ErrNoValidCandidate) {
		t.Errorf("expected ErrNoValidCandidate, got %v", err)
	}

	res, err := New(seeded(1, 1)).Optimize(ctx, flat, domain.ObjectiveMinVariance)
	if err != nil {
		t.Fatalf("min_variance failed: %v", err)
	}
	if math.IsNaN(res.SharpeRatio) || res.SharpeRatio != 0 {
		t.Errorf("expected 0 sharpe for flat series, got %f", res.SharpeRatio)
	}
}

func TestOptimize_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(seeded(1, 2)).Optimize(ctx, syntheticReturns(50), domain.ObjectiveMaxSharpe)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOptimize_LookbackTrimsSeries(t *testing.T) {
	returns := syntheticReturns(400)
	opts := seeded(1, 1)
	opts.LookbackDays = 100
	m, err := New(opts).buildModel(returns)
	if err != nil {
		t.Fatalf("buildModel failed: %v", err)
	}

	// Mean of the last 100 returns only.
	var sum float64
	for _, r := range returns["AAA"][300:] {
		sum += r
	}
	if want := sum / 100 * TradingDaysPerYear; math.Abs(m.mu[0]-want) > 1e-12 {
		t.Errorf("expected mu %f, got %f", want, m.mu[0])
	}
}

func TestEfficientFrontier(t *testing.T) {
	returns := syntheticReturns(252)
	opts := seeded(21, 2)
	opts.Iterations = 2000

	points, err := New(opts).EfficientFrontier(context.Background(), returns)
	if err != nil {
		t.Fatalf("EfficientFrontier failed: %v", err)
	}
	if len(points) == 0 || len(points) > DefaultFrontierPoints {
		t.Fatalf("unexpected point count %d", len(points))
	}
	for i, p := range points {
		checkWeights(t, p.Weights, 0, 1)
		if i > 0 && p.Volatility < points[i-1].Volatility {
			t.Errorf("points not sorted by volatility at %d", i)
		}
	}

	res, err := New(opts).Optimize(context.Background(), returns, domain.ObjectiveEfficientFrontier)
	if err != nil {
		t.Fatalf("Optimize(efficient_frontier) failed: %v", err)
	}
	if res.Method != domain.ObjectiveEfficientFrontier {
		t.Errorf("expected method efficient_frontier, got %s", res.Method)
	}
	if res.Metrics["frontier_points"] < 1 {
		t.Errorf("expected frontier_points metric, got %v", res.Metrics)
	}
}

func TestFrontierTargets(t *testing.T) {
	got := frontierTargets(0.1, 0.5, 5)
	want := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("target %d: expected %f, got %f", i, want[i], got[i])
		}
	}
	if got := frontierTargets(0.2, 0.2, 20); len(got) != 1 {
		t.Errorf("expected a single target for a flat range, got %v", got)
	}
}

func TestSampleWeights_TightBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	w := make([]float64, 4)
	for i := 0; i < 1000; i++ {
		if !sampleWeights(rng, w, 0.1, 0.4) {
			continue
		}
		var sum float64
		for _, v := range w {
			sum += v
			if v < 0 {
				t.Fatalf("negative weight %f", v)
			}
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("weights sum to %f", sum)
		}
	}
}
