package optimizer

import (
	"context"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"strategy-lab/internal/domain"
)

// cancelCheckInterval is how many iterations run between context checks.
const cancelCheckInterval = 256

// selector decides which candidates qualify and which of two is better.
type selector struct {
	accept func(c *candidate) bool
	better func(a, b *candidate) bool // a strictly better than b
}

func selectorFor(objective domain.Objective, target, tolerance float64) selector {
	switch objective {
	case domain.ObjectiveMinVariance:
		return selector{
			accept: func(*candidate) bool { return true },
			better: func(a, b *candidate) bool { return a.variance < b.variance },
		}
	case domain.ObjectiveTargetReturn:
		return targetSelector(target, tolerance)
	default:
		return selector{
			accept: func(c *candidate) bool { return c.valid },
			better: func(a, b *candidate) bool { return a.sharpe > b.sharpe },
		}
	}
}

func targetSelector(target, tolerance float64) selector {
	return selector{
		accept: func(c *candidate) bool { return math.Abs(c.ret-target) <= tolerance },
		better: func(a, b *candidate) bool { return a.volatility < b.volatility },
	}
}

type searchStats struct {
	iterations int
	valid      int
}

type workerResult struct {
	best  *candidate
	valid int
}

// search partitions the iterations across workers, each with its own
// generator seeded from the optimizer's master generator, and reduces the
// per-worker winners in worker order. Ties keep the earlier worker, so the
// outcome depends only on the seed and the worker count.
func (o *Optimizer) search(ctx context.Context, m *model, sel selector) (*candidate, searchStats, error) {
	workers := o.opts.Workers
	if workers > o.opts.Iterations {
		workers = o.opts.Iterations
	}
	seeds := o.seeds(workers)
	results := make([]workerResult, workers)

	g, gctx := errgroup.WithContext(ctx)
	per, rem := o.opts.Iterations/workers, o.opts.Iterations%workers
	for w := 0; w < workers; w++ {
		iters := per
		if w < rem {
			iters++
		}
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(seeds[w][0], seeds[w][1]))
			res, err := o.runWorker(gctx, m, sel, rng, iters)
			if err != nil {
				return err
			}
			results[w] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, searchStats{}, err
	}

	stats := searchStats{iterations: o.opts.Iterations}
	var best *candidate
	for _, r := range results {
		stats.valid += r.valid
		if r.best != nil && (best == nil || sel.better(r.best, best)) {
			best = r.best
		}
	}
	return best, stats, nil
}

func (o *Optimizer) runWorker(ctx context.Context, m *model, sel selector, rng *rand.Rand, iterations int) (workerResult, error) {
	var res workerResult
	riskFree := *o.opts.RiskFreeRate
	w := make([]float64, len(m.tickers))

	for i := 0; i < iterations; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		if !sampleWeights(rng, w, o.opts.MinWeight, o.opts.MaxWeight) {
			continue
		}

		c := m.evaluate(w, riskFree)
		if !sel.accept(&c) {
			continue
		}
		res.valid++
		if res.best == nil || sel.better(&c, res.best) {
			c.weights = append([]float64(nil), w...)
			res.best = &c
		}
	}
	return res, nil
}
