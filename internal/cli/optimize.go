package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/subcommands"

	"strategy-lab/internal/app"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/optimizer"
	"strategy-lab/internal/reporting"
)

// portfolioFlags are shared by 'optimize' and 'frontier'.
type portfolioFlags struct {
	cfg        app.Config
	tickers    string
	start      string
	end        string
	iterations int
	riskFree   float64
	minWeight  float64
	maxWeight  float64
	lookback   int
	workers    int
	seed       uint64
}

func (p *portfolioFlags) register(f *flag.FlagSet) {
	p.cfg = app.ConfigFromEnv()
	p.cfg.RegisterFlags(f)
	f.StringVar(&p.tickers, "tickers", "", "Comma-separated ticker symbols")
	f.StringVar(&p.start, "start", "", "First candle date (YYYY-MM-DD)")
	f.StringVar(&p.end, "end", "", "Last candle date (YYYY-MM-DD)")
	f.IntVar(&p.iterations, "iterations", optimizer.DefaultIterations, "Random portfolios sampled")
	f.Float64Var(&p.riskFree, "risk-free", optimizer.DefaultRiskFreeRate, "Annual risk-free rate")
	f.Float64Var(&p.minWeight, "min-weight", 0, "Minimum weight per asset")
	f.Float64Var(&p.maxWeight, "max-weight", 1, "Maximum weight per asset")
	f.IntVar(&p.lookback, "lookback", optimizer.DefaultLookbackDays, "Daily returns used per ticker")
	f.IntVar(&p.workers, "workers", 1, "Parallel sampling workers")
	f.Uint64Var(&p.seed, "seed", 0, "Random seed; 0 seeds from the clock")
}

// request is a parsed set of portfolio flags.
type request struct {
	tickers    []string
	start, end time.Time
	opts       optimizer.Options
}

func (p *portfolioFlags) parse() (*request, error) {
	tickers := parseSymbols(p.tickers)
	if len(tickers) == 0 {
		return nil, errors.New("-tickers is required")
	}
	start, err := parseDate("start", p.start)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end", p.end)
	if err != nil {
		return nil, err
	}

	riskFree := p.riskFree
	req := &request{
		tickers: tickers,
		start:   start,
		end:     end,
		opts: optimizer.Options{
			Iterations:   p.iterations,
			RiskFreeRate: &riskFree,
			MinWeight:    p.minWeight,
			MaxWeight:    p.maxWeight,
			LookbackDays: p.lookback,
			Workers:      p.workers,
		},
	}
	if p.seed != 0 {
		req.opts.Rand = rand.New(rand.NewPCG(p.seed, p.seed))
	}
	return req, nil
}

// optimizeCmd holds the flags for the 'optimize' subcommand.
type optimizeCmd struct {
	portfolioFlags
	objective string
	target    float64
	tolerance float64
	format    string
}

func (*optimizeCmd) Name() string     { return "optimize" }
func (*optimizeCmd) Synopsis() string { return "find optimal portfolio weights" }
func (*optimizeCmd) Usage() string {
	return `quantlab optimize -tickers <A,B,...> [-objective max_sharpe|min_variance|target_return|efficient_frontier] [-target <annual return>] [-format markdown|json]

  Samples random long-only portfolios over the daily returns of the tickers
  and prints the best one for the objective.
`
}

func (c *optimizeCmd) SetFlags(f *flag.FlagSet) {
	c.portfolioFlags.register(f)
	f.StringVar(&c.objective, "objective", string(domain.ObjectiveMaxSharpe), "Optimization objective")
	f.Float64Var(&c.target, "target", 0, "Annual target return for target_return")
	f.Float64Var(&c.tolerance, "tolerance", optimizer.DefaultTolerance, "Accepted distance from -target")
	f.StringVar(&c.format, "format", "markdown", "Output: markdown, json")
}

func (c *optimizeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	objective, err := domain.ParseObjective(c.objective)
	if err != nil {
		return usageError("Error: %v", err)
	}
	req, err := c.parse()
	if err != nil {
		return usageError("Error: %v", err)
	}
	req.opts.TargetReturn = c.target
	req.opts.Tolerance = c.tolerance

	s, err := openSession(ctx, c.cfg)
	if err != nil {
		return fail("Error opening stores: %v", err)
	}
	defer s.close()

	result, err := s.svc.OptimizeTickers(ctx, req.tickers, req.start, req.end, objective, req.opts)
	if err != nil {
		return fail("Error optimizing: %v", err)
	}

	if c.format == "json" {
		err = printJSON(result)
	} else {
		report := s.reports.Optimization(req.tickers, result, nil)
		report.Commentary = result.Commentary
		_, err = fmt.Fprint(stdout, reporting.RenderOptimizationMarkdown(report))
	}
	if err != nil {
		return fail("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// frontierCmd holds the flags for the 'frontier' subcommand.
type frontierCmd struct {
	portfolioFlags
	points int
	format string
}

func (*frontierCmd) Name() string     { return "frontier" }
func (*frontierCmd) Synopsis() string { return "trace the efficient frontier" }
func (*frontierCmd) Usage() string {
	return `quantlab frontier -tickers <A,B,...> [-points <n>] [-format csv|json]

  Prints the minimum-volatility portfolio for evenly spaced target returns.
`
}

func (c *frontierCmd) SetFlags(f *flag.FlagSet) {
	c.portfolioFlags.register(f)
	f.IntVar(&c.points, "points", optimizer.DefaultFrontierPoints, "Frontier points")
	f.StringVar(&c.format, "format", "csv", "Output: csv, json")
}

func (c *frontierCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	req, err := c.parse()
	if err != nil {
		return usageError("Error: %v", err)
	}
	req.opts.FrontierPoints = c.points

	s, err := openSession(ctx, c.cfg)
	if err != nil {
		return fail("Error opening stores: %v", err)
	}
	defer s.close()

	points, err := s.svc.FrontierTickers(ctx, req.tickers, req.start, req.end, req.opts)
	if err != nil {
		return fail("Error tracing frontier: %v", err)
	}

	if c.format == "json" {
		err = printJSON(points)
	} else {
		_, err = fmt.Fprint(stdout, reporting.RenderFrontierCSV(req.tickers, points))
	}
	if err != nil {
		return fail("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}
