package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"strategy-lab/internal/app"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/lab"
	"strategy-lab/internal/reporting"
)

// sweepCmd holds the flags for the 'sweep' subcommand.
type sweepCmd struct {
	cfg        app.Config
	strategies string
	symbols    string
	start      string
	end        string
	capital    float64
	params     paramsFlag
}

func (*sweepCmd) Name() string     { return "sweep" }
func (*sweepCmd) Synopsis() string { return "backtest strategies across symbols and summarize" }
func (*sweepCmd) Usage() string {
	return `quantlab sweep -symbols <A,B,...> [-strategies <kind,...>] [-start <date>] [-end <date>]

  Backtests every strategy on every symbol, persists the runs, stores a new
  summary per strategy and prints the summaries.
`
}

func (c *sweepCmd) SetFlags(f *flag.FlagSet) {
	c.cfg = app.ConfigFromEnv()
	c.cfg.RegisterFlags(f)
	f.StringVar(&c.strategies, "strategies", "", "Comma-separated strategies (default all)")
	f.StringVar(&c.symbols, "symbols", "", "Comma-separated ticker symbols")
	f.StringVar(&c.start, "start", "", "First candle date (YYYY-MM-DD)")
	f.StringVar(&c.end, "end", "", "Last candle date (YYYY-MM-DD)")
	f.Float64Var(&c.capital, "capital", 100000, "Initial capital per run")
	f.Var(&c.params, "p", "Strategy parameter override name=value (repeatable)")
}

func (c *sweepCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	kinds, err := parseKinds(c.strategies)
	if err != nil {
		return usageError("Error: %v", err)
	}
	symbols := parseSymbols(c.symbols)
	if len(symbols) == 0 {
		return usageError("Error: -symbols is required")
	}
	start, err := parseDate("start", c.start)
	if err != nil {
		return usageError("Error: %v", err)
	}
	end, err := parseDate("end", c.end)
	if err != nil {
		return usageError("Error: %v", err)
	}

	s, err := openSession(ctx, c.cfg)
	if err != nil {
		return fail("Error opening stores: %v", err)
	}
	defer s.close()

	result, err := s.svc.Sweep(ctx, lab.SweepRequest{
		Kinds:          kinds,
		Symbols:        symbols,
		Start:          start,
		End:            end,
		Overrides:      domain.Params(c.params),
		InitialCapital: c.capital,
	})
	if err != nil {
		return fail("Error running sweep: %v", err)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s\n", e)
	}

	report, err := s.reports.Summaries(ctx, kinds)
	if err != nil {
		return fail("Error loading summaries: %v", err)
	}
	if _, err := fmt.Fprint(stdout, reporting.RenderSummaryMarkdown(report)); err != nil {
		return fail("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// summaryCmd holds the flags for the 'summary' subcommand.
type summaryCmd struct {
	cfg        app.Config
	strategies string
	refresh    bool
	format     string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display cross-run strategy summaries" }
func (*summaryCmd) Usage() string {
	return `quantlab summary [-strategies <kind,...>] [-refresh] [-format markdown|json]

  Prints the latest stored summary of each strategy. With -refresh they are
  recomputed from the stored runs instead.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	c.cfg = app.ConfigFromEnv()
	c.cfg.RegisterFlags(f)
	f.StringVar(&c.strategies, "strategies", "", "Comma-separated strategies (default all)")
	f.BoolVar(&c.refresh, "refresh", false, "Recompute summaries from stored runs")
	f.StringVar(&c.format, "format", "markdown", "Output: markdown, json")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	kinds, err := parseKinds(c.strategies)
	if err != nil {
		return usageError("Error: %v", err)
	}

	s, err := openSession(ctx, c.cfg)
	if err != nil {
		return fail("Error opening stores: %v", err)
	}
	defer s.close()

	report := &reporting.SummaryReport{}
	if c.refresh {
		for _, kind := range kinds {
			sum, err := s.svc.Summary(ctx, kind)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %s: %v\n", kind, err)
				continue
			}
			report.Summaries = append(report.Summaries, sum)
			report.GeneratedAt = sum.ComputedAt
		}
	} else {
		report, err = s.reports.Summaries(ctx, kinds)
		if err != nil {
			return fail("Error loading summaries: %v", err)
		}
	}

	if c.format == "json" {
		err = printJSON(report.Summaries)
	} else {
		_, err = fmt.Fprint(stdout, reporting.RenderSummaryMarkdown(report))
	}
	if err != nil {
		return fail("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}
