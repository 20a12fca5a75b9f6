package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"strategy-lab/internal/app"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/reporting"
)

// backtestCmd holds the flags for the 'backtest' subcommand.
type backtestCmd struct {
	cfg      app.Config
	strategy string
	symbol   string
	start    string
	end      string
	capital  float64
	params   paramsFlag
	format   string
}

func (*backtestCmd) Name() string     { return "backtest" }
func (*backtestCmd) Synopsis() string { return "backtest one strategy on one symbol" }
func (*backtestCmd) Usage() string {
	return `quantlab backtest -strategy <kind> -symbol <SYMBOL> [-start <date>] [-end <date>] [-p name=value]... [-format markdown|csv|equity|json]

  Runs a strategy over the stored daily candles of a symbol and prints the
  report. The run is persisted with its equity curve.
`
}

func (c *backtestCmd) SetFlags(f *flag.FlagSet) {
	c.cfg = app.ConfigFromEnv()
	c.cfg.RegisterFlags(f)
	f.StringVar(&c.strategy, "strategy", "", "Strategy: turtle, support, ma_crossover")
	f.StringVar(&c.symbol, "symbol", "", "Ticker symbol")
	f.StringVar(&c.start, "start", "", "First candle date (YYYY-MM-DD)")
	f.StringVar(&c.end, "end", "", "Last candle date (YYYY-MM-DD)")
	f.Float64Var(&c.capital, "capital", 100000, "Initial capital")
	f.Var(&c.params, "p", "Strategy parameter override name=value (repeatable)")
	f.StringVar(&c.format, "format", "markdown", "Output: markdown, csv (trade log), equity (equity CSV), json")
}

func (c *backtestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	kind, err := domain.ParseStrategyKind(c.strategy)
	if err != nil {
		return usageError("Error: %v", err)
	}
	symbol := strings.ToUpper(strings.TrimSpace(c.symbol))
	if symbol == "" {
		return usageError("Error: -symbol is required")
	}
	start, err := parseDate("start", c.start)
	if err != nil {
		return usageError("Error: %v", err)
	}
	end, err := parseDate("end", c.end)
	if err != nil {
		return usageError("Error: %v", err)
	}
	if c.capital <= 0 {
		return usageError("Error: -capital must be positive")
	}

	s, err := openSession(ctx, c.cfg)
	if err != nil {
		return fail("Error opening stores: %v", err)
	}
	defer s.close()

	result, err := s.svc.BacktestSymbol(ctx, kind, symbol, start, end, domain.Params(c.params), c.capital)
	if err != nil {
		return fail("Error running backtest: %v", err)
	}

	switch c.format {
	case "json":
		err = printJSON(result)
	case "csv":
		_, err = fmt.Fprint(stdout, reporting.RenderTradesCSV(s.reports.BacktestResult(result).Trades))
	case "equity":
		_, err = fmt.Fprint(stdout, reporting.RenderEquityCSV(result.EquityCurve))
	default:
		_, err = fmt.Fprint(stdout, reporting.RenderBacktestMarkdown(s.reports.BacktestResult(result)))
	}
	if err != nil {
		return fail("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// reportCmd holds the flags for the 'report' subcommand.
type reportCmd struct {
	cfg    app.Config
	runID  string
	format string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "render a stored backtest run" }
func (*reportCmd) Usage() string {
	return `quantlab report -run <run_id> [-format markdown|csv|equity|json]

  Prints the report of a persisted backtest run.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	c.cfg = app.ConfigFromEnv()
	c.cfg.RegisterFlags(f)
	f.StringVar(&c.runID, "run", "", "Backtest run id")
	f.StringVar(&c.format, "format", "markdown", "Output: markdown, csv (trade log), equity (equity CSV), json")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.runID == "" {
		return usageError("Error: -run is required")
	}

	s, err := openSession(ctx, c.cfg)
	if err != nil {
		return fail("Error opening stores: %v", err)
	}
	defer s.close()

	if c.format == "json" {
		run, err := s.svc.GetBacktest(ctx, c.runID)
		if err != nil {
			return fail("Error loading run %s: %v", c.runID, err)
		}
		if err := printJSON(run); err != nil {
			return fail("Error writing output: %v", err)
		}
		return subcommands.ExitSuccess
	}

	report, err := s.reports.Backtest(ctx, c.runID)
	if err != nil {
		return fail("Error loading run %s: %v", c.runID, err)
	}

	switch c.format {
	case "csv":
		_, err = fmt.Fprint(stdout, reporting.RenderTradesCSV(report.Trades))
	case "equity":
		curve, cerr := s.stores.Equity.GetByRunID(ctx, c.runID)
		if cerr != nil {
			return fail("Error loading equity curve: %v", cerr)
		}
		_, err = fmt.Fprint(stdout, reporting.RenderEquityCSV(curve))
	default:
		_, err = fmt.Fprint(stdout, reporting.RenderBacktestMarkdown(report))
	}
	if err != nil {
		return fail("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}
