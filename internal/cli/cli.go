// Package cli implements the quantlab subcommands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/subcommands"

	"strategy-lab/internal/app"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/lab"
	"strategy-lab/internal/reporting"
)

// Commands lists every quantlab subcommand.
var Commands = []subcommands.Command{
	&backtestCmd{},
	&optimizeCmd{},
	&frontierCmd{},
	&sweepCmd{},
	&summaryCmd{},
	&reportCmd{},
	&backfillCmd{},
	&migrateCmd{},
}

// Register adds the subcommands to c, grouped by concern.
func Register(c *subcommands.Commander) {
	for _, cmd := range Commands {
		c.Register(cmd, group(cmd.Name()))
	}
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
}

func group(name string) string {
	switch name {
	case "backfill", "migrate":
		return "data"
	case "optimize", "frontier":
		return "portfolio"
	default:
		return "strategies"
	}
}

// stdout is where command output goes.
var stdout io.Writer = os.Stdout

var logger = log.New(os.Stderr, "[quantlab] ", log.LstdFlags)

// session is an opened service and its stores.
type session struct {
	svc     *lab.Service
	stores  *app.Stores
	reports *reporting.Generator
	close   func()
}

func openSession(ctx context.Context, cfg app.Config) (*session, error) {
	stores, cleanup, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := app.NewService(ctx, cfg, stores, logger)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &session{
		svc:     svc,
		stores:  stores,
		reports: reporting.NewGenerator(stores.Runs, stores.Equity, stores.Summaries),
		close:   cleanup,
	}, nil
}

// paramsFlag collects repeated -p name=value flags.
type paramsFlag domain.Params

func (p *paramsFlag) String() string {
	if p == nil || *p == nil {
		return ""
	}
	keys := domain.Params(*p).Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strconv.FormatFloat((*p)[k], 'g', -1, 64))
	}
	return strings.Join(parts, ",")
}

func (p *paramsFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("want name=value, got %q", s)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("param %s: %w", name, err)
	}
	if *p == nil {
		*p = make(paramsFlag)
	}
	(*p)[strings.TrimSpace(name)] = f
	return nil
}

// parseDate parses an optional YYYY-MM-DD flag value.
func parseDate(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("-%s must be YYYY-MM-DD", name)
	}
	return t, nil
}

// parseKinds parses a comma-separated strategy list. Empty means all.
func parseKinds(s string) ([]domain.StrategyKind, error) {
	names := app.SplitList(s)
	if len(names) == 0 {
		return domain.StrategyKinds, nil
	}
	kinds := make([]domain.StrategyKind, 0, len(names))
	for _, n := range names {
		k, err := domain.ParseStrategyKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func parseSymbols(s string) []string {
	symbols := app.SplitList(strings.ToUpper(s))
	sort.Strings(symbols)
	return symbols
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return subcommands.ExitFailure
}

func usageError(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return subcommands.ExitUsageError
}
