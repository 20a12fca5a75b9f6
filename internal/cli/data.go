package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"

	"strategy-lab/internal/app"
	"strategy-lab/internal/ingestion"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/storage/migrations"
	pgstore "strategy-lab/internal/storage/postgres"
)

// backfillCmd holds the flags for the 'backfill' subcommand.
type backfillCmd struct {
	cfg       app.Config
	symbols   string
	start     string
	end       string
	batchSize int
}

func (*backfillCmd) Name() string     { return "backfill" }
func (*backfillCmd) Synopsis() string { return "download daily candles from Alpaca" }
func (*backfillCmd) Usage() string {
	return `quantlab backfill -symbols <A,B,...> [-start <date>] [-end <date>]

  Fetches daily bars from Alpaca and stores them in the candle store.
  Candles already stored are skipped. Defaults to the last year.
`
}

func (c *backfillCmd) SetFlags(f *flag.FlagSet) {
	c.cfg = app.ConfigFromEnv()
	c.cfg.RegisterFlags(f)
	f.StringVar(&c.symbols, "symbols", "", "Comma-separated ticker symbols")
	f.StringVar(&c.start, "start", "", "First date (YYYY-MM-DD, default one year before -end)")
	f.StringVar(&c.end, "end", "", "Last date (YYYY-MM-DD, default today)")
	f.IntVar(&c.batchSize, "batch-size", 1000, "Candles per insert")
}

func (c *backfillCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	if end.IsZero() {
		end = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if start.IsZero() {
		start = end.AddDate(-1, 0, 0)
	}

	remote, err := app.RemoteSource(c.cfg)
	if err != nil {
		return fail("Error: %v", err)
	}
	if remote == nil {
		return usageError("Error: Alpaca credentials are required (-alpaca-key, -alpaca-secret)")
	}

	stores, cleanup, err := app.OpenStores(ctx, c.cfg)
	if err != nil {
		return fail("Error opening stores: %v", err)
	}
	defer cleanup()

	backfiller := ingestion.NewBackfiller(ingestion.BackfillOptions{
		Source:    remote,
		Store:     stores.Candles,
		BatchSize: c.batchSize,
		Logger:    logger,
	})
	result, err := backfiller.BackfillRange(ctx, symbols, start, end)
	if result != nil {
		observability.RecordCandlesIngested(result.CandlesIngested)
	}
	if err != nil {
		return fail("Error during backfill: %v", err)
	}

	fmt.Fprintf(stdout, "Ingested %d candles (%d duplicates, %d errors) in %v\n",
		result.CandlesIngested, result.DuplicatesSkipped, result.Errors, result.Duration.Round(time.Millisecond))
	if result.Errors > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// migrateCmd holds the flags for the 'migrate' subcommand.
type migrateCmd struct {
	cfg app.Config
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply database migrations" }
func (*migrateCmd) Usage() string {
	return `quantlab migrate -postgres-dsn <dsn> -clickhouse-dsn <dsn>

  Applies the embedded PostgreSQL and ClickHouse migrations. Migrations are
  idempotent and safe to rerun.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	c.cfg = app.ConfigFromEnv()
	c.cfg.RegisterFlags(f)
}

func (c *migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.cfg.PostgresDSN == "" || c.cfg.ClickhouseDSN == "" {
		return usageError("Error: -postgres-dsn and -clickhouse-dsn are required")
	}

	pool, err := pgstore.NewPool(ctx, c.cfg.PostgresDSN)
	if err != nil {
		return fail("Error connecting to postgres: %v", err)
	}
	defer pool.Close()

	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	for _, name := range applied {
		logger.Printf("Applied migration: %s", name)
	}
	if err != nil {
		return fail("Error applying postgres migrations: %v", err)
	}
	logger.Printf("PostgreSQL schema up to date (%d applied)", len(applied))

	conn, err := migrations.RunClickhouseMigrations(ctx, c.cfg.ClickhouseDSN)
	if err != nil {
		return fail("Error applying clickhouse migrations: %v", err)
	}
	conn.Close()
	logger.Println("ClickHouse migrations applied")

	return subcommands.ExitSuccess
}
