// Package app wires configuration, stores and collaborators into a
// lab.Service for the binaries under cmd/.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"strategy-lab/internal/commentary"
	"strategy-lab/internal/ingestion"
	"strategy-lab/internal/lab"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/params"
	"strategy-lab/internal/storage"
	chstore "strategy-lab/internal/storage/clickhouse"
	"strategy-lab/internal/storage/memory"
	"strategy-lab/internal/storage/migrations"
	"strategy-lab/internal/storage/parquet"
	pgstore "strategy-lab/internal/storage/postgres"
)

// ErrMissingDSN is returned when database storage is requested without
// both connection strings.
var ErrMissingDSN = errors.New("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")

// Config holds settings shared by every binary.
type Config struct {
	PostgresDSN   string
	ClickhouseDSN string
	UseMemory     bool
	// Migrate applies embedded migrations before opening the stores.
	Migrate bool
	// DataDir, when set, keeps candles in Parquet files instead of ClickHouse.
	DataDir string

	ParamsFile string

	AlpacaAPIKey    string
	AlpacaAPISecret string
	AlpacaFeed      string

	GeminiAPIKey string
	GeminiModel  string
}

// ConfigFromEnv returns a Config populated from environment variables.
func ConfigFromEnv() Config {
	return Config{
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		ClickhouseDSN:   os.Getenv("CLICKHOUSE_DSN"),
		DataDir:         os.Getenv("CANDLE_DATA_DIR"),
		ParamsFile:      os.Getenv("STRATEGY_PARAMS"),
		AlpacaAPIKey:    os.Getenv("ALPACA_API_KEY"),
		AlpacaAPISecret: os.Getenv("ALPACA_API_SECRET"),
		AlpacaFeed:      os.Getenv("ALPACA_FEED"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     os.Getenv("GEMINI_MODEL"),
	}
}

// RegisterFlags binds the config to f. Current field values become the
// flag defaults, so call it on the result of ConfigFromEnv.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.PostgresDSN, "postgres-dsn", c.PostgresDSN, "PostgreSQL connection string")
	f.StringVar(&c.ClickhouseDSN, "clickhouse-dsn", c.ClickhouseDSN, "ClickHouse connection string")
	f.BoolVar(&c.UseMemory, "use-memory", c.UseMemory, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	f.BoolVar(&c.Migrate, "migrate", c.Migrate, "Apply database migrations on startup")
	f.StringVar(&c.DataDir, "data-dir", c.DataDir, "Directory of <SYMBOL>.parquet candle files")
	f.StringVar(&c.ParamsFile, "params", c.ParamsFile, "YAML file of stored strategy parameters")
	f.StringVar(&c.AlpacaAPIKey, "alpaca-key", c.AlpacaAPIKey, "Alpaca API key")
	f.StringVar(&c.AlpacaAPISecret, "alpaca-secret", c.AlpacaAPISecret, "Alpaca API secret")
	f.StringVar(&c.AlpacaFeed, "alpaca-feed", c.AlpacaFeed, "Alpaca data feed (iex or sip)")
	f.StringVar(&c.GeminiAPIKey, "gemini-key", c.GeminiAPIKey, "Gemini API key; enables result commentary")
	f.StringVar(&c.GeminiModel, "gemini-model", c.GeminiModel, "Gemini model name")
}

// Validate checks that the storage settings are usable.
func (c *Config) Validate() error {
	if !c.UseMemory && (c.PostgresDSN == "" || c.ClickhouseDSN == "") {
		return ErrMissingDSN
	}
	return nil
}

// Stores holds all storage implementations.
type Stores struct {
	Candles       storage.CandleStore
	Runs          storage.BacktestRunStore
	Equity        storage.EquityCurveStore
	Optimizations storage.OptimizationRunStore
	Summaries     storage.StrategySummaryStore
}

// OpenStores creates the stores selected by cfg. The returned cleanup
// closes any database connections.
func OpenStores(ctx context.Context, cfg Config) (*Stores, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	if cfg.UseMemory {
		stores := &Stores{
			Candles:       memory.NewCandleStore(),
			Runs:          memory.NewBacktestRunStore(),
			Equity:        memory.NewEquityCurveStore(),
			Optimizations: memory.NewOptimizationRunStore(),
			Summaries:     memory.NewStrategySummaryStore(),
		}
		if cfg.DataDir != "" {
			stores.Candles = parquet.NewCandleStore(cfg.DataDir)
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if cfg.Migrate {
		if _, err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}

	// ClickHouse
	var chConn *chstore.Conn
	if cfg.Migrate {
		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	} else {
		chConn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
	}
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	stores := &Stores{
		// PostgreSQL stores (runs, trades, optimizations)
		Runs:          pgstore.NewBacktestRunStore(pool),
		Optimizations: pgstore.NewOptimizationRunStore(pool),

		// ClickHouse stores (time series, analytics)
		Candles:   chstore.NewCandleStore(chConn),
		Equity:    chstore.NewEquityCurveStore(chConn),
		Summaries: chstore.NewStrategySummaryStore(chConn),
	}
	if cfg.DataDir != "" {
		stores.Candles = parquet.NewCandleStore(cfg.DataDir)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// RemoteSource returns the Alpaca candle source, or nil when no
// credentials are configured.
func RemoteSource(cfg Config) (storage.CandleSource, error) {
	if cfg.AlpacaAPIKey == "" && cfg.AlpacaAPISecret == "" {
		return nil, nil
	}
	src, err := marketdata.NewAlpacaSource(marketdata.AlpacaConfig{
		APIKey:    cfg.AlpacaAPIKey,
		APISecret: cfg.AlpacaAPISecret,
		Feed:      cfg.AlpacaFeed,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca source: %w", err)
	}
	return src, nil
}

// NewService builds a lab.Service over stores. Candles are read from the
// local candle store, falling back to Alpaca when credentials are set.
// Commentary is enabled when a Gemini key is configured.
func NewService(ctx context.Context, cfg Config, stores *Stores, logger *log.Logger) (*lab.Service, error) {
	if logger == nil {
		logger = log.Default()
	}

	opts := lab.Options{
		Repository: lab.NewStoreRepository(stores.Runs, stores.Equity, stores.Optimizations),
		Runs:       stores.Runs,
		Summaries:  stores.Summaries,
		Logger:     logger,
	}

	if cfg.ParamsFile != "" {
		store, err := params.Load(cfg.ParamsFile)
		if err != nil {
			return nil, fmt.Errorf("load strategy params: %w", err)
		}
		opts.Params = store
		logger.Printf("Loaded strategy params from %s", cfg.ParamsFile)
	}

	remote, err := RemoteSource(cfg)
	if err != nil {
		return nil, err
	}
	opts.Candles = ingestion.NewCachedSource(stores.Candles, remote, logger)

	if cfg.GeminiAPIKey != "" {
		gemini, err := commentary.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		opts.Commentator = gemini
	}

	return lab.New(opts), nil
}

// LoadEnvFile loads environment variables from path if it exists.
// Variables already set in the environment win.
func LoadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// SplitList splits a comma-separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
