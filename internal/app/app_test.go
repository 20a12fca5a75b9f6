package app

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/storage/memory"
	"strategy-lab/internal/storage/parquet"
)

func candles(symbol string, n int) []*domain.Candle {
	day0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Candle, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = &domain.Candle{
			Symbol: symbol,
			Date:   day0.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return out
}

func TestRegisterFlags(t *testing.T) {
	cfg := Config{PostgresDSN: "postgres://env"}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	require.NoError(t, fs.Parse([]string{"-use-memory", "-data-dir", "/tmp/candles", "-alpaca-feed", "iex"}))
	assert.Equal(t, "postgres://env", cfg.PostgresDSN)
	assert.True(t, cfg.UseMemory)
	assert.Equal(t, "/tmp/candles", cfg.DataDir)
	assert.Equal(t, "iex", cfg.AlpacaFeed)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://x")
	t.Setenv("STRATEGY_PARAMS", "params.yaml")
	t.Setenv("GEMINI_API_KEY", "key")

	cfg := ConfigFromEnv()
	assert.Equal(t, "postgres://x", cfg.PostgresDSN)
	assert.Equal(t, "params.yaml", cfg.ParamsFile)
	assert.Equal(t, "key", cfg.GeminiAPIKey)
}

func TestOpenStores_RequiresDSN(t *testing.T) {
	_, _, err := OpenStores(context.Background(), Config{PostgresDSN: "postgres://x"})
	assert.True(t, errors.Is(err, ErrMissingDSN))
}

func TestOpenStores_Memory(t *testing.T) {
	stores, cleanup, err := OpenStores(context.Background(), Config{UseMemory: true})
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &memory.CandleStore{}, stores.Candles)
	assert.NotNil(t, stores.Runs)
	assert.NotNil(t, stores.Equity)
	assert.NotNil(t, stores.Optimizations)
	assert.NotNil(t, stores.Summaries)
}

func TestOpenStores_ParquetCandles(t *testing.T) {
	stores, cleanup, err := OpenStores(context.Background(), Config{UseMemory: true, DataDir: t.TempDir()})
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &parquet.CandleStore{}, stores.Candles)
}

func TestRemoteSource(t *testing.T) {
	src, err := RemoteSource(Config{})
	require.NoError(t, err)
	assert.Nil(t, src)

	_, err = RemoteSource(Config{AlpacaAPIKey: "key"})
	assert.True(t, errors.Is(err, marketdata.ErrMissingCredentials))

	src, err = RemoteSource(Config{AlpacaAPIKey: "key", AlpacaAPISecret: "secret"})
	require.NoError(t, err)
	assert.NotNil(t, src)
}

func TestNewService_Memory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	paramsFile := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(paramsFile, []byte("strategies:\n  ma_crossover:\n    fast_period: 3\n    slow_period: 8\n"), 0o644))

	cfg := Config{UseMemory: true, ParamsFile: paramsFile}
	stores, cleanup, err := OpenStores(ctx, cfg)
	require.NoError(t, err)
	defer cleanup()
	require.NoError(t, stores.Candles.InsertBulk(ctx, candles("AAPL", 30)))

	svc, err := NewService(ctx, cfg, stores, nil)
	require.NoError(t, err)

	loaded, err := svc.LoadCandles(ctx, "AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, loaded, 30)

	result, err := svc.BacktestSymbol(ctx, domain.StrategyMACrossover, "AAPL", time.Time{}, time.Time{}, nil, 10000)
	require.NoError(t, err)
	assert.Equal(t, 3.0, result.Params[domain.ParamFastPeriod])
	assert.Equal(t, 8.0, result.Params[domain.ParamSlowPeriod])

	stored, err := svc.GetBacktest(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, stored.RunID)
}

func TestNewService_BadParamsFile(t *testing.T) {
	cfg := Config{UseMemory: true, ParamsFile: filepath.Join(t.TempDir(), "missing.yaml")}
	stores, cleanup, err := OpenStores(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	_, err = NewService(context.Background(), cfg, stores, nil)
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\n\nSTRATLAB_TEST_A=one\nSTRATLAB_TEST_B = two=2 \nmalformed\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("STRATLAB_TEST_A", "preset")
	t.Setenv("STRATLAB_TEST_B", "")

	LoadEnvFile(path)
	assert.Equal(t, "preset", os.Getenv("STRATLAB_TEST_A"))
	assert.Equal(t, "two=2", os.Getenv("STRATLAB_TEST_B"))

	// Missing file is a no-op.
	LoadEnvFile(filepath.Join(t.TempDir(), "nope"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT"}, SplitList(" AAPL, ,MSFT,"))
	assert.Nil(t, SplitList(""))
}
