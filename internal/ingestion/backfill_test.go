package ingestion

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage/memory"
)

type fakeSource struct {
	series map[string][]*domain.Candle
	failOn map[string]error
	calls  int
}

func (f *fakeSource) GetCandles(_ context.Context, symbol string, _, _ time.Time) ([]*domain.Candle, error) {
	f.calls++
	if err := f.failOn[symbol]; err != nil {
		return nil, err
	}
	return f.series[symbol], nil
}

func series(symbol string, days ...int) []*domain.Candle {
	out := make([]*domain.Candle, 0, len(days))
	for _, d := range days {
		out = append(out, &domain.Candle{Symbol: symbol, Date: day0.AddDate(0, 0, d), Close: 100 + float64(d)})
	}
	return out
}

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0)
}

func TestBackfiller_BackfillRange(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCandleStore()
	src := &fakeSource{
		series: map[string][]*domain.Candle{
			"AAPL": series("AAPL", 2, 0, 1),
			"MSFT": series("MSFT", 0),
		},
		failOn: map[string]error{"BAD": errors.New("boom")},
	}

	b := NewBackfiller(BackfillOptions{Source: src, Store: store, BatchSize: 2, Logger: quietLogger()})
	res, err := b.BackfillRange(ctx, []string{"AAPL", "BAD", "MSFT"}, day0, day0.AddDate(0, 0, 5))
	require.NoError(t, err)

	assert.Equal(t, 4, res.CandlesIngested)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 0, res.DuplicatesSkipped)

	got, err := store.GetCandles(ctx, "AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.NoError(t, ValidateCandleOrdering(got))
}

func TestBackfiller_SkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCandleStore()
	require.NoError(t, store.InsertBulk(ctx, series("AAPL", 1)))

	src := &fakeSource{series: map[string][]*domain.Candle{"AAPL": series("AAPL", 0, 1, 2)}}
	b := NewBackfiller(BackfillOptions{Source: src, Store: store, Logger: quietLogger()})

	res, err := b.BackfillRange(ctx, []string{"AAPL"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.CandlesIngested)
	assert.Equal(t, 1, res.DuplicatesSkipped)
}

func TestBackfiller_RejectsRepeatedDates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCandleStore()
	src := &fakeSource{series: map[string][]*domain.Candle{
		"AAPL": series("AAPL", 0, 1, 1, 2),
		"MSFT": series("MSFT", 0, 1),
	}}

	b := NewBackfiller(BackfillOptions{Source: src, Store: store, Logger: quietLogger()})
	res, err := b.BackfillRange(ctx, []string{"AAPL", "MSFT"}, day0, day0.AddDate(0, 0, 5))
	require.NoError(t, err)

	assert.Equal(t, 2, res.CandlesIngested)
	assert.Equal(t, 1, res.Errors)

	stored, err := store.GetCandles(ctx, "AAPL", day0, day0.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestBackfiller_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBackfiller(BackfillOptions{Source: &fakeSource{}, Store: memory.NewCandleStore(), Logger: quietLogger()})
	_, err := b.BackfillRange(ctx, []string{"AAPL"}, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCachedSource(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCandleStore()
	remote := &fakeSource{series: map[string][]*domain.Candle{"AAPL": series("AAPL", 1, 0)}}
	src := NewCachedSource(store, remote, quietLogger())

	first, err := src.GetCandles(ctx, "AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, first[0].Date.Before(first[1].Date))
	assert.Equal(t, 1, remote.calls)

	second, err := src.GetCandles(ctx, "AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, second, 2)
	assert.Equal(t, 1, remote.calls, "second read should be served locally")
}

func TestCachedSource_LocalOnly(t *testing.T) {
	src := NewCachedSource(memory.NewCandleStore(), nil, quietLogger())
	got, err := src.GetCandles(context.Background(), "AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
