package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBars struct {
	bars    []marketdata.Bar
	err     error
	symbol  string
	request marketdata.GetBarsRequest
}

func (f *fakeBars) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.symbol = symbol
	f.request = req
	return f.bars, f.err
}

func TestAlpacaSource_GetCandles(t *testing.T) {
	day := time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC)
	fake := &fakeBars{bars: []marketdata.Bar{
		{Timestamp: day.AddDate(0, 0, 1), Open: 11, High: 12, Low: 10, Close: 11.5, Volume: 2000},
		{Timestamp: day, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1000},
	}}
	src := newAlpacaSource(fake, "iex")

	candles, err := src.GetCandles(context.Background(), "aapl", day, day.AddDate(0, 0, 5))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", fake.symbol)
	assert.Equal(t, marketdata.OneDay, fake.request.TimeFrame)
	require.Len(t, candles, 2)
	assert.Equal(t, "AAPL", candles[0].Symbol)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), candles[0].Date)
	assert.InDelta(t, 10.5, candles[0].Close, 1e-9)
	assert.InDelta(t, 2000.0, candles[1].Volume, 1e-9)
}

func TestAlpacaSource_DefaultWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakeBars{}
	src := newAlpacaSource(fake, "")
	src.now = func() time.Time { return now }

	candles, err := src.GetCandles(context.Background(), "MSFT", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, candles)
	assert.Equal(t, now, fake.request.End)
	assert.Equal(t, now.AddDate(-1, 0, 0), fake.request.Start)
}

func TestAlpacaSource_Errors(t *testing.T) {
	src := newAlpacaSource(&fakeBars{err: errors.New("rate limited")}, "")

	_, err := src.GetCandles(context.Background(), "AAPL", time.Time{}, time.Time{})
	assert.ErrorContains(t, err, "rate limited")

	_, err = src.GetCandles(context.Background(), "", time.Time{}, time.Time{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.GetCandles(ctx, "AAPL", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewAlpacaSource(AlpacaConfig{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}
