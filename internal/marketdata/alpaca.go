// Package marketdata fetches historical daily candles from external providers.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// ErrMissingCredentials is returned when no API key pair is configured.
var ErrMissingCredentials = errors.New("alpaca api key and secret are required")

// barClient is the subset of the Alpaca client used here.
type barClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaConfig configures AlpacaSource.
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string // optional data API override
	Feed      string // "iex" or "sip"; empty uses the account default
}

// AlpacaSource implements storage.CandleSource using the Alpaca market-data API.
type AlpacaSource struct {
	client barClient
	feed   string
	now    func() time.Time
}

// Compile-time interface check.
var _ storage.CandleSource = (*AlpacaSource)(nil)

// NewAlpacaSource creates a source backed by the Alpaca REST client.
func NewAlpacaSource(cfg AlpacaConfig) (*AlpacaSource, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrMissingCredentials
	}

	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.BaseURL != "" {
		opts.BaseURL = cfg.BaseURL
	}

	return newAlpacaSource(marketdata.NewClient(opts), cfg.Feed), nil
}

func newAlpacaSource(client barClient, feed string) *AlpacaSource {
	return &AlpacaSource{client: client, feed: feed, now: time.Now}
}

// GetCandles fetches daily bars for symbol within [start, end].
// A zero end means now; a zero start means one year before end.
func (s *AlpacaSource) GetCandles(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if symbol == "" {
		return nil, storage.ErrInvalidInput
	}

	if end.IsZero() {
		end = s.now().UTC()
	}
	if start.IsZero() {
		start = end.AddDate(-1, 0, 0)
	}

	sym := strings.ToUpper(symbol)
	bars, err := s.client.GetBars(sym, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      marketdata.Feed(s.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", sym, err)
	}

	candles := make([]*domain.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, &domain.Candle{
			Symbol: sym,
			Date:   dayOf(b.Timestamp),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })
	return candles, nil
}

// dayOf truncates t to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
