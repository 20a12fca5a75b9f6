package ingestion

import (
	"errors"
	"sort"

	"strategy-lab/internal/domain"
)

// ErrInvalidOrdering is returned when candles are not strictly ordered by date.
var ErrInvalidOrdering = errors.New("candles are not in date order")

// SortCandles orders candles by (date ASC, symbol ASC).
func SortCandles(candles []*domain.Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return compareCandles(candles[i], candles[j]) < 0
	})
}

// ValidateCandleOrdering checks that a single-symbol series is strictly
// increasing by date. Returns ErrInvalidOrdering if not.
func ValidateCandleOrdering(candles []*domain.Candle) error {
	for i := 1; i < len(candles); i++ {
		if !candles[i-1].Date.Before(candles[i].Date) {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareCandles returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareCandles(a, b *domain.Candle) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	switch {
	case a.Symbol < b.Symbol:
		return -1
	case a.Symbol > b.Symbol:
		return 1
	}
	return 0
}
