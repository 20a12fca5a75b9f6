package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Candle // keyed by (symbol, date)
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]*domain.Candle),
	}
}

// candleKey generates a unique key for a candle.
func candleKey(symbol string, date time.Time) string {
	return fmt.Sprintf("%s|%d", symbol, date.Unix())
}

// InsertBulk adds multiple candles. Fails entire batch on duplicate.
func (s *CandleStore) InsertBulk(_ context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(candles))

	for _, c := range candles {
		if c == nil || c.Symbol == "" || c.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := candleKey(c.Symbol, c.Date)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, c := range candles {
		candleCopy := *c
		s.data[candleKey(c.Symbol, c.Date)] = &candleCopy
	}

	return nil
}

// GetCandles retrieves candles for symbol within [start, end] (inclusive), ordered by date ASC.
func (s *CandleStore) GetCandles(_ context.Context, symbol string, start, end time.Time) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if c.Symbol != symbol {
			continue
		}
		if !start.IsZero() && c.Date.Before(start) {
			continue
		}
		if !end.IsZero() && c.Date.After(end) {
			continue
		}
		candleCopy := *c
		result = append(result, &candleCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// Symbols returns all symbols with at least one candle, sorted ASC.
func (s *CandleStore) Symbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, c := range s.data {
		seen[c.Symbol] = struct{}{}
	}
	result := make([]string, 0, len(seen))
	for sym := range seen {
		result = append(result, sym)
	}
	sort.Strings(result)
	return result, nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
