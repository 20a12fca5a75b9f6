// Package parquet stores candle series as one Parquet file per symbol,
// so historical data can be loaded without a database.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

const fileExt = ".parquet"

// CandleRecord is the on-disk schema of a daily candle.
type CandleRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms, UTC midnight
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// CandleStore implements storage.CandleStore on Parquet files.
// Layout: <DataDir>/<SYMBOL>.parquet, rows sorted by timestamp.
type CandleStore struct {
	DataDir string
	mu      sync.RWMutex
}

// NewCandleStore creates a CandleStore rooted at dataDir.
func NewCandleStore(dataDir string) *CandleStore {
	return &CandleStore{DataDir: dataDir}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds candles. Fails entire batch on duplicate (symbol, date),
// either within the batch or against a symbol's existing file.
func (s *CandleStore) InsertBulk(_ context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bySymbol := make(map[string][]CandleRecord)
	seen := make(map[string]map[int64]struct{})
	for _, c := range candles {
		if c == nil || c.Symbol == "" {
			return storage.ErrInvalidInput
		}
		sym := strings.ToUpper(c.Symbol)
		rec := toRecord(c)
		if seen[sym] == nil {
			seen[sym] = make(map[int64]struct{})
		}
		if _, exists := seen[sym][rec.Timestamp]; exists {
			return storage.ErrDuplicateKey
		}
		seen[sym][rec.Timestamp] = struct{}{}
		bySymbol[sym] = append(bySymbol[sym], rec)
	}

	// First pass: load existing files and check for conflicts.
	merged := make(map[string][]CandleRecord, len(bySymbol))
	for sym, incoming := range bySymbol {
		existing, err := s.read(sym)
		if err != nil {
			return err
		}
		for _, r := range existing {
			if _, dup := seen[sym][r.Timestamp]; dup {
				return storage.ErrDuplicateKey
			}
		}
		all := append(existing, incoming...)
		sort.Slice(all, func(i, j int) bool { return all[i].Timestamp < all[j].Timestamp })
		merged[sym] = all
	}

	// Second pass: write.
	if err := os.MkdirAll(s.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	for sym, records := range merged {
		if err := parquet.WriteFile(s.path(sym), records); err != nil {
			return fmt.Errorf("write %s: %w", sym, err)
		}
	}
	return nil
}

// GetCandles retrieves candles for symbol within [start, end], ordered by date ASC.
// A zero start or end leaves that side unbounded. Unknown symbols yield an empty slice.
func (s *CandleStore) GetCandles(_ context.Context, symbol string, start, end time.Time) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.read(strings.ToUpper(symbol))
	if err != nil {
		return nil, err
	}

	result := make([]*domain.Candle, 0, len(records))
	for _, r := range records {
		c := fromRecord(r)
		if !start.IsZero() && c.Date.Before(start) {
			continue
		}
		if !end.IsZero() && c.Date.After(end) {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

// Symbols returns all symbols with a candle file, sorted ASC.
func (s *CandleStore) Symbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.DataDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	symbols := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *CandleStore) path(symbol string) string {
	return filepath.Join(s.DataDir, symbol+fileExt)
}

// read returns the records of symbol, or nil if it has no file.
func (s *CandleStore) read(symbol string) ([]CandleRecord, error) {
	path := s.path(symbol)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	records, err := parquet.ReadFile[CandleRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", symbol, err)
	}
	return records, nil
}

func toRecord(c *domain.Candle) CandleRecord {
	return CandleRecord{
		Symbol:    strings.ToUpper(c.Symbol),
		Timestamp: c.Date.UTC().UnixMilli(),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

func fromRecord(r CandleRecord) *domain.Candle {
	return &domain.Candle{
		Symbol: r.Symbol,
		Date:   time.UnixMilli(r.Timestamp).UTC(),
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}
}
