package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds multiple candles. Fails entire batch on duplicate (symbol, date).
func (s *CandleStore) InsertBulk(ctx context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol string
		date   int64
	}
	seen := make(map[key]struct{})
	for _, c := range candles {
		if c == nil || c.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := key{c.Symbol, c.Date.Unix()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, c := range candles {
		exists, err := s.exists(ctx, c.Symbol, c.Date)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (symbol, date, open, high, low, close, volume)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(c.Symbol, c.Date.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetCandles retrieves candles for symbol within [start, end], ordered by date ASC.
// A zero start or end leaves that side unbounded.
func (s *CandleStore) GetCandles(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Candle, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT symbol, date, open, high, low, close, volume
		FROM candles FINAL
		WHERE symbol = ?`)
	args := []any{symbol}
	if !start.IsZero() {
		b.WriteString(" AND date >= ?")
		args = append(args, start.UTC())
	}
	if !end.IsZero() {
		b.WriteString(" AND date <= ?")
		args = append(args, end.UTC())
	}
	b.WriteString(" ORDER BY date ASC")

	rows, err := s.conn.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	candles := make([]*domain.Candle, 0)
	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(&c.Symbol, &c.Date, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}
		c.Date = c.Date.UTC()
		candles = append(candles, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}
	return candles, nil
}

// Symbols returns all symbols with at least one candle, sorted ASC.
func (s *CandleStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT symbol FROM candles ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	symbols := make([]string, 0)
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}
	return symbols, nil
}

func (s *CandleStore) exists(ctx context.Context, symbol string, date time.Time) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM candles FINAL
		WHERE symbol = ? AND date = ?
	`, symbol, date.UTC()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
