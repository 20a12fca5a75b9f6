package clickhouse

import (
	"context"
	"fmt"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// EquityCurveStore implements storage.EquityCurveStore using ClickHouse.
type EquityCurveStore struct {
	conn *Conn
}

// NewEquityCurveStore creates a new EquityCurveStore.
func NewEquityCurveStore(conn *Conn) *EquityCurveStore {
	return &EquityCurveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)

// InsertBulk adds the equity curve of a run. Fails entire batch on duplicate (run_id, date).
// A run's curve is written once: any existing point for runID is a duplicate.
func (s *EquityCurveStore) InsertBulk(ctx context.Context, runID string, points []domain.EquityPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(points))
	for _, p := range points {
		k := p.Date.Unix()
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM equity_curves FINAL WHERE run_id = ?
	`, runID).Scan(&count)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO equity_curves (run_id, date, equity)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, p := range points {
		if err := batch.Append(runID, p.Date.UTC(), p.Equity); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves the curve of a run, ordered by date ASC.
func (s *EquityCurveStore) GetByRunID(ctx context.Context, runID string) ([]domain.EquityPoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT date, equity
		FROM equity_curves FINAL
		WHERE run_id = ?
		ORDER BY date ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity curve: %w", err)
	}
	defer rows.Close()

	points := make([]domain.EquityPoint, 0)
	for rows.Next() {
		var p domain.EquityPoint
		if err := rows.Scan(&p.Date, &p.Equity); err != nil {
			return nil, fmt.Errorf("scan equity row: %w", err)
		}
		p.Date = p.Date.UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity rows: %w", err)
	}
	return points, nil
}
