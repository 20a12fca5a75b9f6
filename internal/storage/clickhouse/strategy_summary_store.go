package clickhouse

import (
	"context"
	"fmt"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// StrategySummaryStore implements storage.StrategySummaryStore using ClickHouse.
type StrategySummaryStore struct {
	conn *Conn
}

// NewStrategySummaryStore creates a new StrategySummaryStore.
func NewStrategySummaryStore(conn *Conn) *StrategySummaryStore {
	return &StrategySummaryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.StrategySummaryStore = (*StrategySummaryStore)(nil)

// Insert adds a new summary. Returns ErrDuplicateKey if (strategy_id, run_count) exists.
func (s *StrategySummaryStore) Insert(ctx context.Context, a *domain.StrategySummary) error {
	if a == nil || a.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	// Check if exists (ReplacingMergeTree will replace, but we want append-only semantics)
	exists, err := s.exists(ctx, a.StrategyID, a.RunCount)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO strategy_summaries (
			strategy_id, run_count, symbols, profitable_run_pct,
			return_mean, return_median, return_p10, return_p90,
			return_min, return_max, return_stddev,
			sharpe_mean, max_drawdown_mean, max_drawdown_max,
			total_trades, computed_at
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?,
			?, ?
		)
	`

	err = s.conn.Exec(ctx, query,
		string(a.StrategyID), int64(a.RunCount), int64(a.Symbols), a.ProfitableRunPct,
		a.ReturnMean, a.ReturnMedian, a.ReturnP10, a.ReturnP90,
		a.ReturnMin, a.ReturnMax, a.ReturnStddev,
		a.SharpeMean, a.MaxDrawdownMean, a.MaxDrawdownMax,
		int64(a.TotalTrades), a.ComputedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert strategy summary: %w", err)
	}
	return nil
}

// GetByStrategy retrieves all summaries of a strategy, ordered by run_count ASC.
func (s *StrategySummaryStore) GetByStrategy(ctx context.Context, strategyID domain.StrategyKind) ([]*domain.StrategySummary, error) {
	query := `
		SELECT
			strategy_id, run_count, symbols, profitable_run_pct,
			return_mean, return_median, return_p10, return_p90,
			return_min, return_max, return_stddev,
			sharpe_mean, max_drawdown_mean, max_drawdown_max,
			total_trades, computed_at
		FROM strategy_summaries FINAL
		WHERE strategy_id = ?
		ORDER BY run_count ASC
	`

	rows, err := s.conn.Query(ctx, query, string(strategyID))
	if err != nil {
		return nil, fmt.Errorf("query by strategy: %w", err)
	}
	defer rows.Close()

	return scanStrategySummaries(rows)
}

func (s *StrategySummaryStore) exists(ctx context.Context, strategyID domain.StrategyKind, runCount int) (bool, error) {
	query := `
		SELECT count(*) FROM strategy_summaries FINAL
		WHERE strategy_id = ? AND run_count = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, string(strategyID), int64(runCount)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanStrategySummaries scans multiple rows into a slice.
func scanStrategySummaries(rows chRows) ([]*domain.StrategySummary, error) {
	summaries := make([]*domain.StrategySummary, 0)

	for rows.Next() {
		var a domain.StrategySummary
		var strategyID string
		var runCount, symbols, totalTrades int64
		err := rows.Scan(
			&strategyID, &runCount, &symbols, &a.ProfitableRunPct,
			&a.ReturnMean, &a.ReturnMedian, &a.ReturnP10, &a.ReturnP90,
			&a.ReturnMin, &a.ReturnMax, &a.ReturnStddev,
			&a.SharpeMean, &a.MaxDrawdownMean, &a.MaxDrawdownMax,
			&totalTrades, &a.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		a.StrategyID = domain.StrategyKind(strategyID)
		a.RunCount = int(runCount)
		a.Symbols = int(symbols)
		a.TotalTrades = int(totalTrades)
		a.ComputedAt = a.ComputedAt.UTC()
		summaries = append(summaries, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows: %w", err)
	}

	return summaries, nil
}
