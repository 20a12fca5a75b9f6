package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/storage"
)

// BacktestRunStore implements storage.BacktestRunStore using PostgreSQL.
// Runs live in backtest_runs; their trades in backtest_trades.
type BacktestRunStore struct {
	pool *Pool
}

// NewBacktestRunStore creates a new BacktestRunStore.
func NewBacktestRunStore(pool *Pool) *BacktestRunStore {
	return &BacktestRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

// Insert adds a run and its trades atomically. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(ctx context.Context, r *domain.BacktestRun) error {
	if r == nil || r.RunID == "" || r.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	params, err := json.Marshal(r.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	metrics, err := json.Marshal(r.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO backtest_runs (
			run_id, strategy_id, symbol,
			period_start, period_end, initial_capital,
			params, metrics, total_return_pct, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		r.RunID, string(r.StrategyID), r.Symbol,
		nullableTime(r.PeriodStart), nullableTime(r.PeriodEnd), r.InitialCapital,
		params, metrics, r.Metrics.TotalReturnPct, r.CreatedAt,
	)
	if err != nil {
		return classify("insert backtest run", err)
	}

	if len(r.Trades) > 0 {
		batch := &pgx.Batch{}
		for i, t := range r.Trades {
			batch.Queue(`
				INSERT INTO backtest_trades (
					run_id, seq, trade_id, symbol, side,
					entry_date, exit_date, entry_price, exit_price, quantity,
					entry_signal, exit_signal,
					pnl, pnl_percentage, duration_days, commission
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			`,
				r.RunID, i, idhash.TradeID(r.RunID, i, &r.Trades[i]), t.Symbol, string(t.Side),
				t.EntryDate, t.ExitDate, t.EntryPrice, t.ExitPrice, t.Quantity,
				t.EntrySignal, t.ExitSignal,
				t.PnL, t.PnLPercentage, t.DurationDays, t.Commission,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return classify("insert backtest trades", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a run with its trades. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	query := `
		SELECT
			run_id, strategy_id, symbol,
			period_start, period_end, initial_capital,
			params, metrics, created_at
		FROM backtest_runs
		WHERE run_id = $1
	`

	r, err := scanBacktestRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		return nil, classify("get backtest run by id", err)
	}

	trades, err := s.getTrades(ctx, runID)
	if err != nil {
		return nil, err
	}
	r.Trades = trades
	return r, nil
}

// GetByStrategy retrieves all runs of a strategy, ordered by created_at ASC.
func (s *BacktestRunStore) GetByStrategy(ctx context.Context, strategyID domain.StrategyKind) ([]*domain.BacktestRun, error) {
	query := `
		SELECT
			run_id, strategy_id, symbol,
			period_start, period_end, initial_capital,
			params, metrics, created_at
		FROM backtest_runs
		WHERE strategy_id = $1
		ORDER BY created_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(strategyID))
	if err != nil {
		return nil, fmt.Errorf("query backtest runs by strategy: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		r, err := scanBacktestRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}

	for _, r := range runs {
		trades, err := s.getTrades(ctx, r.RunID)
		if err != nil {
			return nil, err
		}
		r.Trades = trades
	}
	return runs, nil
}

func (s *BacktestRunStore) getTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	query := `
		SELECT
			symbol, side,
			entry_date, exit_date, entry_price, exit_price, quantity,
			entry_signal, exit_signal,
			pnl, pnl_percentage, duration_days, commission
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query backtest trades: %w", err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		var t domain.Trade
		var side string
		err := rows.Scan(
			&t.Symbol, &side,
			&t.EntryDate, &t.ExitDate, &t.EntryPrice, &t.ExitPrice, &t.Quantity,
			&t.EntrySignal, &t.ExitSignal,
			&t.PnL, &t.PnLPercentage, &t.DurationDays, &t.Commission,
		)
		if err != nil {
			return nil, fmt.Errorf("scan backtest trade row: %w", err)
		}
		t.Side = domain.Side(side)
		t.EntryDate = t.EntryDate.UTC()
		t.ExitDate = t.ExitDate.UTC()
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest trade rows: %w", err)
	}
	return trades, nil
}

// scanBacktestRun scans a single row without trades.
func scanBacktestRun(row pgx.Row) (*domain.BacktestRun, error) {
	var r domain.BacktestRun
	var strategyID string
	var periodStart, periodEnd *time.Time
	var params, metrics []byte

	err := row.Scan(
		&r.RunID, &strategyID, &r.Symbol,
		&periodStart, &periodEnd, &r.InitialCapital,
		&params, &metrics, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.StrategyID = domain.StrategyKind(strategyID)
	if periodStart != nil {
		r.PeriodStart = periodStart.UTC()
	}
	if periodEnd != nil {
		r.PeriodEnd = periodEnd.UTC()
	}
	r.CreatedAt = r.CreatedAt.UTC()
	if err := json.Unmarshal(params, &r.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	if err := json.Unmarshal(metrics, &r.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	return &r, nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
