package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// OptimizationRunStore implements storage.OptimizationRunStore using PostgreSQL.
type OptimizationRunStore struct {
	pool *Pool
}

// NewOptimizationRunStore creates a new OptimizationRunStore.
func NewOptimizationRunStore(pool *Pool) *OptimizationRunStore {
	return &OptimizationRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OptimizationRunStore = (*OptimizationRunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *OptimizationRunStore) Insert(ctx context.Context, r *domain.OptimizationRun) error {
	if r == nil || r.RunID == "" || !r.Objective.IsValid() {
		return storage.ErrInvalidInput
	}

	var result, frontier []byte
	var err error
	if r.Result != nil {
		if result, err = json.Marshal(r.Result); err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
	}
	if len(r.Frontier) > 0 {
		if frontier, err = json.Marshal(r.Frontier); err != nil {
			return fmt.Errorf("marshal frontier: %w", err)
		}
	}

	tickers := r.Tickers
	if tickers == nil {
		tickers = []string{}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO optimization_runs (
			run_id, tickers, objective, result, frontier, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		r.RunID, tickers, string(r.Objective), result, frontier, r.Error, r.CreatedAt,
	)
	return classify("insert optimization run", err)
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *OptimizationRunStore) GetByID(ctx context.Context, runID string) (*domain.OptimizationRun, error) {
	query := `
		SELECT run_id, tickers, objective, result, frontier, error, created_at
		FROM optimization_runs
		WHERE run_id = $1
	`

	var r domain.OptimizationRun
	var objective string
	var result, frontier []byte

	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&r.RunID, &r.Tickers, &objective, &result, &frontier, &r.Error, &r.CreatedAt,
	)
	if err != nil {
		return nil, classify("get optimization run by id", err)
	}

	r.Objective = domain.Objective(objective)
	r.CreatedAt = r.CreatedAt.UTC()
	if result != nil {
		r.Result = &domain.OptimizationResult{}
		if err := json.Unmarshal(result, r.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if frontier != nil {
		if err := json.Unmarshal(frontier, &r.Frontier); err != nil {
			return nil, fmt.Errorf("unmarshal frontier: %w", err)
		}
	}
	return &r, nil
}
