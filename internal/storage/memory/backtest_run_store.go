package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// BacktestRunStore is an in-memory implementation of storage.BacktestRunStore.
type BacktestRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BacktestRun // keyed by run_id
}

// NewBacktestRunStore creates a new in-memory backtest run store.
func NewBacktestRunStore() *BacktestRunStore {
	return &BacktestRunStore{
		data: make(map[string]*domain.BacktestRun),
	}
}

// cloneRun copies the run including its slices and params map.
func cloneRun(r *domain.BacktestRun) *domain.BacktestRun {
	runCopy := *r
	runCopy.Params = r.Params.Clone()
	runCopy.Trades = append([]domain.Trade(nil), r.Trades...)
	return &runCopy
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(_ context.Context, r *domain.BacktestRun) error {
	if r == nil || r.RunID == "" || r.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.RunID] = cloneRun(r)
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(_ context.Context, runID string) (*domain.BacktestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneRun(r), nil
}

// GetByStrategy retrieves all runs of a strategy, ordered by created_at ASC.
func (s *BacktestRunStore) GetByStrategy(_ context.Context, strategyID domain.StrategyKind) ([]*domain.BacktestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BacktestRun
	for _, r := range s.data {
		if r.StrategyID == strategyID {
			result = append(result, cloneRun(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)
