package memory

import (
	"context"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// OptimizationRunStore is an in-memory implementation of storage.OptimizationRunStore.
type OptimizationRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OptimizationRun // keyed by run_id
}

// NewOptimizationRunStore creates a new in-memory optimization run store.
func NewOptimizationRunStore() *OptimizationRunStore {
	return &OptimizationRunStore{
		data: make(map[string]*domain.OptimizationRun),
	}
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *OptimizationRunStore) Insert(_ context.Context, r *domain.OptimizationRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	runCopy := *r
	runCopy.Tickers = append([]string(nil), r.Tickers...)
	runCopy.Frontier = append([]domain.EfficientFrontierPoint(nil), r.Frontier...)
	s.data[r.RunID] = &runCopy
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *OptimizationRunStore) GetByID(_ context.Context, runID string) (*domain.OptimizationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	runCopy := *r
	return &runCopy, nil
}

var _ storage.OptimizationRunStore = (*OptimizationRunStore)(nil)
