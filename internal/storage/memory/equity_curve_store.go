package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// EquityCurveStore is an in-memory implementation of storage.EquityCurveStore.
type EquityCurveStore struct {
	mu   sync.RWMutex
	data map[string][]domain.EquityPoint // keyed by run_id
}

// NewEquityCurveStore creates a new in-memory equity curve store.
func NewEquityCurveStore() *EquityCurveStore {
	return &EquityCurveStore{
		data: make(map[string][]domain.EquityPoint),
	}
}

// InsertBulk adds the curve of a run. Fails entire batch on duplicate (run_id, date).
func (s *EquityCurveStore) InsertBulk(_ context.Context, runID string, points []domain.EquityPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[int64]struct{}, len(s.data[runID])+len(points))
	for _, p := range s.data[runID] {
		existing[p.Date.Unix()] = struct{}{}
	}
	for _, p := range points {
		if _, exists := existing[p.Date.Unix()]; exists {
			return storage.ErrDuplicateKey
		}
		existing[p.Date.Unix()] = struct{}{}
	}

	s.data[runID] = append(s.data[runID], points...)
	return nil
}

// GetByRunID retrieves the curve of a run, ordered by date ASC.
func (s *EquityCurveStore) GetByRunID(_ context.Context, runID string) ([]domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := append([]domain.EquityPoint(nil), s.data[runID]...)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)
