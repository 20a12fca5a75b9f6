package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// StrategySummaryStore is an in-memory implementation of storage.StrategySummaryStore.
type StrategySummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.StrategySummary // keyed by (strategy_id, run_count)
}

// NewStrategySummaryStore creates a new in-memory strategy summary store.
func NewStrategySummaryStore() *StrategySummaryStore {
	return &StrategySummaryStore{
		data: make(map[string]*domain.StrategySummary),
	}
}

func summaryKey(strategyID domain.StrategyKind, runCount int) string {
	return fmt.Sprintf("%s|%d", strategyID, runCount)
}

// Insert adds a new summary. Returns ErrDuplicateKey if key exists.
func (s *StrategySummaryStore) Insert(_ context.Context, sum *domain.StrategySummary) error {
	if sum == nil || sum.StrategyID == "" || sum.RunCount <= 0 {
		return storage.ErrInvalidInput
	}

	key := summaryKey(sum.StrategyID, sum.RunCount)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	sumCopy := *sum
	s.data[key] = &sumCopy
	return nil
}

// GetByStrategy retrieves all summaries of a strategy, ordered by run_count ASC.
func (s *StrategySummaryStore) GetByStrategy(_ context.Context, strategyID domain.StrategyKind) ([]*domain.StrategySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StrategySummary
	for _, sum := range s.data {
		if sum.StrategyID == strategyID {
			sumCopy := *sum
			result = append(result, &sumCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RunCount < result[j].RunCount
	})
	return result, nil
}

var _ storage.StrategySummaryStore = (*StrategySummaryStore)(nil)
