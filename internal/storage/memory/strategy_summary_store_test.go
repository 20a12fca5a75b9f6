package memory

import (
	"context"
	"errors"
	"testing"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

func TestStrategySummaryStore(t *testing.T) {
	store := NewStrategySummaryStore()
	ctx := context.Background()

	for _, n := range []int{5, 2} {
		s := &domain.StrategySummary{StrategyID: domain.StrategyTurtle, RunCount: n, ReturnMean: float64(n)}
		if err := store.Insert(ctx, s); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	err := store.Insert(ctx, &domain.StrategySummary{StrategyID: domain.StrategyTurtle, RunCount: 2})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := store.Insert(ctx, &domain.StrategySummary{StrategyID: domain.StrategyTurtle}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	got, err := store.GetByStrategy(ctx, domain.StrategyTurtle)
	if err != nil {
		t.Fatalf("GetByStrategy failed: %v", err)
	}
	if len(got) != 2 || got[0].RunCount != 2 || got[1].RunCount != 5 {
		t.Errorf("unexpected summaries %v", got)
	}
}
