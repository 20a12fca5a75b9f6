package memory

import (
	"context"
	"errors"
	"testing"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

func TestOptimizationRunStore(t *testing.T) {
	store := NewOptimizationRunStore()
	ctx := context.Background()

	msg := "target return 0.9 unreachable"
	failed := &domain.OptimizationRun{
		RunID:     "opt1",
		Tickers:   []string{"AAPL", "MSFT"},
		Objective: domain.ObjectiveTargetReturn,
		Error:     &msg,
		CreatedAt: day0,
	}
	ok := &domain.OptimizationRun{
		RunID:     "opt2",
		Tickers:   []string{"AAPL", "MSFT"},
		Objective: domain.ObjectiveMinVariance,
		Result: &domain.OptimizationResult{
			Weights: map[string]float64{"AAPL": 0.4, "MSFT": 0.6},
			Method:  domain.ObjectiveMinVariance,
		},
		CreatedAt: day0,
	}

	for _, r := range []*domain.OptimizationRun{failed, ok} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := store.Insert(ctx, ok); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetByID(ctx, "opt1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Error == nil || *got.Error != msg || got.Result != nil {
		t.Errorf("failed run mismatch: %+v", got)
	}

	got, err = store.GetByID(ctx, "opt2")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Result == nil || got.Result.Weights["MSFT"] != 0.6 {
		t.Errorf("result mismatch: %+v", got.Result)
	}

	if _, err := store.GetByID(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
