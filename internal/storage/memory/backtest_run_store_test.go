package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

func TestBacktestRunStore_InsertAndGet(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	run := &domain.BacktestRun{
		RunID:          "run1",
		StrategyID:     domain.StrategyTurtle,
		Symbol:         "AAPL",
		InitialCapital: 10000,
		Params:         domain.Params{"entry_days": 20},
		Metrics:        domain.PerformanceMetrics{TotalTrades: 1, FinalCapital: 10500},
		Trades:         []domain.Trade{{Symbol: "AAPL", PnL: 500}},
		CreatedAt:      day0,
	}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the caller's copy must not affect the store.
	run.Params["entry_days"] = 55
	run.Trades[0].PnL = 0

	got, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Params["entry_days"] != 20 {
		t.Errorf("params mismatch: got %f", got.Params["entry_days"])
	}
	if len(got.Trades) != 1 || got.Trades[0].PnL != 500 {
		t.Errorf("trades mismatch: %+v", got.Trades)
	}
	if got.Metrics.FinalCapital != 10500 {
		t.Errorf("metrics mismatch: %+v", got.Metrics)
	}
}

func TestBacktestRunStore_DuplicateAndNotFound(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	run := &domain.BacktestRun{RunID: "run1", StrategyID: domain.StrategyTurtle}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := store.Insert(ctx, run); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Insert(ctx, &domain.BacktestRun{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBacktestRunStore_GetByStrategy(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	runs := []*domain.BacktestRun{
		{RunID: "b", StrategyID: domain.StrategyTurtle, CreatedAt: day0.Add(time.Hour)},
		{RunID: "a", StrategyID: domain.StrategyTurtle, CreatedAt: day0},
		{RunID: "c", StrategyID: domain.StrategyMACrossover, CreatedAt: day0},
	}
	for _, r := range runs {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByStrategy(ctx, domain.StrategyTurtle)
	if err != nil {
		t.Fatalf("GetByStrategy failed: %v", err)
	}
	if len(got) != 2 || got[0].RunID != "a" || got[1].RunID != "b" {
		t.Errorf("unexpected runs %v", got)
	}
}
