package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

func TestStrategySummaryStore_InsertAndGet(t *testing.T) {
	conn := setupTestDB(t)

	ctx := context.Background()
	store := NewStrategySummaryStore(conn)

	first := &domain.StrategySummary{
		StrategyID:       domain.StrategyTurtle,
		RunCount:         2,
		Symbols:          2,
		ProfitableRunPct: 50,
		ReturnMean:       1.5,
		ReturnMedian:     1.5,
		ReturnMin:        -2,
		ReturnMax:        5,
		TotalTrades:      7,
		ComputedAt:       day0,
	}
	second := *first
	second.RunCount = 3
	second.TotalTrades = 9

	require.NoError(t, store.Insert(ctx, &second))
	require.NoError(t, store.Insert(ctx, first))
	assert.ErrorIs(t, store.Insert(ctx, first), storage.ErrDuplicateKey)

	got, err := store.GetByStrategy(ctx, domain.StrategyTurtle)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].RunCount)
	assert.Equal(t, 9, got[1].TotalTrades)
	assert.InDelta(t, 50.0, got[0].ProfitableRunPct, 1e-9)
	assert.True(t, day0.Equal(got[0].ComputedAt))
}
