package idhash

import (
	"testing"
	"time"

	"strategy-lab/internal/domain"
)

func TestTradeID(t *testing.T) {
	entry := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trade := &domain.Trade{Symbol: "AAPL", EntryDate: entry}

	id := TradeID("3yZe7d", 0, trade)
	if len(id) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(id))
	}
	if again := TradeID("3yZe7d", 0, &domain.Trade{Symbol: "AAPL", EntryDate: entry}); again != id {
		t.Errorf("not deterministic: %s != %s", again, id)
	}

	variants := map[string]string{
		"seq":    TradeID("3yZe7d", 1, trade),
		"run":    TradeID("8Fk2Pq", 0, trade),
		"symbol": TradeID("3yZe7d", 0, &domain.Trade{Symbol: "MSFT", EntryDate: entry}),
		"entry":  TradeID("3yZe7d", 0, &domain.Trade{Symbol: "AAPL", EntryDate: entry.AddDate(0, 0, 1)}),
	}
	for name, other := range variants {
		if other == id {
			t.Errorf("changing %s should change the id", name)
		}
	}
}

func TestTradeID_IgnoresExitFields(t *testing.T) {
	entry := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	open := &domain.Trade{Symbol: "GOOG", EntryDate: entry}
	closed := &domain.Trade{Symbol: "GOOG", EntryDate: entry, ExitDate: entry.AddDate(0, 0, 9), PnL: 12.5}

	if TradeID("run", 2, open) != TradeID("run", 2, closed) {
		t.Error("exit fields must not affect the id")
	}
}
