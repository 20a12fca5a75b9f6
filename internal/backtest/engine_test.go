package backtest

import (
	"context"
	"errors"
	"math"
	"testing"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/risk"
)

func risingCandles(n int, from float64) []*domain.Candle {
	out := make([]*domain.Candle, n)
	for i := range out {
		out[i] = candleAt(i, from+float64(i))
	}
	return out
}

func TestEngine_StrategySeesOnlyPrefix(t *testing.T) {
	candles := risingCandles(10, 100)
	strat := NewScriptedStrategy(nil)
	engine := NewEngine(strat, NewMachine("TEST", nil), 10000)

	res, err := engine.Run(context.Background(), candles)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	seen := strat.Seen()
	if len(seen) != len(candles) {
		t.Fatalf("expected %d evaluations, got %d", len(candles), len(seen))
	}
	for i, n := range seen {
		if n != i+1 {
			t.Errorf("step %d: strategy saw %d candles", i, n)
		}
	}
	if len(res.EquityCurve) != len(candles) {
		t.Errorf("expected one equity point per candle, got %d", len(res.EquityCurve))
	}
}

func TestEngine_SkipsSignalOnStopCandle(t *testing.T) {
	candles := []*domain.Candle{candleAt(0, 100), candleAt(1, 95), candleAt(2, 96)}
	strat := NewScriptedStrategy(map[int]*domain.Signal{0: buy(100, 96)})
	engine := NewEngine(strat, NewMachine("TEST", nil), 10000)

	res, err := engine.Run(context.Background(), candles)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Candle 1 stops out, so the strategy is consulted on candles 0 and 2 only.
	seen := strat.Seen()
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 3 {
		t.Errorf("unexpected evaluations %v", seen)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
}

func TestEngine_CashAccounting(t *testing.T) {
	candles := risingCandles(12, 100)
	strat := NewScriptedStrategy(map[int]*domain.Signal{
		0: buy(100, 96),
		4: {Action: domain.ActionSell},
		6: buy(106, 104),
		9: {Action: domain.ActionSell},
	})
	engine := NewEngine(strat, NewMachine("TEST", risk.NewManager()), 10000)

	var steps int
	engine.OnStep(func(domain.EquityPoint, *domain.Trade) { steps++ })

	res, err := engine.Run(context.Background(), candles)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if steps != len(candles) {
		t.Errorf("expected %d observer calls, got %d", len(candles), steps)
	}
	if len(res.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(res.Trades))
	}

	total := 0.0
	for _, tr := range res.Trades {
		total += tr.PnL
	}
	final := res.EquityCurve[len(res.EquityCurve)-1].Equity
	if math.Abs(final-(10000+total)) > 1e-9 {
		t.Errorf("flat equity %f should equal capital plus realized pnl %f", final, 10000+total)
	}
	if res.Final.Side() != domain.SideFlat {
		t.Errorf("expected FLAT, got %s", res.Final.Side())
	}
}

func TestEngine_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(NewScriptedStrategy(nil), NewMachine("TEST", nil), 10000)
	_, err := engine.Run(ctx, risingCandles(5, 100))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
