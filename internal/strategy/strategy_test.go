package strategy

import (
	"math"
	"testing"
	"time"

	"strategy-lab/internal/domain"
)

// Helper to create candles from closes with a fixed high/low spread.
func makeCandles(closes []float64, spread float64) []*domain.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	result := make([]*domain.Candle, len(closes))
	for i, c := range closes {
		result[i] = &domain.Candle{
			Symbol: "TEST",
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c + spread,
			Low:    c - spread,
			Close:  c,
			Volume: 1000,
		}
	}
	return result
}

func rising(n int, from, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBreakout_InsufficientHistory(t *testing.T) {
	s := NewBreakoutStrategy(20, 10)
	candles := makeCandles(rising(10, 100, 1), 0.5)

	if sig := s.Evaluate(candles); sig != nil {
		t.Errorf("expected nil signal, got %+v", sig)
	}
	if sig := s.Evaluate(nil); sig != nil {
		t.Errorf("expected nil signal on empty history, got %+v", sig)
	}
}

func TestBreakout_EntryAboveChannelHigh(t *testing.T) {
	s := NewBreakoutStrategy(5, 10)
	candles := makeCandles(rising(6, 100, 1), 0.5)

	sig := s.Evaluate(candles)
	if sig == nil {
		t.Fatal("expected BUY signal")
	}
	if sig.Action != domain.ActionBuy {
		t.Errorf("expected BUY, got %s", sig.Action)
	}
	if sig.Price != 105 {
		t.Errorf("expected price 105, got %f", sig.Price)
	}
	// True range per bar = max(1.0, 1.5, 0.5) = 1.5; stop = 105 - 2*1.5
	if sig.StopLoss == nil || !approxEqual(*sig.StopLoss, 102) {
		t.Errorf("expected stop 102, got %v", sig.StopLoss)
	}
}

func TestBreakout_ExitBelowChannelLow(t *testing.T) {
	s := NewBreakoutStrategy(20, 10)
	closes := make([]float64, 11)
	for i := range closes {
		closes[i] = 100
	}
	closes[10] = 95
	candles := makeCandles(closes, 0.5)

	sig := s.Evaluate(candles)
	if sig == nil {
		t.Fatal("expected SELL signal")
	}
	if sig.Action != domain.ActionSell {
		t.Errorf("expected SELL, got %s", sig.Action)
	}
	if sig.StopLoss != nil {
		t.Errorf("exit signal should carry no stop, got %f", *sig.StopLoss)
	}
}

func TestBreakout_NoLookAhead(t *testing.T) {
	s := NewBreakoutStrategy(5, 3)
	candles := makeCandles(append(rising(8, 100, 1), 50, 200, 10), 0.5)

	for k := 1; k <= 8; k++ {
		prefix := make([]*domain.Candle, k)
		copy(prefix, candles[:k])

		got := s.Evaluate(candles[:k])
		want := s.Evaluate(prefix)
		if (got == nil) != (want == nil) {
			t.Fatalf("k=%d: prefix evaluation differs", k)
		}
		if got != nil && got.Action != want.Action {
			t.Errorf("k=%d: expected %s, got %s", k, want.Action, got.Action)
		}
	}
}

func TestAverageTrueRange_UsesPreviousClose(t *testing.T) {
	candles := []*domain.Candle{
		{High: 10, Low: 9, Close: 9.5},
		{High: 12, Low: 11, Close: 11.5}, // gap up: TR = 12 - 9.5
	}
	if got := averageTrueRange(candles, 20); !approxEqual(got, 2.5) {
		t.Errorf("expected ATR 2.5, got %f", got)
	}
	if got := averageTrueRange(candles[:1], 20); got != 0 {
		t.Errorf("expected 0 with a single candle, got %f", got)
	}
}

func TestSupportProximity(t *testing.T) {
	s := NewSupportProximityStrategy(50)

	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
	}
	closes[20] = 91 // low = 90 is the support
	closes[49] = 91.5

	sig := s.Evaluate(makeCandles(closes, 1))
	if sig == nil {
		t.Fatal("expected BUY near support")
	}
	if sig.Action != domain.ActionBuy {
		t.Errorf("expected BUY, got %s", sig.Action)
	}
	if sig.StopLoss == nil || !approxEqual(*sig.StopLoss, 90*0.98) {
		t.Errorf("expected stop %f, got %v", 90*0.98, sig.StopLoss)
	}

	closes[49] = 95
	if sig := s.Evaluate(makeCandles(closes, 1)); sig != nil {
		t.Errorf("expected no signal far from support, got %+v", sig)
	}

	if sig := s.Evaluate(makeCandles(closes[:49], 1)); sig != nil {
		t.Errorf("expected nil with short history, got %+v", sig)
	}
}

func TestMACrossover(t *testing.T) {
	s := NewMACrossoverStrategy(20, 50)

	up := makeCandles(rising(60, 100, 1), 0.5)
	sig := s.Evaluate(up)
	if sig == nil || sig.Action != domain.ActionBuy {
		t.Fatalf("expected BUY on uptrend, got %+v", sig)
	}
	slow, _ := simpleMovingAverage(up, 50)
	if sig.StopLoss == nil || !approxEqual(*sig.StopLoss, slow) {
		t.Errorf("expected stop at slow SMA %f, got %v", slow, sig.StopLoss)
	}

	down := makeCandles(rising(60, 200, -1), 0.5)
	sig = s.Evaluate(down)
	if sig == nil || sig.Action != domain.ActionSell {
		t.Fatalf("expected SELL on downtrend, got %+v", sig)
	}

	if sig := s.Evaluate(up[:49]); sig != nil {
		t.Errorf("expected nil with short history, got %+v", sig)
	}
}

func TestStrategy_Deterministic(t *testing.T) {
	candles := makeCandles(rising(80, 100, 0.7), 0.9)
	for _, kind := range domain.StrategyKinds {
		s, err := FromParams(kind, nil)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		first := s.Evaluate(candles)
		for run := 0; run < 3; run++ {
			again := s.Evaluate(candles)
			if (first == nil) != (again == nil) {
				t.Fatalf("%s: run %d differs", kind, run)
			}
			if first != nil && (first.Action != again.Action || first.Reasoning != again.Reasoning) {
				t.Errorf("%s: run %d signal differs", kind, run)
			}
		}
	}
}
