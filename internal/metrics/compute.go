package metrics

import (
	"math"
	"sort"

	"strategy-lab/internal/domain"
)

// TradingDaysPerYear annualizes daily statistics.
const TradingDaysPerYear = 252

// Compute reduces a trade log and equity curve to performance metrics.
// An empty trade log yields zero metrics with FinalCapital = initialCapital.
// No NaN or Inf reaches the result.
func Compute(trades []domain.Trade, equity []domain.EquityPoint, initialCapital float64) domain.PerformanceMetrics {
	m := domain.PerformanceMetrics{FinalCapital: initialCapital}
	if len(equity) > 0 {
		m.FinalCapital = equity[len(equity)-1].Equity
	}
	if len(trades) == 0 {
		m.FinalCapital = initialCapital
		return m
	}

	m.TotalReturnPct = computeTotalReturnPct(m.FinalCapital, initialCapital)

	var grossProfit, grossLoss float64
	for _, t := range trades {
		if t.PnL > 0 {
			m.WinningTrades++
			grossProfit += t.PnL
		} else if t.PnL < 0 {
			m.LosingTrades++
			grossLoss += t.PnL
		}
	}
	m.TotalTrades = len(trades)
	m.WinRate = computeWinRate(m.WinningTrades, m.TotalTrades)
	m.ProfitFactor = computeProfitFactor(grossProfit, grossLoss)
	if m.WinningTrades > 0 {
		m.AvgWinningTrade = grossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLosingTrade = grossLoss / float64(m.LosingTrades)
	}

	m.SharpeRatio = computeSharpe(PeriodReturns(equity))
	m.MaxDrawdownPct = computeMaxDrawdownPct(equity)
	return m
}

// computeTotalReturnPct is (final - initial) / initial * 100, 0 for a non-positive base.
func computeTotalReturnPct(final, initial float64) float64 {
	if initial <= 0 {
		return 0
	}
	return finite((final - initial) / initial * 100)
}

// computeWinRate calculates win rate as wins / total * 100.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}

// computeProfitFactor is gross profit / |gross loss|; 0 when there are no losses.
func computeProfitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		return 0
	}
	return finite(grossProfit / math.Abs(grossLoss))
}

// PeriodReturns derives r_i = (e_i - e_{i-1}) / e_{i-1} from consecutive
// equity points. Points whose previous equity is zero are skipped.
func PeriodReturns(equity []domain.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (equity[i].Equity-prev)/prev)
	}
	return returns
}

// computeSharpe is mean / sample stddev * sqrt(252).
// Returns 0 with fewer than two returns or zero dispersion.
func computeSharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := computeMean(returns)
	stddev := computeStddev(returns, mean)
	if stddev == 0 {
		return 0
	}
	return finite(mean / stddev * math.Sqrt(TradingDaysPerYear))
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdownPct is the largest peak-to-trough decline of the equity
// curve as a percentage of the running peak, clamped to [0, 100].
func computeMaxDrawdownPct(equity []domain.EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}

	peak := equity[0].Equity
	maxDrawdown := 0.0
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - p.Equity) / peak * 100
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return clamp(finite(maxDrawdown), 0, 100)
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// finite maps NaN and Inf to 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
