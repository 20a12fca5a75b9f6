package strategy

import (
	"math"

	"strategy-lab/internal/domain"
)

// highestHigh returns the max High over candles, or 0 if empty.
func highestHigh(candles []*domain.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	hi := candles[0].High
	for _, c := range candles[1:] {
		if c.High > hi {
			hi = c.High
		}
	}
	return hi
}

// lowestLow returns the min Low over candles, or 0 if empty.
func lowestLow(candles []*domain.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	lo := candles[0].Low
	for _, c := range candles[1:] {
		if c.Low < lo {
			lo = c.Low
		}
	}
	return lo
}

// simpleMovingAverage returns the mean close of the last period candles.
// Returns false if history is shorter than period.
func simpleMovingAverage(history []*domain.Candle, period int) (float64, bool) {
	if period <= 0 || len(history) < period {
		return 0, false
	}
	var sum float64
	for _, c := range history[len(history)-period:] {
		sum += c.Close
	}
	return sum / float64(period), true
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(c, prev *domain.Candle) float64 {
	return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prev.Close), math.Abs(c.Low-prev.Close)))
}

// averageTrueRange returns the mean true range over the last up to period
// bars. The first candle has no previous close and never contributes.
// Returns 0 when fewer than two candles are available.
func averageTrueRange(history []*domain.Candle, period int) float64 {
	n := len(history)
	if n < 2 || period <= 0 {
		return 0
	}
	start := n - period
	if start < 1 {
		start = 1
	}
	var sum float64
	for i := start; i < n; i++ {
		sum += trueRange(history[i], history[i-1])
	}
	return sum / float64(n-start)
}
