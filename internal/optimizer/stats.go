package optimizer

import (
	"fmt"
	"math"
)

// TradingDaysPerYear annualizes daily return statistics.
const TradingDaysPerYear = 252

// model holds the annualized inputs of the mean-variance search.
// Index i of every slice refers to tickers[i].
type model struct {
	tickers []string
	mu      []float64   // annualized expected returns
	cov     [][]float64 // annualized sample covariance
}

// newModel estimates annualized means and the Bessel-corrected covariance.
// All series must share the same length of at least two observations.
func newModel(tickers []string, series [][]float64) (*model, error) {
	n := len(tickers)
	if n == 0 || len(series) != n {
		return nil, ErrInsufficientData
	}
	obs := len(series[0])
	for i, s := range series {
		if len(s) < 2 {
			return nil, fmt.Errorf("%w: %s has %d returns", ErrInsufficientData, tickers[i], len(s))
		}
		if len(s) != obs {
			return nil, fmt.Errorf("%w: %s has %d returns, expected %d", ErrInsufficientData, tickers[i], len(s), obs)
		}
	}

	means := make([]float64, n)
	for i, s := range series {
		var sum float64
		for _, r := range s {
			sum += r
		}
		means[i] = sum / float64(obs)
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var acc float64
			for k := 0; k < obs; k++ {
				acc += (series[i][k] - means[i]) * (series[j][k] - means[j])
			}
			c := acc / float64(obs-1) * TradingDaysPerYear
			cov[i][j] = c
			cov[j][i] = c
		}
	}

	mu := make([]float64, n)
	for i, m := range means {
		mu[i] = m * TradingDaysPerYear
	}

	for i := range mu {
		if math.IsNaN(mu[i]) || math.IsInf(mu[i], 0) {
			return nil, fmt.Errorf("%w: %s has non-finite returns", ErrInsufficientData, tickers[i])
		}
	}

	return &model{tickers: tickers, mu: mu, cov: cov}, nil
}

// portfolioReturn is wᵀ·mu.
func (m *model) portfolioReturn(w []float64) float64 {
	var r float64
	for i, wi := range w {
		r += wi * m.mu[i]
	}
	return r
}

// portfolioVariance is wᵀ·Σ·w. Tiny negative values from rounding are clamped to 0.
func (m *model) portfolioVariance(w []float64) float64 {
	var v float64
	for i, wi := range w {
		if wi == 0 {
			continue
		}
		for j, wj := range w {
			v += wi * m.cov[i][j] * wj
		}
	}
	if v < 0 {
		return 0
	}
	return v
}

// assetReturnRange returns the min and max single-asset expected return.
func (m *model) assetReturnRange() (lo, hi float64) {
	lo, hi = m.mu[0], m.mu[0]
	for _, r := range m.mu[1:] {
		lo = math.Min(lo, r)
		hi = math.Max(hi, r)
	}
	return lo, hi
}

// candidate is one evaluated weight vector.
type candidate struct {
	weights    []float64
	ret        float64
	variance   float64
	volatility float64
	sharpe     float64
	valid      bool // false if the Sharpe ratio is undefined
}

func (m *model) evaluate(w []float64, riskFree float64) candidate {
	c := candidate{weights: w}
	c.ret = m.portfolioReturn(w)
	c.variance = m.portfolioVariance(w)
	c.volatility = math.Sqrt(c.variance)
	if c.volatility > minVolatility {
		c.sharpe = (c.ret - riskFree) / c.volatility
		c.valid = true
	}
	return c
}

// minVolatility below which the Sharpe ratio is treated as undefined.
const minVolatility = 1e-12
