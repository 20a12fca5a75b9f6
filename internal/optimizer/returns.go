package optimizer

import (
	"fmt"
	"sort"
	"time"

	"strategy-lab/internal/domain"
)

// AlignedReturns derives daily simple returns for each ticker over the dates
// every ticker has a candle for, keeping the last lookback returns.
// A ticker with fewer than two candles, or an intersection too short to
// yield two returns, is ErrInsufficientData.
func AlignedReturns(candles map[string][]*domain.Candle, lookback int) (map[string][]float64, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: no tickers", ErrInsufficientData)
	}
	if lookback <= 0 {
		lookback = DefaultLookbackDays
	}

	tickers := make([]string, 0, len(candles))
	for t := range candles {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	closes := make(map[string]map[time.Time]float64, len(tickers))
	var common map[time.Time]struct{}
	for _, t := range tickers {
		series := candles[t]
		if len(series) < 2 {
			return nil, fmt.Errorf("%w: %s has %d candles", ErrInsufficientData, t, len(series))
		}

		byDate := make(map[time.Time]float64, len(series))
		for _, c := range series {
			byDate[dayOf(c.Date)] = c.Close
		}
		closes[t] = byDate

		if common == nil {
			common = make(map[time.Time]struct{}, len(byDate))
			for d := range byDate {
				common[d] = struct{}{}
			}
			continue
		}
		for d := range common {
			if _, ok := byDate[d]; !ok {
				delete(common, d)
			}
		}
	}

	dates := make([]time.Time, 0, len(common))
	for d := range common {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	// Need lookback+1 closes for lookback returns.
	if len(dates) > lookback+1 {
		dates = dates[len(dates)-lookback-1:]
	}
	if len(dates) < 3 {
		return nil, fmt.Errorf("%w: %d common dates across %v", ErrInsufficientData, len(dates), tickers)
	}

	out := make(map[string][]float64, len(tickers))
	for _, t := range tickers {
		byDate := closes[t]
		rets := make([]float64, 0, len(dates)-1)
		for i := 1; i < len(dates); i++ {
			prev := byDate[dates[i-1]]
			if prev == 0 {
				return nil, fmt.Errorf("%w: %s has a zero close on %s", ErrInsufficientData, t, dates[i-1].Format(time.DateOnly))
			}
			rets = append(rets, (byDate[dates[i]]-prev)/prev)
		}
		out[t] = rets
	}
	return out, nil
}

// dayOf truncates t to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
