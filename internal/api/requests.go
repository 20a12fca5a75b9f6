package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/ingestion"
	"strategy-lab/internal/optimizer"
)

// DefaultInitialCapital is used when a request does not name one.
const DefaultInitialCapital = 100000

// maxBodyBytes caps request bodies; inline candle series are the largest.
const maxBodyBytes = 8 << 20

var errBadRequest = errors.New("bad request")

// BacktestRequest is the body of POST /api/backtests.
// Candles, when present, are sorted by date and simulated; a repeated date
// is rejected. Otherwise candles for Symbol in [Start, End] are loaded from
// the candle source.
type BacktestRequest struct {
	Strategy       string           `json:"strategy"`
	Symbol         string           `json:"symbol"`
	Start          string           `json:"start,omitempty"` // YYYY-MM-DD
	End            string           `json:"end,omitempty"`   // YYYY-MM-DD
	Params         domain.Params    `json:"params,omitempty"`
	InitialCapital float64          `json:"initial_capital,omitempty"`
	Candles        []*domain.Candle `json:"candles,omitempty"`
}

// backtestInput is a validated BacktestRequest.
type backtestInput struct {
	kind           domain.StrategyKind
	symbol         string
	start, end     time.Time
	params         domain.Params
	initialCapital float64
	candles        []*domain.Candle
}

func (req *BacktestRequest) validate() (*backtestInput, error) {
	kind, err := domain.ParseStrategyKind(req.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", errBadRequest)
	}
	start, err := parseDate("start", req.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end", req.End)
	if err != nil {
		return nil, err
	}
	capital := req.InitialCapital
	if capital == 0 {
		capital = DefaultInitialCapital
	}
	if capital < 0 || math.IsNaN(capital) || math.IsInf(capital, 0) {
		return nil, fmt.Errorf("%w: initial_capital must be a positive finite number", errBadRequest)
	}
	if err := req.Params.CheckFinite(); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(req.Candles) > 0 {
		for i, c := range req.Candles {
			if c == nil {
				return nil, fmt.Errorf("%w: candles[%d] is null", errBadRequest, i)
			}
		}
		ingestion.SortCandles(req.Candles)
		if err := ingestion.ValidateCandleOrdering(req.Candles); err != nil {
			return nil, fmt.Errorf("%w: candles: %v (repeated date)", errBadRequest, err)
		}
	}

	return &backtestInput{
		kind:           kind,
		symbol:         symbol,
		start:          start,
		end:            end,
		params:         req.Params,
		initialCapital: capital,
		candles:        req.Candles,
	}, nil
}

// backtestRequestFromQuery builds a BacktestRequest from the query string
// of GET /ws/backtest. Strategy parameters are passed as p.<name>=<value>.
func backtestRequestFromQuery(q url.Values) (*BacktestRequest, error) {
	req := &BacktestRequest{
		Strategy: q.Get("strategy"),
		Symbol:   q.Get("symbol"),
		Start:    q.Get("start"),
		End:      q.Get("end"),
	}
	if v := q.Get("initial_capital"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: initial_capital: %v", errBadRequest, err)
		}
		req.InitialCapital = f
	}
	for key, values := range q {
		name, ok := strings.CutPrefix(key, "p.")
		if !ok || len(values) == 0 {
			continue
		}
		f, err := strconv.ParseFloat(values[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: param %s: %v", errBadRequest, name, err)
		}
		if req.Params == nil {
			req.Params = make(domain.Params)
		}
		req.Params[name] = f
	}
	return req, nil
}

// OptimizationRequest is the body of POST /api/optimizations and
// POST /api/frontier. Returns, when present, are optimized as given;
// otherwise returns are derived from candles of Tickers in [Start, End].
type OptimizationRequest struct {
	Tickers   []string             `json:"tickers,omitempty"`
	Returns   map[string][]float64 `json:"returns,omitempty"`
	Objective string               `json:"objective,omitempty"`
	Start     string               `json:"start,omitempty"`
	End       string               `json:"end,omitempty"`

	Iterations     int      `json:"iterations,omitempty"`
	RiskFreeRate   *float64 `json:"risk_free_rate,omitempty"`
	MinWeight      float64  `json:"min_weight,omitempty"`
	MaxWeight      float64  `json:"max_weight,omitempty"`
	TargetReturn   float64  `json:"target_return,omitempty"`
	Tolerance      float64  `json:"tolerance,omitempty"`
	LookbackDays   int      `json:"lookback_days,omitempty"`
	FrontierPoints int      `json:"frontier_points,omitempty"`
	Seed           *uint64  `json:"seed,omitempty"`
}

type optimizationInput struct {
	tickers    []string
	returns    map[string][]float64
	objective  domain.Objective
	start, end time.Time
	opts       optimizer.Options
}

func (req *OptimizationRequest) validate(needObjective bool) (*optimizationInput, error) {
	in := &optimizationInput{returns: req.Returns}

	if needObjective {
		objective := req.Objective
		if objective == "" {
			objective = string(domain.ObjectiveMaxSharpe)
		}
		o, err := domain.ParseObjective(objective)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		in.objective = o
	}

	if len(req.Returns) == 0 {
		for _, t := range req.Tickers {
			if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
				in.tickers = append(in.tickers, t)
			}
		}
		if len(in.tickers) == 0 {
			return nil, fmt.Errorf("%w: tickers or returns are required", errBadRequest)
		}
	}

	var err error
	if in.start, err = parseDate("start", req.Start); err != nil {
		return nil, err
	}
	if in.end, err = parseDate("end", req.End); err != nil {
		return nil, err
	}

	in.opts = optimizer.Options{
		Iterations:     req.Iterations,
		RiskFreeRate:   req.RiskFreeRate,
		MinWeight:      req.MinWeight,
		MaxWeight:      req.MaxWeight,
		TargetReturn:   req.TargetReturn,
		Tolerance:      req.Tolerance,
		LookbackDays:   req.LookbackDays,
		FrontierPoints: req.FrontierPoints,
	}
	if req.Seed != nil {
		in.opts.Rand = rand.New(rand.NewPCG(*req.Seed, *req.Seed))
	}
	return in, nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", errBadRequest, field)
	}
	return t, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
