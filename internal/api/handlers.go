package api

import (
	"net/http"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/reporting"
	"strategy-lab/internal/strategy"
)

// StrategyInfo describes one registered strategy.
type StrategyInfo struct {
	Kind     domain.StrategyKind `json:"kind"`
	Defaults domain.Params       `json:"defaults"`
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	out := make([]StrategyInfo, 0, len(domain.StrategyKinds))
	for _, kind := range domain.StrategyKinds {
		defaults, err := strategy.DefaultParams(kind)
		if err != nil {
			s.writeError(w, err)
			return
		}
		out = append(out, StrategyInfo{Kind: kind, Defaults: defaults})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStrategySummary(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseStrategyKind(r.PathValue("kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	summary, err := s.svc.Summary(r.Context(), kind)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		report := &reporting.SummaryReport{
			GeneratedAt: summary.ComputedAt,
			Summaries:   []*domain.StrategySummary{summary},
		}
		writeText(w, "text/markdown; charset=utf-8", reporting.RenderSummaryMarkdown(report))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleCreateBacktest runs a backtest synchronously.
// ?format=markdown renders the report instead of JSON.
func (s *Server) handleCreateBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	in, err := req.validate()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var result *domain.BacktestResult
	if len(in.candles) > 0 {
		result, err = s.svc.RunBacktest(r.Context(), in.kind, in.symbol, in.candles, in.params, in.initialCapital)
	} else {
		result, err = s.svc.BacktestSymbol(r.Context(), in.kind, in.symbol, in.start, in.end, in.params, in.initialCapital)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "markdown":
		writeText(w, "text/markdown; charset=utf-8", reporting.RenderBacktestMarkdown(s.reports.BacktestResult(result)))
	case "csv":
		writeText(w, "text/csv; charset=utf-8", reporting.RenderTradesCSV(s.reports.BacktestResult(result).Trades))
	default:
		writeJSON(w, http.StatusCreated, result)
	}
}

// handleGetBacktest returns a stored run.
// ?format=markdown and ?format=csv render its report and trade log.
func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.URL.Query().Get("format") {
	case "markdown", "csv":
		report, err := s.reports.Backtest(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if r.URL.Query().Get("format") == "csv" {
			writeText(w, "text/csv; charset=utf-8", reporting.RenderTradesCSV(report.Trades))
			return
		}
		writeText(w, "text/markdown; charset=utf-8", reporting.RenderBacktestMarkdown(report))
	default:
		run, err := s.svc.GetBacktest(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	in, err := req.validate(true)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var result *domain.OptimizationResult
	if len(in.returns) > 0 {
		result, err = s.svc.Optimize(r.Context(), in.returns, in.objective, in.opts)
	} else {
		result, err = s.svc.OptimizeTickers(r.Context(), in.tickers, in.start, in.end, in.objective, in.opts)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		report := s.reports.Optimization(tickersOf(in, result.Weights), result, nil)
		report.Commentary = result.Commentary
		writeText(w, "text/markdown; charset=utf-8", reporting.RenderOptimizationMarkdown(report))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleFrontier traces the efficient frontier.
// ?format=csv renders one row per point with a weight column per ticker.
func (s *Server) handleFrontier(w http.ResponseWriter, r *http.Request) {
	var req OptimizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	in, err := req.validate(false)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var points []domain.EfficientFrontierPoint
	if len(in.returns) > 0 {
		points, err = s.svc.EfficientFrontier(r.Context(), in.returns, in.opts)
	} else {
		points, err = s.svc.FrontierTickers(r.Context(), in.tickers, in.start, in.end, in.opts)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		var weights map[string]float64
		if len(points) > 0 {
			weights = points[0].Weights
		}
		report := s.reports.Optimization(tickersOf(in, weights), nil, points)
		writeText(w, "text/csv; charset=utf-8", reporting.RenderFrontierCSV(report.Tickers, points))
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// tickersOf returns the requested tickers, or the keys of weights when the
// request carried raw returns.
func tickersOf(in *optimizationInput, weights map[string]float64) []string {
	if len(in.tickers) > 0 {
		return in.tickers
	}
	out := make([]string, 0, len(weights))
	for t := range weights {
		out = append(out, t)
	}
	return out
}
