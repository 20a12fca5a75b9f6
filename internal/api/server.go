// Package api exposes the lab service over HTTP and WebSocket.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/lab"
	"strategy-lab/internal/metrics"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/optimizer"
	"strategy-lab/internal/params"
	"strategy-lab/internal/reporting"
	"strategy-lab/internal/storage"
	"strategy-lab/internal/strategy"
)

// Config holds server settings.
type Config struct {
	// WriteTimeout bounds each WebSocket frame write.
	WriteTimeout time.Duration
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns default server settings.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Server serves the lab API.
type Server struct {
	svc      *lab.Service
	reports  *reporting.Generator
	config   Config
	upgrader websocket.Upgrader
	logger   *log.Logger
	extra    map[string]http.Handler
}

// NewServer creates a new Server. reports may be nil, in which case
// Markdown and CSV renderings of stored runs are unavailable.
func NewServer(svc *lab.Service, reports *reporting.Generator, config Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if reports == nil {
		reports = reporting.NewGenerator(nil, nil, nil)
	}
	defaults := DefaultConfig()
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	return &Server{
		svc:     svc,
		reports: reports,
		config:  config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Handle registers an additional route served next to the API routes.
// It must be called before Handler or ListenAndServe.
func (s *Server) Handle(pattern string, h http.Handler) {
	if s.extra == nil {
		s.extra = make(map[string]http.Handler)
	}
	s.extra[pattern] = h
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())

	mux.HandleFunc("GET /api/strategies", s.handleListStrategies)
	mux.HandleFunc("GET /api/strategies/{kind}/summary", s.handleStrategySummary)
	mux.HandleFunc("POST /api/backtests", s.handleCreateBacktest)
	mux.HandleFunc("GET /api/backtests/{id}", s.handleGetBacktest)
	mux.HandleFunc("POST /api/optimizations", s.handleOptimize)
	mux.HandleFunc("POST /api/frontier", s.handleFrontier)
	mux.HandleFunc("GET /ws/backtest", s.handleBacktestStream)
	for pattern, h := range s.extra {
		mux.Handle(pattern, h)
	}

	return s.instrument(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("Starting HTTP server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// instrument counts requests by route pattern and status code.
func (s *Server) instrument(next *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		observability.RecordHTTPRequest(route, strconv.Itoa(rec.status))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Printf("Request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, params.ErrUnknownStrategy),
		errors.Is(err, strategy.ErrUnknownStrategyKind),
		errors.Is(err, strategy.ErrInvalidPeriods),
		errors.Is(err, domain.ErrNonFiniteParam),
		errors.Is(err, backtest.ErrNonFiniteCapital),
		errors.Is(err, optimizer.ErrUnknownObjective),
		errors.Is(err, optimizer.ErrInvalidBounds):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, metrics.ErrNoRuns):
		return http.StatusNotFound
	case errors.Is(err, optimizer.ErrInsufficientData),
		errors.Is(err, optimizer.ErrTargetUnreachable),
		errors.Is(err, optimizer.ErrNoValidCandidate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lab.ErrNoCandleSource):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
