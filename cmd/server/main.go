// Package main provides the lab server, which runs all components together:
// - API (continuous): backtests, optimizations and the equity stream
// - Backfill (scheduled): daily candles from Alpaca into the candle store
// - Sweep (scheduled): every strategy on every symbol, then summaries
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"strategy-lab/internal/api"
	"strategy-lab/internal/app"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/ingestion"
	"strategy-lab/internal/lab"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/reporting"
	"strategy-lab/internal/storage"
)

// Server holds all components of the unified service.
type Server struct {
	// Configuration
	addr             string
	symbols          []string
	kinds            []domain.StrategyKind
	window           time.Duration
	initialCapital   float64
	sweepInterval    time.Duration
	backfillInterval time.Duration

	// Components
	stores *app.Stores
	svc    *lab.Service
	api    *api.Server
	remote storage.CandleSource
	logger *log.Logger

	// State
	mu              sync.Mutex
	started         time.Time
	lastSweep       time.Time
	lastBackfill    time.Time
	sweepRunning    bool
	backfillRunning bool

	// Stats
	sweeps    int
	backfills int
}

func main() {
	// Load .env file if exists
	app.LoadEnvFile(".env")

	// Parse flags (env vars as defaults)
	cfg := app.ConfigFromEnv()
	cfg.RegisterFlags(flag.CommandLine)
	addr := flag.String("addr", envOr("LAB_ADDR", ":8080"), "HTTP listen address")
	symbols := flag.String("symbols", os.Getenv("LAB_SYMBOLS"), "Comma-separated symbols to sweep (default all stored symbols)")
	strategies := flag.String("strategies", "", "Comma-separated strategies to sweep (default all)")
	window := flag.Duration("window", 365*24*time.Hour, "Candle window of scheduled sweeps and backfills")
	capital := flag.Float64("capital", api.DefaultInitialCapital, "Initial capital of sweep runs")
	sweepInterval := flag.Duration("sweep-interval", 24*time.Hour, "Sweep interval (0 disables)")
	backfillInterval := flag.Duration("backfill-interval", 24*time.Hour, "Alpaca backfill interval (0 disables)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if err := cfg.Validate(); err != nil {
		logger.Fatal(err)
	}
	kinds, err := parseKinds(app.SplitList(*strategies))
	if err != nil {
		logger.Fatalf("Invalid --strategies: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := app.OpenStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	svc, err := app.NewService(ctx, cfg, stores, logger)
	if err != nil {
		logger.Fatalf("Failed to create service: %v", err)
	}
	remote, err := app.RemoteSource(cfg)
	if err != nil {
		logger.Fatalf("Failed to create candle source: %v", err)
	}

	reports := reporting.NewGenerator(stores.Runs, stores.Equity, stores.Summaries)

	server := &Server{
		addr:             *addr,
		symbols:          app.SplitList(*symbols),
		kinds:            kinds,
		window:           *window,
		initialCapital:   *capital,
		sweepInterval:    *sweepInterval,
		backfillInterval: *backfillInterval,
		stores:           stores,
		svc:              svc,
		api:              api.NewServer(svc, reports, api.DefaultConfig(), logger),
		remote:           remote,
		logger:           logger,
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Run the unified server
	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseKinds(names []string) ([]domain.StrategyKind, error) {
	if len(names) == 0 {
		return domain.StrategyKinds, nil
	}
	kinds := make([]domain.StrategyKind, 0, len(names))
	for _, n := range names {
		k, err := domain.ParseStrategyKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Run starts the unified server with all components.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting unified server...")
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()

	// Create error channel for goroutines
	errCh := make(chan error, 3)

	// Start HTTP server in background
	go func() {
		if err := s.serveHTTP(ctx); err != nil {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	// Start backfill scheduler in background
	if s.remote != nil && s.backfillInterval > 0 {
		go func() {
			err := s.runBackfillScheduler(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("backfill scheduler: %w", err)
			}
		}()
	} else {
		s.logger.Println("Backfill scheduler disabled")
	}

	// Start sweep scheduler in background
	if s.sweepInterval > 0 {
		go func() {
			err := s.runSweepScheduler(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("sweep scheduler: %w", err)
			}
		}()
	} else {
		s.logger.Println("Sweep scheduler disabled")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// serveHTTP serves the API plus /status until ctx is cancelled.
func (s *Server) serveHTTP(ctx context.Context) error {
	s.api.Handle("GET /status", http.HandlerFunc(s.handleStatus))
	return s.api.ListenAndServe(ctx, s.addr)
}

// runBackfillScheduler runs backfill on schedule.
func (s *Server) runBackfillScheduler(ctx context.Context) error {
	s.logger.Printf("Starting backfill scheduler (interval: %v)...", s.backfillInterval)

	// Run immediately on start
	s.runBackfill(ctx)

	ticker := time.NewTicker(s.backfillInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runBackfill(ctx)
		}
	}
}

// runBackfill fetches the configured symbols' candles of the sweep window.
func (s *Server) runBackfill(ctx context.Context) {
	if len(s.symbols) == 0 {
		s.logger.Println("No --symbols configured, skipping backfill")
		return
	}

	s.mu.Lock()
	if s.backfillRunning {
		s.mu.Unlock()
		s.logger.Println("Backfill already running, skipping...")
		return
	}
	s.backfillRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.backfillRunning = false
		s.lastBackfill = time.Now()
		s.backfills++
		s.mu.Unlock()
	}()

	end := time.Now().UTC()
	backfiller := ingestion.NewBackfiller(ingestion.BackfillOptions{
		Source: s.remote,
		Store:  s.stores.Candles,
		Logger: s.logger,
	})
	result, err := backfiller.BackfillRange(ctx, s.symbols, end.Add(-s.window), end)
	if result != nil {
		observability.RecordCandlesIngested(result.CandlesIngested)
	}
	if err != nil {
		s.logger.Printf("Backfill error: %v", err)
	}
}

// runSweepScheduler runs sweeps on schedule.
func (s *Server) runSweepScheduler(ctx context.Context) error {
	s.logger.Printf("Starting sweep scheduler (interval: %v)...", s.sweepInterval)

	// Run immediately on start
	s.runSweep(ctx)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

// runSweep backtests every strategy on every symbol and refreshes summaries.
func (s *Server) runSweep(ctx context.Context) {
	s.mu.Lock()
	if s.sweepRunning {
		s.mu.Unlock()
		s.logger.Println("Sweep already running, skipping...")
		return
	}
	s.sweepRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweepRunning = false
		s.lastSweep = time.Now()
		s.sweeps++
		s.mu.Unlock()
	}()

	symbols := s.symbols
	if len(symbols) == 0 {
		stored, err := s.stores.Candles.Symbols(ctx)
		if err != nil {
			s.logger.Printf("Failed to list symbols: %v", err)
			return
		}
		symbols = stored
	}
	if len(symbols) == 0 {
		s.logger.Println("No symbols with candles, skipping sweep")
		return
	}

	s.logger.Println("Running sweep...")
	start := time.Now()
	end := start.UTC()

	result, err := s.svc.Sweep(ctx, lab.SweepRequest{
		Kinds:          s.kinds,
		Symbols:        symbols,
		Start:          end.Add(-s.window),
		End:            end,
		InitialCapital: s.initialCapital,
	})
	if err != nil {
		s.logger.Printf("Sweep error: %v", err)
		return
	}
	for _, e := range result.Errors {
		s.logger.Printf("Sweep warning: %s", e)
	}

	s.logger.Printf("Sweep completed in %v: %d backtests, %d summaries",
		time.Since(start), len(result.Results), result.SummariesCreated)
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	Started         time.Time `json:"started"`
	LastSweep       time.Time `json:"last_sweep,omitempty"`
	LastBackfill    time.Time `json:"last_backfill,omitempty"`
	Sweeps          int       `json:"sweeps"`
	Backfills       int       `json:"backfills"`
	SweepRunning    bool      `json:"sweep_running"`
	BackfillRunning bool      `json:"backfill_running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).String(),
		Started:         s.started,
		LastSweep:       s.lastSweep,
		LastBackfill:    s.lastBackfill,
		Sweeps:          s.sweeps,
		Backfills:       s.backfills,
		SweepRunning:    s.sweepRunning,
		BackfillRunning: s.backfillRunning,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
