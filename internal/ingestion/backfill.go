// Package ingestion copies historical candles from a remote source into a local store.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// Backfiller handles historical candle ingestion.
type Backfiller struct {
	source    storage.CandleSource
	store     storage.CandleStore
	batchSize int
	logger    *log.Logger
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	Source    storage.CandleSource
	Store     storage.CandleStore
	BatchSize int
	Logger    *log.Logger
}

// NewBackfiller creates a new historical data backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Backfiller{
		source:    opts.Source,
		store:     opts.Store,
		batchSize: batchSize,
		logger:    logger,
	}
}

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	CandlesIngested   int
	DuplicatesSkipped int
	Errors            int
	Duration          time.Duration
}

// BackfillRange fetches each symbol's candles in [from, to] and stores them.
// A failing symbol is counted and logged; the others still run.
func (b *Backfiller) BackfillRange(ctx context.Context, symbols []string, from, to time.Time) (*BackfillResult, error) {
	start := time.Now()
	result := &BackfillResult{}

	b.logger.Printf("Starting backfill of %d symbols from %s to %s",
		len(symbols), from.Format(time.DateOnly), to.Format(time.DateOnly))

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		candles, err := b.source.GetCandles(ctx, symbol, from, to)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Errors++
			b.logger.Printf("Error fetching %s: %v", symbol, err)
			continue
		}

		SortCandles(candles)
		if err := ValidateCandleOrdering(candles); err != nil {
			// Two bars on one date means the source returned a bad series.
			result.Errors++
			b.logger.Printf("Skipping %s: %v", symbol, err)
			continue
		}
		stored, dupes, errs := b.storeCandles(ctx, candles)
		result.CandlesIngested += stored
		result.DuplicatesSkipped += dupes
		result.Errors += errs

		b.logger.Printf("Fetched %d candles for %s", len(candles), symbol)
	}

	result.Duration = time.Since(start)
	b.logger.Printf("Backfill complete: %d candles, %d dupes, %d errors in %v",
		result.CandlesIngested, result.DuplicatesSkipped, result.Errors, result.Duration)

	return result, nil
}

// storeCandles stores candles in batches, handling duplicates.
func (b *Backfiller) storeCandles(ctx context.Context, candles []*domain.Candle) (stored, dupes, errs int) {
	for i := 0; i < len(candles); i += b.batchSize {
		end := min(i+b.batchSize, len(candles))

		batch := candles[i:end]
		err := b.store.InsertBulk(ctx, batch)
		if err == nil {
			stored += len(batch)
			continue
		}
		if !errors.Is(err, storage.ErrDuplicateKey) {
			errs += len(batch)
			b.logger.Printf("Error storing batch: %v", err)
			continue
		}

		// Insert one by one to find which are duplicates
		for _, c := range batch {
			if err := b.store.InsertBulk(ctx, []*domain.Candle{c}); err != nil {
				if errors.Is(err, storage.ErrDuplicateKey) {
					dupes++
				} else {
					errs++
				}
			} else {
				stored++
			}
		}
	}

	return stored, dupes, errs
}

// CachedSource serves candles from a local store and falls back to a remote
// source when the store has nothing for the requested window. Fetched candles
// are written back so later reads stay local.
type CachedSource struct {
	local  storage.CandleStore
	remote storage.CandleSource
	logger *log.Logger
}

// Compile-time interface check.
var _ storage.CandleSource = (*CachedSource)(nil)

// NewCachedSource creates a CachedSource. remote may be nil, in which case
// only the local store is consulted.
func NewCachedSource(local storage.CandleStore, remote storage.CandleSource, logger *log.Logger) *CachedSource {
	if logger == nil {
		logger = log.Default()
	}
	return &CachedSource{local: local, remote: remote, logger: logger}
}

// GetCandles implements storage.CandleSource.
func (s *CachedSource) GetCandles(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Candle, error) {
	candles, err := s.local.GetCandles(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("read local candles: %w", err)
	}
	if len(candles) > 0 || s.remote == nil {
		return candles, nil
	}

	candles, err = s.remote.GetCandles(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch remote candles: %w", err)
	}
	SortCandles(candles)

	if err := s.local.InsertBulk(ctx, candles); err != nil {
		// The fetched series is still usable; the cache just stays cold.
		s.logger.Printf("Error caching %d candles for %s: %v", len(candles), symbol, err)
	}
	return candles, nil
}
