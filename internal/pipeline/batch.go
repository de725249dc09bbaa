package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sitemapdiff/sitemapdiff/internal/model"
	"golang.org/x/sync/errgroup"
)

// Factory builds a fresh pipeline and run for one target URL. Each
// target needs its own wiring: the normalizer is scoped to the target's
// domain and the persistence step is bound to a new run directory.
type Factory func(target string) (*Pipeline, *model.RunResult, error)

// BatchProcessor handles concurrent scanning of multiple target sites.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding
// batch functionality to Pipeline because:
// 1. It keeps the Pipeline focused on single-scan execution
// 2. It allows different batch strategies (e.g., rate limiting, retries)
// 3. It provides cleaner separation of concerns
type BatchProcessor struct {
	// factory creates a new pipeline and run for each target.
	// We use a factory to ensure each scan gets fresh instances.
	factory Factory

	// concurrency is the maximum number of concurrent scans.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed runs, indexed by target position.
	// Access is synchronized via mutex.
	results []*model.RunResult
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent scans.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The factory function is called for each target to create a fresh
// pipeline and run. This ensures that state doesn't leak between scans
// and allows per-target customization (site config overrides).
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 4,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch scans multiple targets concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each target gets its own goroutine, but only 'concurrency' goroutines
// run simultaneously.
//
// Returns the runs in target order; the slot stays nil for a target
// whose pipeline could not even be constructed. Scan failures do not
// abort the batch; the error return indicates cancellation only.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.RunResult, error) {
	bp.logger.Info("starting batch scan",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.results = make([]*model.RunResult, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("scanning target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			p, run, err := bp.factory(target)
			if err != nil {
				bp.logger.Error("failed to prepare scan",
					"target", target,
					"error", err,
				)
				// A bad target should not sink the rest of the batch.
				return nil
			}

			err = p.Execute(ctx, run)

			bp.mu.Lock()
			bp.results[i] = run
			bp.mu.Unlock()

			if err != nil {
				bp.logger.Warn("scan failed",
					"target", target,
					"error", err,
				)
				return nil
			}

			bp.logger.Info("scan completed", "target", target)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch scan complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}

// ProcessBatchWithCallback scans multiple targets and calls a callback
// for each completed scan. This is useful for streaming results.
//
// The callback receives the run and the index of the target in the
// original slice. The callback is called from the goroutine that
// completed the scan, so it should be thread-safe if it accesses shared
// state.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(run *model.RunResult, index int),
) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			p, run, err := bp.factory(target)
			if err != nil {
				bp.logger.Error("failed to prepare scan",
					"target", target,
					"error", err,
				)
				return nil
			}

			_ = p.Execute(ctx, run) //nolint:errcheck // Failures are logged by the pipeline

			callback(run, i)
			return nil
		})
	}

	return g.Wait()
}
