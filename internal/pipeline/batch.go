package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/breachscan/internal/hibp"
	"github.com/nao1215/breachscan/internal/model"
)

// Lookuper looks up a single address. *hibp.Client implements it.
type Lookuper interface {
	Lookup(ctx context.Context, email string) model.LookupResult
}

// BatchProcessor looks up addresses one at a time, pausing between
// successive requests so that a batch stays under the API rate limit.
// There is no pause before the first or after the last lookup.
type BatchProcessor struct {
	client Lookuper

	// pacing is the pause between two lookups.
	pacing time.Duration

	// sleep waits for the pacing delay.
	sleep hibp.Sleeper

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithPacing sets the pause between lookups. Zero disables pacing.
func WithPacing(d time.Duration) BatchOption {
	return func(b *BatchProcessor) {
		if d >= 0 {
			b.pacing = d
		}
	}
}

// WithPacingSleeper replaces the wait used for pacing.
func WithPacingSleeper(s hibp.Sleeper) BatchOption {
	return func(b *BatchProcessor) {
		b.sleep = s
	}
}

// NewBatchProcessor creates a BatchProcessor using client.
func NewBatchProcessor(client Lookuper, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		client: client,
		pacing: 1500 * time.Millisecond,
		sleep:  hibp.SleepContext,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch looks up every address in order and returns one Lookup per
// address. A failed lookup does not stop the batch.
//
// When ctx is cancelled ProcessBatch returns the lookups completed so far
// together with ctx.Err(); the interrupted lookup is not included.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, emails []string) ([]model.Lookup, error) {
	return bp.ProcessBatchWithCallback(ctx, emails, nil)
}

// ProcessBatchWithCallback is ProcessBatch with a callback invoked after
// each lookup, e.g. to report progress.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	emails []string,
	callback func(lookup model.Lookup, index int),
) ([]model.Lookup, error) {
	bp.logger.Info("starting batch lookup", "total", len(emails), "pacing", bp.pacing)
	start := time.Now()

	lookups := make([]model.Lookup, 0, len(emails))
	for i, email := range emails {
		if i > 0 && bp.pacing > 0 {
			if err := bp.sleep(ctx, bp.pacing); err != nil {
				return lookups, err
			}
		}
		if err := ctx.Err(); err != nil {
			return lookups, err
		}

		result := bp.client.Lookup(ctx, email)
		if err := ctx.Err(); err != nil {
			return lookups, err
		}

		lookup := model.Lookup{Email: email, Result: result}
		lookups = append(lookups, lookup)

		if result.IsFailed() {
			bp.logger.Warn("lookup failed",
				"email", email,
				"index", i+1,
				"total", len(emails),
				"reason", result.FailureText(),
				"error", result.Err,
			)
		} else {
			bp.logger.Debug("lookup completed",
				"email", email,
				"index", i+1,
				"total", len(emails),
				"kind", result.Kind.String(),
				"breaches", len(result.Breaches),
			)
		}

		if callback != nil {
			callback(lookup, i)
		}
	}

	bp.logger.Info("batch lookup complete", "total", len(emails), "elapsed", time.Since(start))
	return lookups, nil
}
