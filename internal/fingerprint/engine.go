package fingerprint

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"dropindex/internal/logging"
	"dropindex/internal/services"
	"dropindex/internal/store"
)

// PassName labels fingerprint pass summaries.
const PassName = "fingerprint"

// Store is the subset of the record store the fingerprint pass uses.
type Store interface {
	ListPendingFingerprints(ctx context.Context, afterID int64, limit int) ([]store.Listing, error)
	SetFingerprint(ctx context.Context, id int64, fingerprint int64) error
}

// Engine fingerprints every listing that has an image but no fingerprint.
type Engine struct {
	store     Store
	fetcher   *Fetcher
	batchSize int
	workers   int
	logger    *slog.Logger
}

// NewEngine constructs an Engine. batchSize and workers fall back to 100 and
// 1 when not positive.
func NewEngine(st Store, fetcher *Fetcher, batchSize, workers int, logger *slog.Logger) *Engine {
	if batchSize <= 0 {
		batchSize = 100
	}
	if workers <= 0 {
		workers = 1
	}
	return &Engine{
		store:     st,
		fetcher:   fetcher,
		batchSize: batchSize,
		workers:   workers,
		logger:    logging.NewComponentLogger(logger, "fingerprint"),
	}
}

// Run walks the pending listings in id order. Each listing is written
// independently; a fetch failure leaves it pending for the next pass. Only a
// systemic store failure or cancellation stops the pass early.
func (e *Engine) Run(ctx context.Context) (*services.Summary, error) {
	summary := services.NewSummary(PassName)
	logger := logging.WithContext(ctx, e.logger)
	started := time.Now()

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		batch, err := e.store.ListPendingFingerprints(ctx, afterID, e.batchSize)
		if err != nil {
			return summary, err
		}
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for _, listing := range batch {
			g.Go(func() error {
				outcome := e.process(gctx, listing)
				summary.Record(outcome)
				if outcome.Kind == services.OutcomeFatal {
					return outcome.Err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return summary, err
		}
		afterID = batch[len(batch)-1].ID
	}

	logger.Info("fingerprint pass complete",
		logging.Int("processed", summary.Processed),
		logging.Int("updated", summary.Updated),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("elapsed", time.Since(started)),
	)
	return summary, nil
}

func (e *Engine) process(ctx context.Context, listing store.Listing) services.Outcome {
	if err := ctx.Err(); err != nil {
		return services.Skip(services.ReasonFetchFailed, err)
	}
	ctx = services.WithListingID(ctx, listing.ID)
	logger := logging.WithContext(ctx, e.logger)

	fp, ok := e.fetcher.FetchAndFingerprint(ctx, listing.ImageURL)
	if !ok {
		logging.WarnSkip(logger, "image fetch failed", services.ReasonFetchFailed, nil,
			logging.String("image_url", listing.ImageURL))
		return services.Skip(services.ReasonFetchFailed, nil)
	}
	if err := e.store.SetFingerprint(ctx, listing.ID, fp); err != nil {
		outcome := services.Classify(err, services.ReasonStoreConflict)
		if outcome.Kind != services.OutcomeFatal {
			logging.WarnSkip(logger, "fingerprint write skipped", outcome.Reason, err)
		}
		return outcome
	}
	logger.Debug("fingerprint stored", logging.String("fingerprint", Hex(fp)))
	return services.Success(true)
}
