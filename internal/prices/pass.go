package prices

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"dropindex/internal/logging"
	"dropindex/internal/services"
)

// PassName labels price pass summaries.
const PassName = "prices"

// Pass runs the reconciler over every canonical listing with missing or
// stale statistics.
type Pass struct {
	store      Store
	reconciler *Reconciler
	batchSize  int
	workers    int
	logger     *slog.Logger
}

// NewPass constructs a Pass.
func NewPass(st Store, reconciler *Reconciler, batchSize, workers int, logger *slog.Logger) *Pass {
	if batchSize <= 0 {
		batchSize = 100
	}
	if workers <= 0 {
		workers = 1
	}
	return &Pass{
		store:      st,
		reconciler: reconciler,
		batchSize:  batchSize,
		workers:    workers,
		logger:     logging.NewComponentLogger(logger, "prices"),
	}
}

// Run walks canonical listings in id order with a bounded worker pool.
func (p *Pass) Run(ctx context.Context) (*services.Summary, error) {
	summary := services.NewSummary(PassName)
	started := p.reconciler.now()
	staleBefore := started.Add(-p.reconciler.policy.StaleAfter)

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		batch, err := p.store.ListListingsNeedingPrices(ctx, staleBefore, afterID, p.batchSize)
		if err != nil {
			return summary, err
		}
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.workers)
		for _, listing := range batch {
			g.Go(func() error {
				outcome := p.reconciler.ReconcilePrices(gctx, listing)
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

	logging.WithContext(ctx, p.logger).Info("price pass complete",
		logging.Int("processed", summary.Processed),
		logging.Int("updated", summary.Updated),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("elapsed", time.Since(started)),
	)
	return summary, nil
}
