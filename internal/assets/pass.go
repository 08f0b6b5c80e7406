package assets

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"dropindex/internal/logging"
	"dropindex/internal/services"
)

// PassName labels asset pass summaries.
const PassName = "images"

// Pass runs the reconciler over every cluster needing an image.
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
		logger:     logging.NewComponentLogger(logger, "assets"),
	}
}

// Run walks clusters in id order with a bounded worker pool. In overwrite
// mode clusters that already have a canonical image are included.
func (p *Pass) Run(ctx context.Context) (*services.Summary, error) {
	summary := services.NewSummary(PassName)
	started := time.Now()
	includeExisting := p.reconciler.policy.Overwrite

	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		batch, err := p.store.ListClustersNeedingImage(ctx, afterID, p.batchSize, includeExisting)
		if err != nil {
			return summary, err
		}
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.workers)
		for _, work := range batch {
			g.Go(func() error {
				outcome := p.reconciler.ReconcileImage(gctx, work)
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
		afterID = batch[len(batch)-1].Cluster.ClusterID
	}

	logging.WithContext(ctx, p.logger).Info("image pass complete",
		logging.Int("processed", summary.Processed),
		logging.Int("updated", summary.Updated),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("elapsed", time.Since(started)),
	)
	return summary, nil
}
