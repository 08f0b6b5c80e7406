package cluster

import (
	"context"
	"log/slog"
	"time"

	"dropindex/internal/config"
	"dropindex/internal/logging"
	"dropindex/internal/services"
	"dropindex/internal/similarity"
	"dropindex/internal/store"
)

// PassName labels cluster pass summaries.
const PassName = "cluster"

// Store is the subset of the record store the cluster pass uses.
type Store interface {
	ListClusterInputs(ctx context.Context) ([]store.Listing, error)
	LoadClusters(ctx context.Context) ([]store.Cluster, error)
	SaveClusters(ctx context.Context, snapshot store.ClusterSnapshot) error
}

// Options tunes a Pass.
type Options struct {
	Representatives    int
	MaintenanceBacklog int
	Saturation         Saturation
}

// OptionsFromConfig reads pass options from the matching section.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Representatives:    cfg.Matching.RepresentativesPerCluster,
		MaintenanceBacklog: cfg.Matching.MaintenanceBacklog,
		Saturation: Saturation{
			High: cfg.Matching.SaturationHigh,
			Full: cfg.Matching.SaturationFull,
		},
	}
}

// Pass rebuilds the identity partition from the store.
type Pass struct {
	store    Store
	resolver similarity.Resolver
	opts     Options
	logger   *slog.Logger
}

// NewPass constructs a Pass.
func NewPass(st Store, resolver similarity.Resolver, opts Options, logger *slog.Logger) *Pass {
	return &Pass{
		store:    st,
		resolver: resolver,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "cluster"),
	}
}

// Run seeds the builder with the persisted clusters, assigns unclustered
// listings and listings whose fingerprint changed against cluster
// representatives, optionally sweeps that pending set pairwise, and saves the
// new partition in one transaction. Listings already clustered are only
// compared against, never re-assigned. On error nothing is written.
func (p *Pass) Run(ctx context.Context) (*services.Summary, error) {
	summary := services.NewSummary(PassName)
	logger := logging.WithContext(ctx, p.logger)
	started := time.Now()

	listings, err := p.store.ListClusterInputs(ctx)
	if err != nil {
		return summary, err
	}
	existing, err := p.store.LoadClusters(ctx)
	if err != nil {
		return summary, err
	}

	builder := NewBuilder(p.resolver, p.opts.Representatives)
	builder.Add(listings...)
	pending := builder.Seed(existing)

	for _, idx := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		builder.Assign(idx)
	}

	swept := false
	sweepMerges := 0
	if len(pending) > 1 && len(pending) <= p.opts.MaintenanceBacklog {
		sweepMerges = builder.Sweep(pending)
		swept = true
	}

	snapshot := builder.Snapshot(p.opts.Saturation)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if err := p.store.SaveClusters(ctx, snapshot); err != nil {
		return summary, err
	}

	assignment := Assignment(snapshot)
	for _, idx := range pending {
		id := builder.nodes[idx].listing.ID
		summary.Record(services.Success(assignment[id] != builder.Prior(id)))
	}

	logger.Info("cluster pass complete",
		logging.Int("listings", builder.Len()),
		logging.Int("pending", len(pending)),
		logging.Int("clusters", len(snapshot.Clusters)),
		logging.Int("absorbed", len(snapshot.Removed)),
		logging.Bool("swept", swept),
		logging.Int("sweep_merges", sweepMerges),
		logging.Int("comparisons", builder.Comparisons()),
		logging.Duration("elapsed", time.Since(started)),
	)
	return summary, nil
}
