package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"dropindex/internal/assets"
	"dropindex/internal/cluster"
	"dropindex/internal/config"
	"dropindex/internal/fingerprint"
	"dropindex/internal/ingest"
	"dropindex/internal/logging"
	"dropindex/internal/notifications"
	"dropindex/internal/prices"
	"dropindex/internal/services"
	"dropindex/internal/services/bing"
	"dropindex/internal/services/googlecse"
	"dropindex/internal/services/meli"
	"dropindex/internal/services/serpapi"
	"dropindex/internal/services/webclient"
	"dropindex/internal/similarity"
	"dropindex/internal/store"
)

// Stage names one pass of the pipeline.
type Stage string

const (
	StageIngest      Stage = ingest.PassName
	StageFingerprint Stage = fingerprint.PassName
	StageCluster     Stage = cluster.PassName
	StageImages      Stage = assets.PassName
	StagePrices      Stage = prices.PassName
)

// AllStages lists the stages of a full run in execution order.
var AllStages = []Stage{StageIngest, StageFingerprint, StageCluster, StageImages, StagePrices}

// ErrLocked reports that another process holds the pipeline lock.
var ErrLocked = errors.New("another dropindex pass is running")

// ParseStage resolves a stage name.
func ParseStage(name string) (Stage, error) {
	for _, s := range AllStages {
		if string(s) == name {
			return s, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "pipeline", "parse stage", fmt.Sprintf("unknown stage %q", name), nil)
}

// Option customizes a Runner.
type Option func(*Runner)

// WithDoer routes every outbound request through doer.
func WithDoer(doer webclient.Doer) Option {
	return func(r *Runner) { r.doer = doer }
}

// WithImageSearchers replaces the configured image providers.
func WithImageSearchers(searchers ...services.ImageSearcher) Option {
	return func(r *Runner) {
		r.imageSearchers = searchers
		r.imageOverride = true
	}
}

// WithPriceSearchers replaces the configured price providers.
func WithPriceSearchers(searchers ...services.PriceSearcher) Option {
	return func(r *Runner) {
		r.priceSearchers = searchers
		r.priceOverride = true
	}
}

// WithNotifier replaces the configured notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(r *Runner) { r.notifier = notifier }
}

// Runner executes pipeline stages against one catalog.
type Runner struct {
	cfg            *config.Config
	store          *store.Store
	logger         *slog.Logger
	lock           *flock.Flock
	doer           webclient.Doer
	imageSearchers []services.ImageSearcher
	priceSearchers []services.PriceSearcher
	imageOverride  bool
	priceOverride  bool
	fetcher        *fingerprint.Fetcher
	notifier       notifications.Service
}

// New constructs a Runner. Providers without credentials are left out.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new runner", "config is required", nil)
	}
	if st == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new runner", "store is required", nil)
	}
	r := &Runner{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		lock:   flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(r)
	}
	if !r.imageOverride {
		r.imageSearchers = ImageSearchers(cfg, r.doer)
	}
	if !r.priceOverride {
		r.priceSearchers = PriceSearchers(cfg, r.doer)
	}
	if r.notifier == nil {
		r.notifier = notifications.NewService(cfg)
	}
	r.fetcher = fingerprint.NewFetcher(webclient.FromConfig(cfg, "images", r.doer), logger)
	return r, nil
}

// ImageSearchers builds the configured image providers.
func ImageSearchers(cfg *config.Config, doer webclient.Doer) []services.ImageSearcher {
	var out []services.ImageSearcher
	if c := googlecse.FromConfig(cfg, doer); c != nil {
		out = append(out, c)
	}
	if c := bing.FromConfig(cfg, doer); c != nil {
		out = append(out, c)
	}
	if c := meli.FromConfig(cfg, doer); c != nil {
		out = append(out, c)
	}
	return out
}

// PriceSearchers builds the configured price providers.
func PriceSearchers(cfg *config.Config, doer webclient.Doer) []services.PriceSearcher {
	var out []services.PriceSearcher
	if c := meli.FromConfig(cfg, doer); c != nil {
		out = append(out, c)
	}
	if c := serpapi.FromConfig(cfg, doer); c != nil {
		out = append(out, c)
	}
	return out
}

// Providers lists the names of the active image and price providers.
func (r *Runner) Providers() (images, prices []string) {
	for _, s := range r.imageSearchers {
		images = append(images, s.Name())
	}
	for _, s := range r.priceSearchers {
		prices = append(prices, s.Name())
	}
	return images, prices
}

// Run executes stages in order under the pipeline lock. With no stages it
// runs the full pipeline. It stops at the first stage that fails and returns
// the summaries gathered so far. The outcome is published to the notifier.
func (r *Runner) Run(ctx context.Context, stages ...Stage) ([]*services.Summary, error) {
	if len(stages) == 0 {
		stages = AllStages
	}
	unlock, err := r.acquire()
	if err != nil {
		return nil, err
	}
	defer unlock()

	started := time.Now()
	summaries := make([]*services.Summary, 0, len(stages))
	for _, stage := range stages {
		summary, err := r.runStage(ctx, stage, nil)
		if summary != nil {
			summaries = append(summaries, summary)
		}
		if err != nil {
			if ctx.Err() == nil {
				r.notify(r.notifier.NotifyRunFailed(ctx, string(stage), err))
			}
			return summaries, err
		}
	}
	r.notify(r.notifier.NotifyRunCompleted(ctx, summaries, time.Since(started)))
	return summaries, nil
}

func (r *Runner) notify(err error) {
	if err != nil {
		r.logger.Warn("pipeline notification failed", logging.Error(err))
	}
}

// Ingest loads the given feed files, or every feed file in the configured
// feed directory when paths is empty.
func (r *Runner) Ingest(ctx context.Context, paths []string) (*services.Summary, error) {
	unlock, err := r.acquire()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return r.runStage(ctx, StageIngest, paths)
}

func (r *Runner) runStage(ctx context.Context, stage Stage, feedFiles []string) (*services.Summary, error) {
	passID := uuid.NewString()
	ctx = services.WithStage(services.WithPassID(ctx, passID), string(stage))
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("pass started")
	started := time.Now()

	workers := r.cfg.Workflow.Workers
	batch := r.cfg.Workflow.BatchSize

	var (
		summary *services.Summary
		err     error
	)
	switch stage {
	case StageIngest:
		loader := ingest.NewLoader(r.store, r.logger)
		if len(feedFiles) > 0 {
			summary, err = loader.LoadFiles(ctx, feedFiles)
		} else {
			summary, err = loader.LoadDir(ctx, r.cfg.Paths.FeedDir)
		}
	case StageFingerprint:
		summary, err = fingerprint.NewEngine(r.store, r.fetcher, batch, workers, r.logger).Run(ctx)
	case StageCluster:
		pass := cluster.NewPass(r.store, similarity.FromConfig(r.cfg), cluster.OptionsFromConfig(r.cfg), r.logger)
		summary, err = pass.Run(ctx)
	case StageImages:
		rec := assets.NewReconciler(r.store, r.fetcher, r.imageSearchers, assets.PolicyFromConfig(r.cfg), r.logger)
		summary, err = assets.NewPass(r.store, rec, batch, workers, r.logger).Run(ctx)
	case StagePrices:
		rec := prices.NewReconciler(r.store, r.priceSearchers, prices.PolicyFromConfig(r.cfg), r.logger)
		summary, err = prices.NewPass(r.store, rec, batch, workers, r.logger).Run(ctx)
	default:
		_, err = ParseStage(string(stage))
	}

	if err != nil {
		logger.Error("pass failed",
			logging.String("summary", summaryString(summary)),
			logging.Duration("elapsed", time.Since(started)),
			logging.Error(err),
		)
		return summary, fmt.Errorf("%s pass: %w", stage, err)
	}
	logger.Info("pass finished",
		logging.String("summary", summary.String()),
		logging.Duration("elapsed", time.Since(started)),
	)
	return summary, nil
}

func (r *Runner) acquire() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(r.cfg.LockPath()), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "lock", "create lock directory", err)
	}
	ok, err := r.lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrSystemic, "pipeline", "lock", r.cfg.LockPath(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, r.cfg.LockPath())
	}
	return func() {
		if err := r.lock.Unlock(); err != nil {
			r.logger.Warn("failed to release pipeline lock", logging.Error(err))
		}
	}, nil
}

func summaryString(s *services.Summary) string {
	if s == nil {
		return ""
	}
	return s.String()
}
