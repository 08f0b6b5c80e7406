package prices

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"dropindex/internal/config"
	"dropindex/internal/logging"
	"dropindex/internal/services"
	"dropindex/internal/store"
	"dropindex/internal/textutil"
)

// Store is the subset of the record store the price reconciler uses.
type Store interface {
	ListListingsNeedingPrices(ctx context.Context, staleBefore time.Time, afterID int64, limit int) ([]store.Listing, error)
	InsertPriceObservation(ctx context.Context, obs store.PriceObservation) (bool, error)
	RecentObservations(ctx context.Context, ownerID int64, floor float64, limit int) ([]store.PriceObservation, error)
	SetPriceStats(ctx context.Context, id int64, stats store.PriceStats) error
}

// Policy holds consolidation settings.
type Policy struct {
	ConfidenceFloor  float64
	Window           int
	ResultsPerSource int
	StaleAfter       time.Duration
}

// PolicyFromConfig reads the prices section of cfg.
func PolicyFromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return Policy{ConfidenceFloor: 0.5, Window: 50, ResultsPerSource: 8}
	}
	return Policy{
		ConfidenceFloor:  cfg.Prices.ConfidenceFloor,
		Window:           cfg.Prices.Window,
		ResultsPerSource: cfg.Prices.ResultsPerSource,
		StaleAfter:       time.Duration(cfg.Prices.StaleAfterHours) * time.Hour,
	}
}

// Reconciler gathers price observations and refreshes listing statistics.
type Reconciler struct {
	store     Store
	searchers []services.PriceSearcher
	policy    Policy
	logger    *slog.Logger
	now       func() time.Time
}

// NewReconciler constructs a Reconciler. Nil searchers are ignored.
func NewReconciler(st Store, searchers []services.PriceSearcher, policy Policy, logger *slog.Logger) *Reconciler {
	active := make([]services.PriceSearcher, 0, len(searchers))
	for _, s := range searchers {
		if s != nil {
			active = append(active, s)
		}
	}
	if policy.Window <= 0 {
		policy.Window = 50
	}
	return &Reconciler{
		store:     st,
		searchers: active,
		policy:    policy,
		logger:    logging.NewComponentLogger(logger, "prices"),
		now:       time.Now,
	}
}

// ReconcilePrices searches every price source for one listing, appends the
// hits to the observation log and recomputes the listing's statistics from
// the log.
func (r *Reconciler) ReconcilePrices(ctx context.Context, listing store.Listing) services.Outcome {
	ctx = services.WithListingID(ctx, listing.ID)
	logger := logging.WithContext(ctx, r.logger)

	query := textutil.QueryString(listing.Name, listing.SKU)
	if query == "" {
		return services.Skip(services.ReasonNoResults, nil)
	}

	observedAt := r.now().UTC()
	recorded, belowFloor := 0, 0
	for _, hit := range r.search(ctx, logger, query) {
		obs := store.PriceObservation{
			OwnerID:         listing.ID,
			Source:          hit.Source,
			NormalizedTitle: textutil.Normalize(hit.Title),
			Price:           hit.Price,
			Currency:        hit.Currency,
			SourceURL:       hit.URL,
			ObservedAt:      observedAt,
			Confidence:      Confidence(listing.Name, hit.Title),
		}
		inserted, err := r.store.InsertPriceObservation(ctx, obs)
		if err != nil {
			if services.IsFatal(err) {
				return services.Fatal(err)
			}
			logging.WarnSkip(logger, "price observation not recorded", services.ReasonStoreConflict, err,
				logging.String("source", hit.Source),
				logging.String("source_url", hit.URL),
			)
			continue
		}
		if inserted {
			recorded++
			if obs.Confidence < r.policy.ConfidenceFloor {
				belowFloor++
			}
		}
	}

	history, err := r.store.RecentObservations(ctx, listing.ID, r.policy.ConfidenceFloor, r.policy.Window)
	if err != nil {
		return services.Classify(err, services.ReasonStoreConflict)
	}
	stats, ok := Consolidate(history, r.policy.ConfidenceFloor, r.policy.Window, observedAt)
	if !ok {
		if recorded > 0 && belowFloor == recorded {
			logging.WarnSkip(logger, "price observations below confidence floor", services.ReasonBelowFloor, nil,
				logging.Int("observations", recorded),
				logging.Float64("floor", r.policy.ConfidenceFloor),
			)
			return services.Skip(services.ReasonBelowFloor, nil)
		}
		return services.Skip(services.ReasonNoResults, nil)
	}

	if err := r.store.SetPriceStats(ctx, listing.ID, stats); err != nil {
		return services.Classify(err, services.ReasonStoreConflict)
	}
	logger.Info("price statistics updated",
		logging.Float64("p25", stats.P25),
		logging.Float64("p50", stats.P50),
		logging.Float64("p75", stats.P75),
		logging.Float64("confidence", stats.Confidence),
		logging.Int("observations", stats.Observations),
		logging.Int("recorded", recorded),
	)
	return services.Success(true)
}

// search queries every searcher. Failures degrade to no results.
func (r *Reconciler) search(ctx context.Context, logger *slog.Logger, query string) []services.PriceHit {
	var hits []services.PriceHit
	for _, searcher := range r.searchers {
		found, err := searcher.SearchPrices(ctx, query, r.policy.ResultsPerSource)
		if err != nil {
			logger.Warn("price search failed",
				logging.String("provider", searcher.Name()),
				logging.String("query", query),
				logging.Error(err),
			)
			continue
		}
		for _, hit := range found {
			if hit.Price <= 0 || strings.TrimSpace(hit.Title) == "" {
				continue
			}
			if hit.Source == "" {
				hit.Source = searcher.Name()
			}
			hits = append(hits, hit)
		}
	}
	return hits
}
