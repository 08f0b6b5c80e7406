package assets

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"dropindex/internal/config"
	"dropindex/internal/fingerprint"
	"dropindex/internal/logging"
	"dropindex/internal/services"
	"dropindex/internal/store"
	"dropindex/internal/textutil"
)

// SupplierSource tags the listing's own image in the asset log.
const SupplierSource = "supplier"

// Store is the subset of the record store the asset reconciler uses.
type Store interface {
	ListClustersNeedingImage(ctx context.Context, afterID string, limit int, includeExisting bool) ([]store.ClusterWork, error)
	InsertImageAsset(ctx context.Context, asset store.ImageAsset) (bool, error)
	SetCanonicalImage(ctx context.Context, id int64, image store.CanonicalImage) error
}

// Fetcher downloads and fingerprints an image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fingerprint.Image, error)
}

// Policy holds acceptance and selection settings.
type Policy struct {
	MinWidth            int
	MinHeight           int
	TrustedDomains      []string
	Overwrite           bool
	OverwriteAreaRatio  float64
	CandidatesPerSource int
}

// PolicyFromConfig reads the assets section of cfg.
func PolicyFromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return Policy{}
	}
	return Policy{
		MinWidth:            cfg.Assets.MinWidth,
		MinHeight:           cfg.Assets.MinHeight,
		TrustedDomains:      append([]string(nil), cfg.Assets.TrustedDomains...),
		Overwrite:           cfg.Assets.OverwriteCanonical,
		OverwriteAreaRatio:  cfg.Assets.OverwriteAreaRatio,
		CandidatesPerSource: cfg.Assets.CandidatesPerSource,
	}
}

// Accepts reports whether both dimensions exceed the configured minimums.
func (p Policy) Accepts(width, height int) bool {
	return width > p.MinWidth && height > p.MinHeight
}

// Upgrades reports whether a candidate of area candidate may replace a
// canonical image of area current. An unknown current size is replaceable.
func (p Policy) Upgrades(candidate, current int) bool {
	if current <= 0 {
		return true
	}
	ratio := p.OverwriteAreaRatio
	if ratio <= 0 {
		ratio = 2
	}
	return float64(candidate) > ratio*float64(current)
}

// Reconciler selects canonical images.
type Reconciler struct {
	store     Store
	fetcher   Fetcher
	searchers []services.ImageSearcher
	policy    Policy
	logger    *slog.Logger
	now       func() time.Time
}

// NewReconciler constructs a Reconciler. Nil searchers are ignored.
func NewReconciler(st Store, fetcher Fetcher, searchers []services.ImageSearcher, policy Policy, logger *slog.Logger) *Reconciler {
	active := make([]services.ImageSearcher, 0, len(searchers))
	for _, s := range searchers {
		if s != nil {
			active = append(active, s)
		}
	}
	return &Reconciler{
		store:     st,
		fetcher:   fetcher,
		searchers: active,
		policy:    policy,
		logger:    logging.NewComponentLogger(logger, "assets"),
		now:       time.Now,
	}
}

// ReconcileImage evaluates image candidates for one cluster and writes the
// winner onto its canonical listing.
func (r *Reconciler) ReconcileImage(ctx context.Context, work store.ClusterWork) services.Outcome {
	listing := work.Canonical
	ctx = services.WithClusterID(services.WithListingID(ctx, listing.ID), work.Cluster.ClusterID)
	logger := logging.WithContext(ctx, r.logger)

	seen := make(map[string]struct{})
	if !listing.HasCanonicalImage() && strings.TrimSpace(listing.ImageURL) != "" {
		hit := services.ImageHit{ImageURL: strings.TrimSpace(listing.ImageURL), Source: SupplierSource}
		seen[hit.ImageURL] = struct{}{}
		cand, accepted, err := r.evaluate(ctx, listing.ID, hit)
		if err != nil {
			return services.Fatal(err)
		}
		if accepted {
			return r.write(ctx, logger, listing, cand)
		}
	}

	query := textutil.QueryString(listing.Name, listing.SKU)
	if query == "" {
		return services.Skip(services.ReasonNoCandidates, nil)
	}
	hits := r.search(ctx, logger, query)

	var accepted []Candidate
	evaluated := 0
	for _, hit := range hits {
		if _, dup := seen[hit.ImageURL]; dup {
			continue
		}
		seen[hit.ImageURL] = struct{}{}
		if err := ctx.Err(); err != nil {
			return services.Skip(services.ReasonFetchFailed, err)
		}
		evaluated++
		cand, ok, err := r.evaluate(ctx, listing.ID, hit)
		if err != nil {
			return services.Fatal(err)
		}
		if ok {
			accepted = append(accepted, cand)
		}
	}
	if evaluated == 0 {
		return services.Skip(services.ReasonNoResults, nil)
	}
	if len(accepted) == 0 {
		logging.WarnSkip(logger, "no acceptable image candidates", services.ReasonNoCandidates, nil,
			logging.Int("evaluated", evaluated))
		return services.Skip(services.ReasonNoCandidates, nil)
	}

	best := Rank(accepted, r.policy.TrustedDomains)[0]
	if listing.HasCanonicalImage() {
		if !r.policy.Overwrite || best.URL == listing.CanonicalImageURL || !r.policy.Upgrades(best.Area(), listing.CanonicalArea()) {
			logger.Debug("canonical image kept",
				logging.String("current", listing.CanonicalImageURL),
				logging.Int("current_area", listing.CanonicalArea()),
				logging.Int("candidate_area", best.Area()),
			)
			return services.Skip(services.ReasonNoUpgrade, nil)
		}
	}
	return r.write(ctx, logger, listing, best)
}

func (r *Reconciler) write(ctx context.Context, logger *slog.Logger, listing store.Listing, cand Candidate) services.Outcome {
	if err := r.store.SetCanonicalImage(ctx, listing.ID, cand.Canonical()); err != nil {
		return services.Classify(err, services.ReasonStoreConflict)
	}
	logger.Info("canonical image selected",
		logging.String("image_url", cand.URL),
		logging.String("source", cand.Source),
		logging.Int("width", cand.Width),
		logging.Int("height", cand.Height),
		logging.Int("trust_rank", TrustRank(cand, r.policy.TrustedDomains)),
	)
	return services.Success(true)
}

// search queries every searcher. Failures degrade to no results.
func (r *Reconciler) search(ctx context.Context, logger *slog.Logger, query string) []services.ImageHit {
	var hits []services.ImageHit
	for _, searcher := range r.searchers {
		found, err := searcher.SearchImages(ctx, query, r.policy.CandidatesPerSource)
		if err != nil {
			logger.Warn("image search failed",
				logging.String("provider", searcher.Name()),
				logging.String("query", query),
				logging.Error(err),
			)
			continue
		}
		for _, hit := range found {
			hit.ImageURL = strings.TrimSpace(hit.ImageURL)
			if hit.ImageURL == "" {
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

// evaluate downloads one candidate and records it in the asset log. The
// returned error is set only for failures that must stop the pass.
func (r *Reconciler) evaluate(ctx context.Context, ownerID int64, hit services.ImageHit) (Candidate, bool, error) {
	asset := store.ImageAsset{
		OwnerID:      ownerID,
		ImageURL:     hit.ImageURL,
		Source:       hit.Source,
		Status:       store.AssetUnreachable,
		DiscoveredAt: r.now(),
	}
	cand := Candidate{URL: hit.ImageURL, SourcePageURL: hit.SourcePageURL, Source: hit.Source}

	img, fetchErr := r.fetcher.Fetch(ctx, hit.ImageURL)
	accepted := false
	if fetchErr == nil {
		cand.Width, cand.Height = img.Width, img.Height
		cand.Fingerprint = img.Fingerprint
		cand.MIME, cand.ContentHash = img.MIME, img.ContentHash
		asset.Width, asset.Height = img.Width, img.Height
		asset.ContentMIME, asset.ContentHash = img.MIME, img.ContentHash
		if r.policy.Accepts(img.Width, img.Height) {
			fp := img.Fingerprint
			asset.Status = store.AssetOK
			asset.Fingerprint = &fp
			accepted = true
		} else {
			asset.Status = store.AssetTooSmall
		}
	}

	if _, err := r.store.InsertImageAsset(ctx, asset); err != nil {
		if services.IsFatal(err) {
			return cand, false, err
		}
		logging.WarnSkip(logging.WithContext(ctx, r.logger), "image asset not recorded", services.ReasonStoreConflict, err,
			logging.String("image_url", hit.ImageURL))
	}
	if fetchErr != nil && !errors.Is(fetchErr, context.Canceled) {
		logging.WithContext(ctx, r.logger).Debug("image candidate unreachable",
			logging.String("image_url", hit.ImageURL),
			logging.Error(fetchErr),
		)
	}
	return cand, accepted, nil
}
