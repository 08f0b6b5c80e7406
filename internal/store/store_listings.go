package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dropindex/internal/services"
)

// storeError classifies a database failure. Lock contention that outlived the
// busy retries and cancellation are transient; everything else is systemic.
func storeError(op string, err error) error {
	marker := services.ErrSystemic
	if isSQLiteBusy(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		marker = services.ErrTransient
	}
	return services.Wrap(marker, "store", op, "", err)
}

func notFound(op string, id int64) error {
	return services.Wrap(services.ErrNotFound, "store", op, fmt.Sprintf("listing %d", id), nil)
}

// Upsert inserts a new listing or refreshes the supplier-mutable fields of an
// existing one (sale price, suggested price, stock, capture time). Rows are
// only written when one of those fields differs; a zero capture time keeps the
// stored one. Derived fields are never
// touched. Invalid listings fail with *ValidationError and nothing is written.
func (s *Store) Upsert(ctx context.Context, listing Listing) (UpsertResult, error) {
	if err := validateRecord("listing", listing.ID, listing); err != nil {
		return UpsertUnchanged, err
	}

	now := formatTime(time.Now())
	capture := nullableTime(listing.CaptureTime)

	res, err := s.execWithRetry(ctx,
		`INSERT INTO listings (
            id, sku, name, sale_price, suggested_price, category_ids, seller_id, seller_name,
            stock, warehouse_id, image_url, image_fingerprint, capture_time, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO NOTHING`,
		listing.ID,
		listing.SKU,
		listing.Name,
		listing.SalePrice,
		listing.SuggestedPrice,
		encodeCategories(listing.CategoryIDs),
		listing.SellerID,
		listing.SellerName,
		listing.Stock,
		listing.WarehouseID,
		listing.ImageURL,
		nullableInt64(listing.ImageFingerprint),
		capture,
		now,
		now,
	)
	if err != nil {
		return UpsertUnchanged, storeError("insert listing", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return UpsertUnchanged, storeError("insert listing", err)
	} else if affected > 0 {
		return UpsertInserted, nil
	}

	res, err = s.execWithRetry(ctx,
		`UPDATE listings
         SET sale_price = ?, suggested_price = ?, stock = ?, capture_time = COALESCE(?, capture_time), updated_at = ?
         WHERE id = ?
           AND (sale_price <> ? OR suggested_price <> ? OR stock <> ?
                OR (? IS NOT NULL AND capture_time IS NOT ?))`,
		listing.SalePrice,
		listing.SuggestedPrice,
		listing.Stock,
		capture,
		now,
		listing.ID,
		listing.SalePrice,
		listing.SuggestedPrice,
		listing.Stock,
		capture,
		capture,
	)
	if err != nil {
		return UpsertUnchanged, storeError("update listing", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return UpsertUnchanged, storeError("update listing", err)
	}
	if affected > 0 {
		return UpsertUpdated, nil
	}
	return UpsertUnchanged, nil
}

// GetListing fetches a listing by identifier. A missing listing returns nil, nil.
func (s *Store) GetListing(ctx context.Context, id int64) (*Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	listing, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("get listing", err)
	}
	return listing, nil
}

// GetListings fetches listings by identifier, ordered by id. Unknown ids are ignored.
func (s *Store) GetListings(ctx context.Context, ids []int64) ([]Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id IN (`+makePlaceholders(len(ids))+`) ORDER BY id`, args...)
	if err != nil {
		return nil, storeError("get listings", err)
	}
	return collectListings(rows)
}

// SetFingerprint records the perceptual fingerprint of a listing's image.
func (s *Store) SetFingerprint(ctx context.Context, id int64, fingerprint int64) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE listings SET image_fingerprint = ?, updated_at = ? WHERE id = ?`,
		fingerprint, formatTime(time.Now()), id)
	if err != nil {
		return storeError("set fingerprint", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return notFound("set fingerprint", id)
	}
	return nil
}

// SetCanonicalImage writes the chosen canonical image onto a listing. When the
// listing has no fingerprint yet, the image's fingerprint is recorded too.
func (s *Store) SetCanonicalImage(ctx context.Context, id int64, image CanonicalImage) error {
	if image.URL == "" {
		return services.Wrap(services.ErrValidation, "store", "set canonical image", "empty image url", nil)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE listings
         SET canonical_image_url = ?, canonical_image_source = ?,
             canonical_image_width = ?, canonical_image_height = ?,
             image_fingerprint = COALESCE(image_fingerprint, ?), updated_at = ?
         WHERE id = ?`,
		image.URL,
		nullableString(image.Source),
		image.Width,
		image.Height,
		nullableInt64(image.Fingerprint),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return storeError("set canonical image", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return notFound("set canonical image", id)
	}
	return nil
}

// SetPriceStats writes consolidated price statistics onto a listing. The
// external suggested price is the median.
func (s *Store) SetPriceStats(ctx context.Context, id int64, stats PriceStats) error {
	enriched := stats.EnrichedAt
	if enriched.IsZero() {
		enriched = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE listings
         SET price_p25 = ?, price_p50 = ?, price_p75 = ?, suggested_price_ext = ?,
             enrich_confidence = ?, last_enriched_at = ?, updated_at = ?
         WHERE id = ?`,
		stats.P25,
		stats.P50,
		stats.P75,
		stats.P50,
		stats.Confidence,
		formatTime(enriched),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return storeError("set price stats", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return notFound("set price stats", id)
	}
	return nil
}

// ListPendingFingerprints returns listings with an image but no fingerprint,
// ordered by id and starting after afterID.
func (s *Store) ListPendingFingerprints(ctx context.Context, afterID int64, limit int) ([]Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings
         WHERE image_fingerprint IS NULL AND image_url <> '' AND id > ?
         ORDER BY id LIMIT ?`,
		afterID, positiveLimit(limit))
	if err != nil {
		return nil, storeError("list pending fingerprints", err)
	}
	return collectListings(rows)
}

// ListClusterInputs returns every listing ordered by id.
func (s *Store) ListClusterInputs(ctx context.Context) ([]Listing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY id`)
	if err != nil {
		return nil, storeError("list cluster inputs", err)
	}
	return collectListings(rows)
}

// ListListingsNeedingPrices returns canonical listings whose price statistics
// are missing or older than staleBefore, ordered by id and starting after afterID.
func (s *Store) ListListingsNeedingPrices(ctx context.Context, staleBefore time.Time, afterID int64, limit int) ([]Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listingColumnsFor("l")+` FROM listings l
         JOIN clusters c ON c.canonical_owner_id = l.id
         WHERE l.id > ? AND (l.last_enriched_at IS NULL OR l.last_enriched_at < ?)
         ORDER BY l.id LIMIT ?`,
		afterID, formatTime(staleBefore), positiveLimit(limit))
	if err != nil {
		return nil, storeError("list listings needing prices", err)
	}
	return collectListings(rows)
}

func positiveLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
