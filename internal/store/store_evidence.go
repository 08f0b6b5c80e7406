package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// InsertImageAsset appends an image candidate. Re-discovering a known
// (owner, url) pair is a no-op and reports false.
func (s *Store) InsertImageAsset(ctx context.Context, asset ImageAsset) (bool, error) {
	if err := validateRecord("image asset", asset.OwnerID, asset); err != nil {
		return false, err
	}
	discovered := asset.DiscoveredAt
	if discovered.IsZero() {
		discovered = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO image_assets (
            owner_id, image_url, source, status, fingerprint, width, height,
            content_mime, content_hash, discovered_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (owner_id, image_url) DO NOTHING`,
		asset.OwnerID,
		asset.ImageURL,
		asset.Source,
		string(asset.Status),
		nullableInt64(asset.Fingerprint),
		asset.Width,
		asset.Height,
		nullableString(asset.ContentMIME),
		nullableString(asset.ContentHash),
		formatTime(discovered),
	)
	if err != nil {
		return false, storeError("insert image asset", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeError("insert image asset", err)
	}
	return affected > 0, nil
}

// ListImageAssets returns every candidate recorded for a listing in discovery order.
func (s *Store) ListImageAssets(ctx context.Context, ownerID int64) ([]ImageAsset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner_id, image_url, source, status, fingerprint, width, height,
                content_mime, content_hash, discovered_at
         FROM image_assets WHERE owner_id = ?
         ORDER BY discovered_at, image_url`, ownerID)
	if err != nil {
		return nil, storeError("list image assets", err)
	}
	defer rows.Close()

	var assets []ImageAsset
	for rows.Next() {
		var (
			a           ImageAsset
			status      string
			fingerprint sql.NullInt64
			mime        sql.NullString
			hash        sql.NullString
			discovered  string
		)
		if err := rows.Scan(&a.OwnerID, &a.ImageURL, &a.Source, &status, &fingerprint,
			&a.Width, &a.Height, &mime, &hash, &discovered); err != nil {
			return nil, err
		}
		a.Status = AssetStatus(status)
		a.Fingerprint = int64Ptr(fingerprint)
		a.ContentMIME = mime.String
		a.ContentHash = hash.String
		if t, err := parseTimeString(discovered); err == nil {
			a.DiscoveredAt = t
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// InsertPriceObservation appends an external price sighting. A duplicate
// (owner, source, url, time) is a no-op and reports false.
func (s *Store) InsertPriceObservation(ctx context.Context, obs PriceObservation) (bool, error) {
	if err := validateRecord("price observation", obs.OwnerID, obs); err != nil {
		return false, err
	}
	observed := obs.ObservedAt
	if observed.IsZero() {
		observed = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO price_observations (
            owner_id, source, normalized_title, price, currency, source_url, observed_at, confidence
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (owner_id, source, source_url, observed_at) DO NOTHING`,
		obs.OwnerID,
		obs.Source,
		obs.NormalizedTitle,
		obs.Price,
		obs.Currency,
		obs.SourceURL,
		formatTime(observed),
		obs.Confidence,
	)
	if err != nil {
		return false, storeError("insert price observation", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeError("insert price observation", err)
	}
	return affected > 0, nil
}

// RecentObservations returns up to limit observations for a listing with
// confidence at or above floor, newest first.
func (s *Store) RecentObservations(ctx context.Context, ownerID int64, floor float64, limit int) ([]PriceObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner_id, source, normalized_title, price, currency, source_url, observed_at, confidence
         FROM price_observations
         WHERE owner_id = ? AND confidence >= ?
         ORDER BY observed_at DESC, source, source_url
         LIMIT ?`,
		ownerID, floor, positiveLimit(limit))
	if err != nil {
		return nil, storeError("recent observations", err)
	}
	defer rows.Close()

	var out []PriceObservation
	for rows.Next() {
		var (
			o        PriceObservation
			observed string
		)
		if err := rows.Scan(&o.OwnerID, &o.Source, &o.NormalizedTitle, &o.Price, &o.Currency,
			&o.SourceURL, &observed, &o.Confidence); err != nil {
			return nil, err
		}
		if t, err := parseTimeString(observed); err == nil {
			o.ObservedAt = t
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// PriceStatsView reads the listing_price_stats view for one listing. The view
// only aggregates observations at or above the default confidence floor. A
// listing without qualifying observations returns nil, nil.
func (s *Store) PriceStatsView(ctx context.Context, ownerID int64) (*PriceStatsRow, error) {
	var (
		row      PriceStatsRow
		observed sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, observation_count, min_price, max_price, avg_price, avg_confidence, last_observed_at
         FROM listing_price_stats WHERE owner_id = ?`, ownerID,
	).Scan(&row.OwnerID, &row.ObservationCount, &row.MinPrice, &row.MaxPrice, &row.AvgPrice, &row.AvgConfidence, &observed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("price stats view", err)
	}
	if t, err := parseTimeString(observed.String); err == nil {
		row.LastObservedAt = t
	}
	return &row, nil
}
