package store

import "context"

// Stats returns row counts used by the stats command.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT
            (SELECT COUNT(1) FROM listings),
            (SELECT COUNT(1) FROM listings WHERE image_fingerprint IS NOT NULL),
            (SELECT COUNT(1) FROM listings WHERE image_fingerprint IS NULL AND image_url <> ''),
            (SELECT COUNT(1) FROM listings WHERE canonical_image_url IS NOT NULL AND canonical_image_url <> ''),
            (SELECT COUNT(1) FROM listings WHERE last_enriched_at IS NOT NULL),
            (SELECT COUNT(1) FROM image_assets),
            (SELECT COUNT(1) FROM price_observations),
            (SELECT COUNT(1) FROM clusters),
            (SELECT COUNT(1) FROM clusters WHERE listing_count > 1),
            (SELECT COUNT(1) FROM cluster_members)`,
	).Scan(
		&st.Listings,
		&st.Fingerprinted,
		&st.PendingFingerprint,
		&st.WithCanonicalImage,
		&st.WithPriceStats,
		&st.ImageAssets,
		&st.PriceObservations,
		&st.Clusters,
		&st.MultiListing,
		&st.ClusteredListings,
	)
	if err != nil {
		return Stats{}, storeError("stats", err)
	}
	return st, nil
}
