package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const clusterColumns = `cluster_id, canonical_owner_id, member_count, listing_count,
    min_price, max_price, saturation, last_seen, created_at, updated_at`

func clusterColumnsFor(alias string) string {
	return alias + ".cluster_id, " + alias + ".canonical_owner_id, " + alias + ".member_count, " +
		alias + ".listing_count, " + alias + ".min_price, " + alias + ".max_price, " +
		alias + ".saturation, " + alias + ".last_seen, " + alias + ".created_at, " + alias + ".updated_at"
}

func scanCluster(row scanner) (*Cluster, error) {
	var (
		c          Cluster
		minPrice   sql.NullFloat64
		maxPrice   sql.NullFloat64
		saturation string
		lastSeen   sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(&c.ClusterID, &c.CanonicalOwnerID, &c.MemberCount, &c.ListingCount,
		&minPrice, &maxPrice, &saturation, &lastSeen, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	c.MinPrice = minPrice.Float64
	c.MaxPrice = maxPrice.Float64
	c.Saturation = Saturation(saturation)
	if t, err := parseTimeString(lastSeen.String); err == nil {
		c.LastSeen = t
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		c.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		c.UpdatedAt = t
	}
	return &c, nil
}

func scanMember(row scanner) (ClusterMember, error) {
	var (
		m           ClusterMember
		distance    sql.NullInt64
		fingerprint sql.NullInt64
		linked      string
	)
	if err := row.Scan(&m.ClusterID, &m.ListingID, &distance, &m.TextSimilarity, &fingerprint, &linked); err != nil {
		return ClusterMember{}, err
	}
	m.HashDistance = intPtr(distance)
	m.Fingerprint = int64Ptr(fingerprint)
	if t, err := parseTimeString(linked); err == nil {
		m.LinkedAt = t
	}
	return m, nil
}

// LoadClusters returns every cluster with its members, ordered by cluster id.
func (s *Store) LoadClusters(ctx context.Context) ([]Cluster, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clusterColumns+` FROM clusters ORDER BY cluster_id`)
	if err != nil {
		return nil, storeError("load clusters", err)
	}
	var clusters []Cluster
	index := make(map[string]int)
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			rows.Close()
			return nil, storeError("load clusters", err)
		}
		index[c.ClusterID] = len(clusters)
		clusters = append(clusters, *c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, storeError("load clusters", err)
	}
	rows.Close()

	memberRows, err := s.db.QueryContext(ctx,
		`SELECT cluster_id, listing_id, hash_distance, text_similarity, image_fingerprint, linked_at
         FROM cluster_members ORDER BY cluster_id, listing_id`)
	if err != nil {
		return nil, storeError("load cluster members", err)
	}
	defer memberRows.Close()
	for memberRows.Next() {
		m, err := scanMember(memberRows)
		if err != nil {
			return nil, storeError("load cluster members", err)
		}
		if idx, ok := index[m.ClusterID]; ok {
			clusters[idx].Members = append(clusters[idx].Members, m)
		}
	}
	if err := memberRows.Err(); err != nil {
		return nil, storeError("load cluster members", err)
	}
	return clusters, nil
}

// SaveClusters replaces the persisted partition with snapshot in a single
// transaction: absorbed clusters are deleted, surviving clusters upserted,
// and every member row moved to its current cluster. Clusters left without
// members are removed.
func (s *Store) SaveClusters(ctx context.Context, snapshot ClusterSnapshot) error {
	now := formatTime(time.Now())
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range snapshot.Removed {
			if _, err := tx.ExecContext(ctx, `DELETE FROM cluster_members WHERE cluster_id = ?`, id); err != nil {
				return fmt.Errorf("delete members of %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM clusters WHERE cluster_id = ?`, id); err != nil {
				return fmt.Errorf("delete cluster %s: %w", id, err)
			}
		}

		clusterStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO clusters (
                cluster_id, canonical_owner_id, member_count, listing_count,
                min_price, max_price, saturation, last_seen, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT (cluster_id) DO UPDATE SET
                canonical_owner_id = excluded.canonical_owner_id,
                member_count = excluded.member_count,
                listing_count = excluded.listing_count,
                min_price = excluded.min_price,
                max_price = excluded.max_price,
                saturation = excluded.saturation,
                last_seen = excluded.last_seen,
                updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("prepare cluster upsert: %w", err)
		}
		defer clusterStmt.Close()

		memberStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO cluster_members (listing_id, cluster_id, hash_distance, text_similarity, image_fingerprint, linked_at)
             VALUES (?, ?, ?, ?, ?, ?)
             ON CONFLICT (listing_id) DO UPDATE SET
                cluster_id = excluded.cluster_id,
                hash_distance = excluded.hash_distance,
                text_similarity = excluded.text_similarity,
                image_fingerprint = excluded.image_fingerprint,
                linked_at = CASE
                    WHEN cluster_members.cluster_id = excluded.cluster_id THEN cluster_members.linked_at
                    ELSE excluded.linked_at
                END`)
		if err != nil {
			return fmt.Errorf("prepare member upsert: %w", err)
		}
		defer memberStmt.Close()

		for _, c := range snapshot.Clusters {
			if _, err := clusterStmt.ExecContext(ctx,
				c.ClusterID,
				c.CanonicalOwnerID,
				c.MemberCount,
				c.ListingCount,
				c.MinPrice,
				c.MaxPrice,
				string(c.Saturation),
				nullableTime(c.LastSeen),
				now,
				now,
			); err != nil {
				return fmt.Errorf("upsert cluster %s: %w", c.ClusterID, err)
			}
			for _, m := range c.Members {
				linked := now
				if !m.LinkedAt.IsZero() {
					linked = formatTime(m.LinkedAt)
				}
				if _, err := memberStmt.ExecContext(ctx,
					m.ListingID,
					c.ClusterID,
					nullableInt(m.HashDistance),
					m.TextSimilarity,
					nullableInt64(m.Fingerprint),
					linked,
				); err != nil {
					return fmt.Errorf("upsert member %d of %s: %w", m.ListingID, c.ClusterID, err)
				}
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM clusters WHERE cluster_id NOT IN (SELECT DISTINCT cluster_id FROM cluster_members)`); err != nil {
			return fmt.Errorf("prune empty clusters: %w", err)
		}
		return nil
	})
	if err != nil {
		return storeError("save clusters", err)
	}
	return nil
}

// GetCluster fetches a cluster with its members. A missing cluster returns nil, nil.
func (s *Store) GetCluster(ctx context.Context, clusterID string) (*Cluster, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clusterColumns+` FROM clusters WHERE cluster_id = ?`, clusterID)
	c, err := scanCluster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("get cluster", err)
	}
	members, err := s.ClusterMembers(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	c.Members = members
	return c, nil
}

// ClusterForListing returns the cluster containing a listing, or nil, nil.
func (s *Store) ClusterForListing(ctx context.Context, listingID int64) (*Cluster, error) {
	var clusterID string
	err := s.db.QueryRowContext(ctx, `SELECT cluster_id FROM cluster_members WHERE listing_id = ?`, listingID).Scan(&clusterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("cluster for listing", err)
	}
	return s.GetCluster(ctx, clusterID)
}

// ClusterMembers returns the members of a cluster ordered by listing id.
func (s *Store) ClusterMembers(ctx context.Context, clusterID string) ([]ClusterMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cluster_id, listing_id, hash_distance, text_similarity, image_fingerprint, linked_at
         FROM cluster_members WHERE cluster_id = ? ORDER BY listing_id`, clusterID)
	if err != nil {
		return nil, storeError("cluster members", err)
	}
	defer rows.Close()
	var members []ClusterMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, storeError("cluster members", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListClusters returns clusters without members, filtered and ordered by q.
func (s *Store) ListClusters(ctx context.Context, q ClusterQuery) ([]Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters WHERE listing_count >= ?`
	args := []any{q.MinMembers}
	if q.Saturation != "" {
		query += ` AND saturation = ?`
		args = append(args, string(q.Saturation))
	}
	switch q.Order {
	case OrderByPrice:
		query += ` ORDER BY min_price, cluster_id`
	case OrderByRecent:
		query += ` ORDER BY last_seen DESC, cluster_id`
	default:
		query += ` ORDER BY member_count DESC, listing_count DESC, cluster_id`
	}
	query += ` LIMIT ?`
	args = append(args, positiveLimit(q.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list clusters", err)
	}
	defer rows.Close()
	var clusters []Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, storeError("list clusters", err)
		}
		clusters = append(clusters, *c)
	}
	return clusters, rows.Err()
}

// ListClustersNeedingImage returns clusters whose canonical listing has no
// canonical image, ordered by cluster id and starting after afterID. With
// includeExisting every cluster is returned so larger images can replace
// current ones.
func (s *Store) ListClustersNeedingImage(ctx context.Context, afterID string, limit int, includeExisting bool) ([]ClusterWork, error) {
	query := `SELECT ` + clusterColumnsFor("c") + `, ` + listingColumnsFor("l") + `
        FROM clusters c JOIN listings l ON l.id = c.canonical_owner_id
        WHERE c.cluster_id > ?`
	if !includeExisting {
		query += ` AND (l.canonical_image_url IS NULL OR l.canonical_image_url = '')`
	}
	query += ` ORDER BY c.cluster_id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, afterID, positiveLimit(limit))
	if err != nil {
		return nil, storeError("list clusters needing image", err)
	}
	defer rows.Close()

	var work []ClusterWork
	for rows.Next() {
		var (
			c          Cluster
			minPrice   sql.NullFloat64
			maxPrice   sql.NullFloat64
			saturation string
			lastSeen   sql.NullString
			createdRaw string
			updatedRaw string
		)
		clusterDest := []any{&c.ClusterID, &c.CanonicalOwnerID, &c.MemberCount, &c.ListingCount,
			&minPrice, &maxPrice, &saturation, &lastSeen, &createdRaw, &updatedRaw}
		listing, err := scanListing(prefixedScanner{row: rows, prefix: clusterDest})
		if err != nil {
			return nil, storeError("list clusters needing image", err)
		}
		c.MinPrice = minPrice.Float64
		c.MaxPrice = maxPrice.Float64
		c.Saturation = Saturation(saturation)
		if t, err := parseTimeString(lastSeen.String); err == nil {
			c.LastSeen = t
		}
		if t, err := parseTimeString(createdRaw); err == nil {
			c.CreatedAt = t
		}
		if t, err := parseTimeString(updatedRaw); err == nil {
			c.UpdatedAt = t
		}
		work = append(work, ClusterWork{Cluster: c, Canonical: *listing})
	}
	return work, rows.Err()
}

// prefixedScanner lets scanListing read the trailing columns of a joined row.
type prefixedScanner struct {
	row    scanner
	prefix []any
}

func (p prefixedScanner) Scan(dest ...any) error {
	all := make([]any, 0, len(p.prefix)+len(dest))
	all = append(all, p.prefix...)
	all = append(all, dest...)
	return p.row.Scan(all...)
}
