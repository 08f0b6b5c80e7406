package store

import "time"

// Listing is one supplier record. ID is the supplier's identifier and never
// changes. The fields after CaptureTime are derived by the enrichment passes
// and are never touched by ingestion.
type Listing struct {
	ID               int64     `json:"id" validate:"gt=0"`
	SKU              string    `json:"sku"`
	Name             string    `json:"name"`
	SalePrice        float64   `json:"sale_price" validate:"gte=0"`
	SuggestedPrice   float64   `json:"suggested_price" validate:"gte=0"`
	CategoryIDs      []int64   `json:"category_ids,omitempty"`
	SellerID         int64     `json:"seller_id"`
	SellerName       string    `json:"seller_name"`
	Stock            int       `json:"stock"`
	WarehouseID      int64     `json:"warehouse_id"`
	ImageURL         string    `json:"image_url"`
	ImageFingerprint *int64    `json:"image_fingerprint,omitempty"`
	CaptureTime      time.Time `json:"capture_time"`

	CanonicalImageURL    string     `json:"canonical_image_url,omitempty"`
	CanonicalImageSource string     `json:"canonical_image_source,omitempty"`
	CanonicalImageWidth  int        `json:"canonical_image_width,omitempty"`
	CanonicalImageHeight int        `json:"canonical_image_height,omitempty"`
	PriceP25             *float64   `json:"price_p25,omitempty"`
	PriceP50             *float64   `json:"price_p50,omitempty"`
	PriceP75             *float64   `json:"price_p75,omitempty"`
	SuggestedPriceExt    *float64   `json:"suggested_price_ext,omitempty"`
	EnrichConfidence     *float64   `json:"enrich_confidence,omitempty"`
	LastEnrichedAt       *time.Time `json:"last_enriched_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCanonicalImage reports whether an enrichment pass has chosen an image.
func (l *Listing) HasCanonicalImage() bool {
	return l != nil && l.CanonicalImageURL != ""
}

// CanonicalArea returns the pixel area of the current canonical image.
func (l *Listing) CanonicalArea() int {
	if l == nil {
		return 0
	}
	return l.CanonicalImageWidth * l.CanonicalImageHeight
}

// UpsertResult describes what an Upsert did.
type UpsertResult int

const (
	UpsertInserted UpsertResult = iota
	UpsertUpdated
	UpsertUnchanged
)

func (r UpsertResult) String() string {
	switch r {
	case UpsertInserted:
		return "inserted"
	case UpsertUpdated:
		return "updated"
	case UpsertUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// AssetStatus records the outcome of evaluating one image candidate.
type AssetStatus string

const (
	AssetOK          AssetStatus = "ok"
	AssetUnreachable AssetStatus = "unreachable"
	AssetTooSmall    AssetStatus = "too_small"
)

// ImageAsset is one image candidate discovered for a listing. Candidates are
// append-only; (OwnerID, ImageURL) is unique.
type ImageAsset struct {
	OwnerID      int64       `json:"owner_id" validate:"gt=0"`
	ImageURL     string      `json:"image_url" validate:"required"`
	Source       string      `json:"source" validate:"required"`
	Status       AssetStatus `json:"status" validate:"oneof=ok unreachable too_small"`
	Fingerprint  *int64      `json:"fingerprint,omitempty"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	ContentMIME  string      `json:"content_mime,omitempty"`
	ContentHash  string      `json:"content_hash,omitempty"`
	DiscoveredAt time.Time   `json:"discovered_at"`
}

// Area returns the candidate's pixel area.
func (a ImageAsset) Area() int {
	return a.Width * a.Height
}

// PriceObservation is one external price sighting. Observations are
// append-only; (OwnerID, Source, SourceURL, ObservedAt) is unique.
type PriceObservation struct {
	OwnerID         int64     `json:"owner_id" validate:"gt=0"`
	Source          string    `json:"source" validate:"required"`
	NormalizedTitle string    `json:"normalized_title"`
	Price           float64   `json:"price" validate:"gte=0"`
	Currency        string    `json:"currency"`
	SourceURL       string    `json:"source_url"`
	ObservedAt      time.Time `json:"observed_at"`
	Confidence      float64   `json:"confidence" validate:"gte=0,lte=1"`
}

// CanonicalImage is the chosen image written onto a canonical listing.
type CanonicalImage struct {
	URL         string
	Source      string
	Width       int
	Height      int
	Fingerprint *int64
}

// PriceStats is the consolidated price summary written onto a listing.
// SuggestedPriceExt is always P50.
type PriceStats struct {
	P25          float64
	P50          float64
	P75          float64
	Confidence   float64
	Observations int
	EnrichedAt   time.Time
}

// PriceStatsRow is one row of the listing_price_stats view.
type PriceStatsRow struct {
	OwnerID          int64     `json:"owner_id"`
	ObservationCount int       `json:"observation_count"`
	MinPrice         float64   `json:"min_price"`
	MaxPrice         float64   `json:"max_price"`
	AvgPrice         float64   `json:"avg_price"`
	AvgConfidence    float64   `json:"avg_confidence"`
	LastObservedAt   time.Time `json:"last_observed_at"`
}

// Saturation classifies market competition for a product by seller count.
type Saturation string

const (
	SaturationOpportunity Saturation = "OPPORTUNITY"
	SaturationHigh        Saturation = "HIGH"
	SaturationSaturated   Saturation = "SATURATED"
)

// Cluster is one resolved product: a group of listings believed to be the
// same physical product.
type Cluster struct {
	ClusterID        string          `json:"cluster_id"`
	CanonicalOwnerID int64           `json:"canonical_owner_id"`
	MemberCount      int             `json:"member_count"`
	ListingCount     int             `json:"listing_count"`
	MinPrice         float64         `json:"min_price"`
	MaxPrice         float64         `json:"max_price"`
	Saturation       Saturation      `json:"saturation"`
	LastSeen         time.Time       `json:"last_seen"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Members          []ClusterMember `json:"members,omitempty"`
}

// ClusterMember links a listing to its cluster together with the evidence
// that placed it there. A listing belongs to at most one cluster.
type ClusterMember struct {
	ClusterID      string  `json:"cluster_id"`
	ListingID      int64   `json:"listing_id"`
	HashDistance   *int    `json:"hash_distance,omitempty"`
	TextSimilarity float64 `json:"text_similarity"`
	// Fingerprint is the listing's image fingerprint when it was last
	// clustered.
	Fingerprint *int64    `json:"image_fingerprint,omitempty"`
	LinkedAt    time.Time `json:"linked_at"`
}

// ClusterSnapshot is the complete partition produced by a clustering pass.
// Removed lists clusters absorbed by merges.
type ClusterSnapshot struct {
	Clusters []Cluster
	Removed  []string
}

// ClusterWork pairs a cluster with its canonical listing.
type ClusterWork struct {
	Cluster   Cluster
	Canonical Listing
}

// ClusterOrder selects the sort order for ListClusters.
type ClusterOrder string

const (
	OrderBySellers ClusterOrder = "sellers"
	OrderByPrice   ClusterOrder = "price"
	OrderByRecent  ClusterOrder = "recent"
)

// ClusterQuery filters ListClusters.
type ClusterQuery struct {
	Order      ClusterOrder
	Saturation Saturation
	MinMembers int
	Limit      int
}

// Stats summarizes table contents for diagnostics.
type Stats struct {
	Listings           int `json:"listings"`
	Fingerprinted      int `json:"fingerprinted"`
	PendingFingerprint int `json:"pending_fingerprint"`
	WithCanonicalImage int `json:"with_canonical_image"`
	WithPriceStats     int `json:"with_price_stats"`
	ImageAssets        int `json:"image_assets"`
	PriceObservations  int `json:"price_observations"`
	Clusters           int `json:"clusters"`
	MultiListing       int `json:"multi_listing_clusters"`
	ClusteredListings  int `json:"clustered_listings"`
}
