package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

var listingColumnNames = []string{
	"id", "sku", "name", "sale_price", "suggested_price", "category_ids", "seller_id", "seller_name",
	"stock", "warehouse_id", "image_url", "image_fingerprint", "capture_time",
	"canonical_image_url", "canonical_image_source", "canonical_image_width", "canonical_image_height",
	"price_p25", "price_p50", "price_p75", "suggested_price_ext", "enrich_confidence", "last_enriched_at",
	"created_at", "updated_at",
}

var listingColumns = listingColumnsFor("")

// listingColumnsFor returns the listing select list qualified with alias.
func listingColumnsFor(alias string) string {
	if alias == "" {
		return strings.Join(listingColumnNames, ", ")
	}
	qualified := make([]string, len(listingColumnNames))
	for i, name := range listingColumnNames {
		qualified[i] = alias + "." + name
	}
	return strings.Join(qualified, ", ")
}

type scanner interface{ Scan(dest ...any) error }

func scanListing(row scanner) (*Listing, error) {
	var (
		l               Listing
		categoriesRaw   string
		fingerprint     sql.NullInt64
		captureRaw      sql.NullString
		canonicalURL    sql.NullString
		canonicalSource sql.NullString
		canonicalWidth  sql.NullInt64
		canonicalHeight sql.NullInt64
		p25             sql.NullFloat64
		p50             sql.NullFloat64
		p75             sql.NullFloat64
		suggestedExt    sql.NullFloat64
		confidence      sql.NullFloat64
		enrichedRaw     sql.NullString
		createdRaw      string
		updatedRaw      string
	)
	if err := row.Scan(
		&l.ID,
		&l.SKU,
		&l.Name,
		&l.SalePrice,
		&l.SuggestedPrice,
		&categoriesRaw,
		&l.SellerID,
		&l.SellerName,
		&l.Stock,
		&l.WarehouseID,
		&l.ImageURL,
		&fingerprint,
		&captureRaw,
		&canonicalURL,
		&canonicalSource,
		&canonicalWidth,
		&canonicalHeight,
		&p25,
		&p50,
		&p75,
		&suggestedExt,
		&confidence,
		&enrichedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	if categoriesRaw != "" {
		_ = json.Unmarshal([]byte(categoriesRaw), &l.CategoryIDs)
	}
	l.ImageFingerprint = int64Ptr(fingerprint)
	if t, err := parseTimeString(captureRaw.String); err == nil {
		l.CaptureTime = t
	}
	l.CanonicalImageURL = canonicalURL.String
	l.CanonicalImageSource = canonicalSource.String
	l.CanonicalImageWidth = int(canonicalWidth.Int64)
	l.CanonicalImageHeight = int(canonicalHeight.Int64)
	l.PriceP25 = floatPtr(p25)
	l.PriceP50 = floatPtr(p50)
	l.PriceP75 = floatPtr(p75)
	l.SuggestedPriceExt = floatPtr(suggestedExt)
	l.EnrichConfidence = floatPtr(confidence)
	if t, err := parseTimeString(enrichedRaw.String); err == nil {
		l.LastEnrichedAt = &t
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		l.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		l.UpdatedAt = t
	}
	return &l, nil
}

func collectListings(rows *sql.Rows) ([]Listing, error) {
	defer rows.Close()
	var listings []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func encodeCategories(ids []int64) string {
	if len(ids) == 0 {
		return "[]"
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	out := int(v.Int64)
	return &out
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	out := v.Float64
	return &out
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
