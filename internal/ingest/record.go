package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dropindex/internal/store"
	"dropindex/internal/textutil"
)

// Record is one feed line as produced by the scraper.
type Record struct {
	ID               flexInt    `json:"id"`
	SKU              flexString `json:"sku"`
	Name             flexString `json:"name"`
	SalePrice        flexFloat  `json:"sale_price"`
	SuggestedPrice   flexFloat  `json:"suggested_price"`
	CategoryIDs      []flexInt  `json:"category_ids"`
	WarehouseID      flexInt    `json:"warehouse_id"`
	UserID           flexInt    `json:"user_id"`
	UserName         flexString `json:"user_name"`
	Stock            flexInt    `json:"stock"`
	ImageURL         flexString `json:"image_url"`
	CaptureTimestamp flexTime   `json:"capture_timestamp"`
}

// ParseRecord decodes one feed line.
func ParseRecord(line []byte) (Record, error) {
	var rec Record
	dec := json.NewDecoder(bytes.NewReader(line))
	if err := dec.Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if dec.More() {
		return Record{}, fmt.Errorf("decode record: trailing data")
	}
	return rec, nil
}

// Listing converts the record into a store listing. Missing numbers become
// zero; the store rejects a missing id.
func (r Record) Listing() store.Listing {
	categories := make([]int64, 0, len(r.CategoryIDs))
	for _, c := range r.CategoryIDs {
		if c.valid {
			categories = append(categories, c.value)
		}
	}
	return store.Listing{
		ID:             r.ID.value,
		SKU:            strings.TrimSpace(r.SKU.value),
		Name:           strings.TrimSpace(r.Name.value),
		SalePrice:      r.SalePrice.value,
		SuggestedPrice: r.SuggestedPrice.value,
		CategoryIDs:    categories,
		SellerID:       r.UserID.value,
		SellerName:     strings.TrimSpace(r.UserName.value),
		Stock:          int(r.Stock.value),
		WarehouseID:    r.WarehouseID.value,
		ImageURL:       strings.TrimSpace(r.ImageURL.value),
		CaptureTime:    r.CaptureTimestamp.value,
	}
}

type flexFloat struct {
	value float64
	valid bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	d, ok, err := parseNumber(data)
	if err != nil {
		return err
	}
	f.value, _ = d.Float64()
	f.valid = ok
	return nil
}

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

type flexInt struct {
	value int64
	valid bool
}

// UnmarshalJSON rejects fractional and out of range values instead of
// truncating them.
func (f *flexInt) UnmarshalJSON(data []byte) error {
	d, ok, err := parseNumber(data)
	if err != nil {
		return err
	}
	if ok && (!d.IsInteger() || d.LessThan(minInt64) || d.GreaterThan(maxInt64)) {
		return fmt.Errorf("expected integer, got %s", d.String())
	}
	f.value = d.IntPart()
	f.valid = ok
	return nil
}

// parseNumber accepts a JSON number, a string holding an amount, or null.
// Strings that hold no digits are treated as absent.
func parseNumber(data []byte) (decimal.Decimal, bool, error) {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null" || raw == "":
		return decimal.Zero, false, nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return decimal.Zero, false, err
		}
		if strings.TrimSpace(s) == "" {
			return decimal.Zero, false, nil
		}
		d, ok := textutil.ParsePrice(s)
		if !ok {
			return decimal.Zero, false, nil
		}
		return d, true, nil
	case raw == "true" || raw == "false" || strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "["):
		return decimal.Zero, false, fmt.Errorf("expected number, got %s", raw)
	default:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("parse number %q: %w", raw, err)
		}
		return d, true, nil
	}
}

type flexString struct {
	value string
}

func (f *flexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		f.value = ""
	case strings.HasPrefix(raw, `"`):
		return json.Unmarshal(data, &f.value)
	case raw == "true" || raw == "false" || strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "["):
		return fmt.Errorf("expected string, got %s", raw)
	default:
		f.value = raw
	}
	return nil
}

type flexTime struct {
	value time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON reads ISO timestamps (naive ones are UTC) or unix epochs in
// seconds or milliseconds.
func (f *flexTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				f.value = t.UTC()
				return nil
			}
		}
		raw = s
	}
	epoch, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("parse capture timestamp %q", raw)
	}
	if epoch > 1e12 {
		f.value = time.UnixMilli(int64(epoch)).UTC()
		return nil
	}
	sec := int64(epoch)
	f.value = time.Unix(sec, int64((epoch-float64(sec))*1e9)).UTC()
	return nil
}
