package testsupport

import (
	"context"
	"testing"
	"time"

	"dropindex/internal/config"
	"dropindex/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// Listing builds a valid listing with deterministic defaults.
func Listing(id int64, name string) store.Listing {
	return store.Listing{
		ID:             id,
		SKU:            "SKU-" + name,
		Name:           name,
		SalePrice:      10000,
		SuggestedPrice: 20000,
		SellerID:       id,
		SellerName:     "seller",
		Stock:          5,
		WarehouseID:    1,
		CaptureTime:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// MustUpsert inserts or refreshes listings and fails the test on error.
func MustUpsert(t testing.TB, st *store.Store, listings ...store.Listing) {
	t.Helper()

	for _, l := range listings {
		if _, err := st.Upsert(context.Background(), l); err != nil {
			t.Fatalf("store.Upsert(%d): %v", l.ID, err)
		}
	}
}

// Fingerprint returns a pointer to v for building listings with fingerprints.
func Fingerprint(v int64) *int64 {
	return &v
}
