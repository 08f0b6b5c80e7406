package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dropindex/internal/services"
	"dropindex/internal/store"
	"dropindex/internal/testsupport"
)

func TestUpsertIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	listing := testsupport.Listing(101, "Reloj inteligente T500")
	listing.CategoryIDs = []int64{4, 9}
	listing.ImageURL = "https://cdn.example.com/t500.jpg"

	res, err := st.Upsert(ctx, listing)
	if err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	if res != store.UpsertInserted {
		t.Fatalf("expected inserted, got %s", res)
	}
	first, err := st.GetListing(ctx, 101)
	if err != nil || first == nil {
		t.Fatalf("GetListing: %v %v", first, err)
	}

	res, err = st.Upsert(ctx, listing)
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if res != store.UpsertUnchanged {
		t.Fatalf("expected unchanged, got %s", res)
	}
	second, err := st.GetListing(ctx, 101)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("identical upsert must not write: %v != %v", second.UpdatedAt, first.UpdatedAt)
	}
	if len(second.CategoryIDs) != 2 || second.CategoryIDs[1] != 9 {
		t.Fatalf("unexpected categories %v", second.CategoryIDs)
	}
	if !second.CaptureTime.Equal(listing.CaptureTime) {
		t.Fatalf("capture time %v, want %v", second.CaptureTime, listing.CaptureTime)
	}
}

func TestUpsertUpdatesOnlyMutableFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	listing := testsupport.Listing(7, "Licuadora")
	testsupport.MustUpsert(t, st, listing)
	if err := st.SetFingerprint(ctx, 7, -42); err != nil {
		t.Fatalf("SetFingerprint: %v", err)
	}
	if err := st.SetPriceStats(ctx, 7, store.PriceStats{P25: 1, P50: 2, P75: 3, Confidence: 0.8}); err != nil {
		t.Fatalf("SetPriceStats: %v", err)
	}

	changed := listing
	changed.SalePrice = 12500
	changed.Stock = 0
	changed.Name = "Renamed by seller"
	res, err := st.Upsert(ctx, changed)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if res != store.UpsertUpdated {
		t.Fatalf("expected updated, got %s", res)
	}

	got, err := st.GetListing(ctx, 7)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if got.SalePrice != 12500 || got.Stock != 0 {
		t.Fatalf("mutable fields not refreshed: %+v", got)
	}
	if got.Name != "Licuadora" {
		t.Fatalf("name must not change on re-ingest, got %q", got.Name)
	}
	if got.ImageFingerprint == nil || *got.ImageFingerprint != -42 {
		t.Fatalf("fingerprint lost: %v", got.ImageFingerprint)
	}
	if got.SuggestedPriceExt == nil || *got.SuggestedPriceExt != 2 {
		t.Fatalf("derived price stats lost: %v", got.SuggestedPriceExt)
	}
}

func TestUpsertRejectsInvalidListing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*store.Listing)
		field  string
	}{
		{"negative sale price", func(l *store.Listing) { l.SalePrice = -1 }, "sale_price"},
		{"negative suggested price", func(l *store.Listing) { l.SuggestedPrice = -0.01 }, "suggested_price"},
		{"zero id", func(l *store.Listing) { l.ID = 0 }, "id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			listing := testsupport.Listing(55, "Ventilador")
			tc.mutate(&listing)
			_, err := st.Upsert(ctx, listing)
			var verr *store.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("field = %q, want %q", verr.Field, tc.field)
			}
		})
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Listings != 0 {
		t.Fatalf("invalid listings must not be written, found %d", stats.Listings)
	}
}

func TestUpsertConcurrentDistinctIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 1; i <= 40; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := st.Upsert(ctx, testsupport.Listing(id, "Producto")); err != nil {
				errs <- err
			}
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Upsert: %v", err)
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Listings != 40 {
		t.Fatalf("expected 40 listings, got %d", stats.Listings)
	}
}

func TestPendingFingerprintsPaginates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		l := testsupport.Listing(i, "Item")
		if i != 3 {
			l.ImageURL = "https://img.example.com/a.jpg"
		}
		testsupport.MustUpsert(t, st, l)
	}
	if err := st.SetFingerprint(ctx, 2, 99); err != nil {
		t.Fatalf("SetFingerprint: %v", err)
	}

	page, err := st.ListPendingFingerprints(ctx, 0, 2)
	if err != nil {
		t.Fatalf("ListPendingFingerprints: %v", err)
	}
	if len(page) != 2 || page[0].ID != 1 || page[1].ID != 4 {
		t.Fatalf("unexpected first page: %+v", ids(page))
	}
	page, err = st.ListPendingFingerprints(ctx, 4, 2)
	if err != nil {
		t.Fatalf("ListPendingFingerprints: %v", err)
	}
	if len(page) != 1 || page[0].ID != 5 {
		t.Fatalf("unexpected second page: %+v", ids(page))
	}
}

func TestSetFingerprintUnknownListing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	err := st.SetFingerprint(context.Background(), 999, 1)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCanonicalImageKeepsExistingFingerprint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, st, testsupport.Listing(1, "A"), testsupport.Listing(2, "B"))
	if err := st.SetFingerprint(ctx, 1, 10); err != nil {
		t.Fatalf("SetFingerprint: %v", err)
	}
	img := store.CanonicalImage{URL: "https://exito.com/a.jpg", Source: "bing", Width: 800, Height: 600, Fingerprint: testsupport.Fingerprint(77)}
	for _, id := range []int64{1, 2} {
		if err := st.SetCanonicalImage(ctx, id, img); err != nil {
			t.Fatalf("SetCanonicalImage(%d): %v", id, err)
		}
	}
	one, _ := st.GetListing(ctx, 1)
	two, _ := st.GetListing(ctx, 2)
	if *one.ImageFingerprint != 10 {
		t.Fatalf("existing fingerprint overwritten: %d", *one.ImageFingerprint)
	}
	if two.ImageFingerprint == nil || *two.ImageFingerprint != 77 {
		t.Fatalf("missing fingerprint not filled: %v", two.ImageFingerprint)
	}
	if two.CanonicalArea() != 480000 || two.CanonicalImageSource != "bing" {
		t.Fatalf("unexpected canonical image: %+v", two)
	}
}

func TestEvidenceIsAppendOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.MustUpsert(t, st, testsupport.Listing(1, "A"))

	asset := store.ImageAsset{OwnerID: 1, ImageURL: "https://x/1.jpg", Source: "google", Status: store.AssetTooSmall, Width: 100, Height: 100}
	inserted, err := st.InsertImageAsset(ctx, asset)
	if err != nil || !inserted {
		t.Fatalf("InsertImageAsset: %v %v", inserted, err)
	}
	asset.Status = store.AssetOK
	inserted, err = st.InsertImageAsset(ctx, asset)
	if err != nil {
		t.Fatalf("InsertImageAsset duplicate: %v", err)
	}
	if inserted {
		t.Fatal("duplicate candidate must not be inserted")
	}
	assets, err := st.ListImageAssets(ctx, 1)
	if err != nil {
		t.Fatalf("ListImageAssets: %v", err)
	}
	if len(assets) != 1 || assets[0].Status != store.AssetTooSmall {
		t.Fatalf("original candidate must be preserved: %+v", assets)
	}

	if _, err := st.InsertImageAsset(ctx, store.ImageAsset{OwnerID: 1, ImageURL: "u", Source: "s", Status: "broken"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected invalid status to be rejected, got %v", err)
	}

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	observations := []store.PriceObservation{
		{OwnerID: 1, Source: "meli", Price: 100, SourceURL: "u1", ObservedAt: base, Confidence: 0.9},
		{OwnerID: 1, Source: "meli", Price: 110, SourceURL: "u2", ObservedAt: base.Add(time.Hour), Confidence: 0.6},
		{OwnerID: 1, Source: "serpapi", Price: 9999, SourceURL: "u3", ObservedAt: base.Add(2 * time.Hour), Confidence: 0.2},
	}
	for _, o := range observations {
		if _, err := st.InsertPriceObservation(ctx, o); err != nil {
			t.Fatalf("InsertPriceObservation: %v", err)
		}
	}
	if inserted, _ := st.InsertPriceObservation(ctx, observations[0]); inserted {
		t.Fatal("duplicate observation must not be inserted")
	}
	if _, err := st.InsertPriceObservation(ctx, store.PriceObservation{OwnerID: 1, Source: "meli", Price: -5, Confidence: 0.5}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("negative price must be rejected, got %v", err)
	}

	recent, err := st.RecentObservations(ctx, 1, 0.5, 10)
	if err != nil {
		t.Fatalf("RecentObservations: %v", err)
	}
	if len(recent) != 2 || recent[0].SourceURL != "u2" {
		t.Fatalf("expected newest qualifying observation first, got %+v", recent)
	}

	view, err := st.PriceStatsView(ctx, 1)
	if err != nil {
		t.Fatalf("PriceStatsView: %v", err)
	}
	if view == nil || view.ObservationCount != 2 || view.MaxPrice != 110 {
		t.Fatalf("view must ignore low-confidence rows: %+v", view)
	}
	if none, err := st.PriceStatsView(ctx, 2); err != nil || none != nil {
		t.Fatalf("expected nil view row for listing without observations, got %+v %v", none, err)
	}
}

func TestSaveClustersReplacesPartition(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.MustUpsert(t, st, testsupport.Listing(1, "A"), testsupport.Listing(2, "B"), testsupport.Listing(3, "C"))

	dist := 2
	first := store.ClusterSnapshot{Clusters: []store.Cluster{
		{ClusterID: "c-a", CanonicalOwnerID: 1, MemberCount: 2, ListingCount: 2, Saturation: store.SaturationOpportunity,
			Members: []store.ClusterMember{{ListingID: 1}, {ListingID: 2, HashDistance: &dist, TextSimilarity: 50}}},
		{ClusterID: "c-b", CanonicalOwnerID: 3, MemberCount: 1, ListingCount: 1, Saturation: store.SaturationOpportunity,
			Members: []store.ClusterMember{{ListingID: 3}}},
	}}
	if err := st.SaveClusters(ctx, first); err != nil {
		t.Fatalf("SaveClusters: %v", err)
	}

	loaded, err := st.LoadClusters(ctx)
	if err != nil {
		t.Fatalf("LoadClusters: %v", err)
	}
	if len(loaded) != 2 || len(loaded[0].Members) != 2 {
		t.Fatalf("unexpected loaded clusters: %+v", loaded)
	}
	if loaded[0].Members[1].HashDistance == nil || *loaded[0].Members[1].HashDistance != 2 {
		t.Fatalf("evidence not persisted: %+v", loaded[0].Members[1])
	}

	merged := store.ClusterSnapshot{
		Clusters: []store.Cluster{{ClusterID: "c-a", CanonicalOwnerID: 1, MemberCount: 3, ListingCount: 3, Saturation: store.SaturationOpportunity,
			Members: []store.ClusterMember{{ListingID: 1}, {ListingID: 2}, {ListingID: 3, TextSimilarity: 90}}}},
		Removed: []string{"c-b"},
	}
	if err := st.SaveClusters(ctx, merged); err != nil {
		t.Fatalf("SaveClusters merged: %v", err)
	}
	if gone, err := st.GetCluster(ctx, "c-b"); err != nil || gone != nil {
		t.Fatalf("absorbed cluster must be deleted: %+v %v", gone, err)
	}
	c, err := st.ClusterForListing(ctx, 3)
	if err != nil || c == nil || c.ClusterID != "c-a" || len(c.Members) != 3 {
		t.Fatalf("listing 3 should belong to c-a: %+v %v", c, err)
	}

	listed, err := st.ListClusters(ctx, store.ClusterQuery{MinMembers: 2})
	if err != nil || len(listed) != 1 {
		t.Fatalf("ListClusters: %+v %v", listed, err)
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Clusters != 1 || stats.ClusteredListings != 3 || stats.MultiListing != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestPendingWorkFollowsCanonicalListings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.MustUpsert(t, st, testsupport.Listing(1, "A"), testsupport.Listing(2, "B"))

	snapshot := store.ClusterSnapshot{Clusters: []store.Cluster{
		{ClusterID: "c-1", CanonicalOwnerID: 1, MemberCount: 1, ListingCount: 1, Saturation: store.SaturationOpportunity, Members: []store.ClusterMember{{ListingID: 1}}},
		{ClusterID: "c-2", CanonicalOwnerID: 2, MemberCount: 1, ListingCount: 1, Saturation: store.SaturationOpportunity, Members: []store.ClusterMember{{ListingID: 2}}},
	}}
	if err := st.SaveClusters(ctx, snapshot); err != nil {
		t.Fatalf("SaveClusters: %v", err)
	}
	if err := st.SetCanonicalImage(ctx, 2, store.CanonicalImage{URL: "https://x/2.jpg", Width: 500, Height: 500}); err != nil {
		t.Fatalf("SetCanonicalImage: %v", err)
	}

	work, err := st.ListClustersNeedingImage(ctx, "", 10, false)
	if err != nil {
		t.Fatalf("ListClustersNeedingImage: %v", err)
	}
	if len(work) != 1 || work[0].Cluster.ClusterID != "c-1" || work[0].Canonical.ID != 1 {
		t.Fatalf("unexpected image work: %+v", work)
	}
	all, err := st.ListClustersNeedingImage(ctx, "", 10, true)
	if err != nil || len(all) != 2 {
		t.Fatalf("overwrite mode should list all clusters: %d %v", len(all), err)
	}

	now := time.Now()
	if err := st.SetPriceStats(ctx, 1, store.PriceStats{P25: 1, P50: 2, P75: 3, Confidence: 1, EnrichedAt: now}); err != nil {
		t.Fatalf("SetPriceStats: %v", err)
	}
	stale, err := st.ListListingsNeedingPrices(ctx, now.Add(-time.Hour), 0, 10)
	if err != nil {
		t.Fatalf("ListListingsNeedingPrices: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != 2 {
		t.Fatalf("expected only listing 2 to need prices, got %v", ids(stale))
	}
	stale, err = st.ListListingsNeedingPrices(ctx, now.Add(time.Hour), 0, 10)
	if err != nil || len(stale) != 2 {
		t.Fatalf("stale window should include refreshed listing: %v %v", ids(stale), err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if _, err := st.DB().Exec(`UPDATE schema_version SET version = 99`); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	st.Close()

	_, err := store.Open(cfg)
	if !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
	if !errors.Is(err, services.ErrSystemic) {
		t.Fatalf("schema mismatch must be systemic, got %v", err)
	}
}

func ids(listings []store.Listing) []int64 {
	out := make([]int64, len(listings))
	for i, l := range listings {
		out[i] = l.ID
	}
	return out
}
