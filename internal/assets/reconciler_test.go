package assets_test

import (
	"context"
	"errors"
	"testing"

	"dropindex/internal/assets"
	"dropindex/internal/fingerprint"
	"dropindex/internal/services"
	"dropindex/internal/services/webclient"
	"dropindex/internal/store"
	"dropindex/internal/testsupport"
)

type stubSearcher struct {
	name    string
	hits    []services.ImageHit
	err     error
	queries []string
}

func (s *stubSearcher) Name() string { return s.name }

func (s *stubSearcher) SearchImages(_ context.Context, query string, _ int) ([]services.ImageHit, error) {
	s.queries = append(s.queries, query)
	return s.hits, s.err
}

type fixture struct {
	st      *store.Store
	images  *testsupport.ImageServer
	fetcher *fingerprint.Fetcher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return fixture{
		st:      testsupport.MustOpenStore(t, cfg),
		images:  testsupport.NewImageServer(t),
		fetcher: fingerprint.NewFetcher(webclient.New(webclient.Options{}), nil),
	}
}

func (f fixture) work(t *testing.T, l store.Listing) store.ClusterWork {
	t.Helper()
	testsupport.MustUpsert(t, f.st, l)
	got, err := f.st.GetListing(context.Background(), l.ID)
	if err != nil || got == nil {
		t.Fatalf("GetListing: %v %v", got, err)
	}
	return store.ClusterWork{Cluster: store.Cluster{ClusterID: "c1", CanonicalOwnerID: l.ID}, Canonical: *got}
}

func (f fixture) image(t *testing.T, path string, size, seed int) string {
	t.Helper()
	return f.images.Add(path, testsupport.JPEG(t, testsupport.PatternImage(size, size, seed)))
}

func policy(trusted ...string) assets.Policy {
	return assets.Policy{MinWidth: 400, MinHeight: 400, TrustedDomains: trusted, OverwriteAreaRatio: 2, CandidatesPerSource: 6}
}

func TestReconcileImagePrefersTrustedDomain(t *testing.T) {
	f := newFixture(t)
	// httptest serves on 127.0.0.1; the trusted candidate is recognised by
	// its source page.
	untrusted := f.image(t, "/untrusted.jpg", 700, 1)
	trusted := f.image(t, "/trusted.jpg", 500, 2)
	small := f.image(t, "/small.jpg", 200, 3)
	missing := f.images.URL + "/missing.jpg"

	search := &stubSearcher{name: "bing", hits: []services.ImageHit{
		{ImageURL: untrusted, SourcePageURL: "https://untrusted.com/p"},
		{ImageURL: trusted, SourcePageURL: "https://www.trusted-retailer.co/p/9"},
		{ImageURL: small, SourcePageURL: "https://trusted-retailer.co/p/1"},
		{ImageURL: missing},
		{ImageURL: untrusted},
	}}
	listing := testsupport.Listing(1, "✅ Silla Gamer [Original]")
	listing.SKU = "SG-01"
	work := f.work(t, listing)
	rec := assets.NewReconciler(f.st, f.fetcher, []services.ImageSearcher{search, nil}, policy("trusted-retailer.co"), nil)

	outcome := rec.ReconcileImage(context.Background(), work)
	if outcome.Kind != services.OutcomeSuccess || !outcome.Updated {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if len(search.queries) != 1 || search.queries[0] != "Silla Gamer Original SG-01" {
		t.Fatalf("unexpected queries %v", search.queries)
	}

	got, _ := f.st.GetListing(context.Background(), 1)
	if got.CanonicalImageURL != trusted || got.CanonicalImageWidth != 500 || got.CanonicalImageSource != "bing" {
		t.Fatalf("expected trusted 500px image, got %+v", got)
	}
	if got.ImageFingerprint == nil {
		t.Fatal("expected canonical fingerprint to fill the missing listing fingerprint")
	}

	recorded, err := f.st.ListImageAssets(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListImageAssets: %v", err)
	}
	statuses := map[string]store.AssetStatus{}
	for _, a := range recorded {
		statuses[a.ImageURL] = a.Status
	}
	if len(recorded) != 4 {
		t.Fatalf("expected every distinct candidate recorded, got %d", len(recorded))
	}
	if statuses[small] != store.AssetTooSmall || statuses[missing] != store.AssetUnreachable || statuses[untrusted] != store.AssetOK {
		t.Fatalf("unexpected statuses %v", statuses)
	}
	if f.images.Hits("/untrusted.jpg") != 1 {
		t.Fatal("duplicate candidate urls should be fetched once")
	}
}

func TestReconcileImageLargerUntrustedWins(t *testing.T) {
	f := newFixture(t)
	a := f.image(t, "/a.jpg", 500, 1)
	b := f.image(t, "/b.jpg", 700, 2)
	search := &stubSearcher{name: "google_cse", hits: []services.ImageHit{{ImageURL: a}, {ImageURL: b}}}
	work := f.work(t, testsupport.Listing(2, "Licuadora Oster"))

	rec := assets.NewReconciler(f.st, f.fetcher, []services.ImageSearcher{search}, policy("trusted-retailer.co"), nil)
	if outcome := rec.ReconcileImage(context.Background(), work); outcome.Kind != services.OutcomeSuccess {
		t.Fatalf("expected success, got %+v", outcome)
	}
	got, _ := f.st.GetListing(context.Background(), 2)
	if got.CanonicalImageURL != b {
		t.Fatalf("expected larger image, got %s", got.CanonicalImageURL)
	}
}

func TestReconcileImageUsesSupplierImageFirst(t *testing.T) {
	f := newFixture(t)
	listing := testsupport.Listing(3, "Parlante Bluetooth")
	listing.ImageURL = f.image(t, "/supplier.jpg", 600, 4)
	search := &stubSearcher{name: "bing"}
	work := f.work(t, listing)

	rec := assets.NewReconciler(f.st, f.fetcher, []services.ImageSearcher{search}, policy(), nil)
	if outcome := rec.ReconcileImage(context.Background(), work); outcome.Kind != services.OutcomeSuccess {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if len(search.queries) != 0 {
		t.Fatal("a usable supplier image should not trigger searches")
	}
	got, _ := f.st.GetListing(context.Background(), 3)
	if got.CanonicalImageSource != assets.SupplierSource {
		t.Fatalf("expected supplier source, got %q", got.CanonicalImageSource)
	}
}

func TestReconcileImageDegradesOnSearchFailure(t *testing.T) {
	f := newFixture(t)
	failing := &stubSearcher{name: "bing", err: services.Wrap(services.ErrTransient, "bing", "search", "", errors.New("503"))}
	work := f.work(t, testsupport.Listing(4, "Ventilador de mesa"))

	rec := assets.NewReconciler(f.st, f.fetcher, []services.ImageSearcher{failing}, policy(), nil)
	outcome := rec.ReconcileImage(context.Background(), work)
	if outcome.Kind != services.OutcomeSkip || outcome.Reason != services.ReasonNoResults {
		t.Fatalf("expected no_results skip, got %+v", outcome)
	}
}

func TestOverwriteRequiresMateriallyLargerImage(t *testing.T) {
	f := newFixture(t)
	listing := testsupport.Listing(5, "Lampara solar")
	testsupport.MustUpsert(t, f.st, listing)
	if err := f.st.SetCanonicalImage(context.Background(), 5, store.CanonicalImage{
		URL: "https://old.example/x.jpg", Source: "bing", Width: 450, Height: 450,
	}); err != nil {
		t.Fatalf("SetCanonicalImage: %v", err)
	}

	// 600x600 is 1.78x the current area: not enough.
	medium := f.image(t, "/medium.jpg", 600, 1)
	search := &stubSearcher{name: "bing", hits: []services.ImageHit{{ImageURL: medium}}}
	p := policy()
	p.Overwrite = true
	rec := assets.NewReconciler(f.st, f.fetcher, []services.ImageSearcher{search}, p, nil)

	work := f.work(t, listing)
	if outcome := rec.ReconcileImage(context.Background(), work); outcome.Reason != services.ReasonNoUpgrade {
		t.Fatalf("expected no_upgrade, got %+v", outcome)
	}

	large := f.image(t, "/large.jpg", 700, 2)
	search.hits = []services.ImageHit{{ImageURL: large}}
	work = f.work(t, listing)
	if outcome := rec.ReconcileImage(context.Background(), work); outcome.Kind != services.OutcomeSuccess {
		t.Fatalf("expected overwrite, got %+v", outcome)
	}
	got, _ := f.st.GetListing(context.Background(), 5)
	if got.CanonicalImageURL != large {
		t.Fatalf("expected large image, got %s", got.CanonicalImageURL)
	}
}

func TestPolicyBoundaries(t *testing.T) {
	p := policy()
	if p.Accepts(400, 500) || !p.Accepts(401, 401) {
		t.Fatal("dimensions must exceed the minimums")
	}
	if p.Upgrades(200, 100) || !p.Upgrades(201, 100) || !p.Upgrades(1, 0) {
		t.Fatal("unexpected overwrite policy")
	}
}
