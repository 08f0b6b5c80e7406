package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dropindex/internal/ingest"
	"dropindex/internal/services"
	"dropindex/internal/store"
	"dropindex/internal/testsupport"
)

const feed = `{"id": 101, "sku": "T500", "name": "Reloj Inteligente T500", "sale_price": 45900, "suggested_price": "79900", "category_ids": [3, "7"], "warehouse_id": 2, "user_id": 55, "user_name": "Tienda Uno", "stock": "12", "image_url": "https://img.example/t500.jpg", "capture_timestamp": "2024-05-01T10:00:00.123456"}
not json at all
{"id": 102, "sku": 8899, "name": "Silla Gamer", "sale_price": "$ 299.900", "suggested_price": null, "category_ids": [], "user_id": "56", "user_name": "Tienda Dos", "stock": 3, "image_url": "", "capture_timestamp": 1714557600}

{"id": 103, "name": "Precio negativo", "sale_price": -5, "suggested_price": 10, "stock": 1}
{"sku": "sin-id", "name": "Sin id", "sale_price": 1}
{"id": 104, "name": "Objeto raro", "sale_price": {"amount": 3}}
`

func writeFeed(t *testing.T, dir, name, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write feed: %v", err)
	}
	return path
}

func TestLoadCountsEveryLine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	loader := ingest.NewLoader(st, nil)

	summary, err := loader.Load(context.Background(), strings.NewReader(feed), "feed")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if summary.Processed != 6 || summary.Updated != 2 || summary.Skipped != 4 {
		t.Fatalf("unexpected summary %s", summary)
	}
	if summary.ReasonCount(services.ReasonMalformed) != 2 || summary.ReasonCount(services.ReasonInvalid) != 2 {
		t.Fatalf("unexpected reasons %s", summary)
	}

	got, err := st.GetListing(context.Background(), 101)
	if err != nil || got == nil {
		t.Fatalf("GetListing(101): %v %v", got, err)
	}
	if got.SuggestedPrice != 79900 || got.Stock != 12 || got.SellerID != 55 || len(got.CategoryIDs) != 2 {
		t.Fatalf("lenient fields not parsed: %+v", got)
	}
	wantCapture := time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)
	if !got.CaptureTime.Equal(wantCapture) {
		t.Fatalf("capture time = %v, want %v", got.CaptureTime, wantCapture)
	}

	chair, err := st.GetListing(context.Background(), 102)
	if err != nil || chair == nil {
		t.Fatalf("GetListing(102): %v %v", chair, err)
	}
	if chair.SalePrice != 299900 || chair.SKU != "8899" || chair.SellerID != 56 {
		t.Fatalf("unexpected chair %+v", chair)
	}
	if !chair.CaptureTime.Equal(time.Unix(1714557600, 0)) {
		t.Fatalf("epoch capture time not parsed: %v", chair.CaptureTime)
	}

	if negative, _ := st.GetListing(context.Background(), 103); negative != nil {
		t.Fatal("negative price listing must not be written")
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	loader := ingest.NewLoader(st, nil)
	ctx := context.Background()

	if _, err := loader.Load(ctx, strings.NewReader(feed), "feed"); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	before, err := st.GetListing(ctx, 101)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	statsBefore, _ := st.Stats(ctx)

	again, err := loader.Load(ctx, strings.NewReader(feed), "feed")
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if again.Updated != 0 {
		t.Fatalf("expected no writes on re-ingest, got %s", again)
	}
	after, _ := st.GetListing(ctx, 101)
	if !after.UpdatedAt.Equal(before.UpdatedAt) || after.SalePrice != before.SalePrice {
		t.Fatalf("re-ingest changed the row: %+v -> %+v", before, after)
	}
	statsAfter, _ := st.Stats(ctx)
	if statsAfter.Listings != statsBefore.Listings {
		t.Fatalf("row count changed: %d -> %d", statsBefore.Listings, statsAfter.Listings)
	}
}

func TestLoadDirProcessesFeedsInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	dir := cfg.Paths.FeedDir

	writeFeed(t, dir, "raw_products_2024-05-02.jsonl", `{"id": 1, "name": "Reloj", "sale_price": 200, "stock": 1}`+"\n")
	writeFeed(t, dir, "raw_products_2024-05-01.jsonl", `{"id": 1, "name": "Reloj", "sale_price": 100, "stock": 1}`+"\n")
	writeFeed(t, dir, "notes.txt", "ignored")

	files, err := ingest.FeedFiles(dir)
	if err != nil {
		t.Fatalf("FeedFiles: %v", err)
	}
	if len(files) != 2 || !strings.HasSuffix(files[0], "2024-05-01.jsonl") {
		t.Fatalf("unexpected files %v", files)
	}

	summary, err := ingest.NewLoader(st, nil).LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if summary.Processed != 2 || summary.Updated != 2 {
		t.Fatalf("unexpected summary %s", summary)
	}
	got, _ := st.GetListing(context.Background(), 1)
	if got.SalePrice != 200 {
		t.Fatalf("expected the later feed to win, got %v", got.SalePrice)
	}
}

type brokenStore struct{}

func (brokenStore) Upsert(context.Context, store.Listing) (store.UpsertResult, error) {
	return store.UpsertUnchanged, services.Wrap(services.ErrSystemic, "store", "insert listing", "disk I/O error", nil)
}

func TestLoadAbortsOnSystemicError(t *testing.T) {
	input := `{"id": 1, "name": "a", "sale_price": 1}` + "\n" + `{"id": 2, "name": "b", "sale_price": 1}` + "\n"
	summary, err := ingest.NewLoader(brokenStore{}, nil).Load(context.Background(), strings.NewReader(input), "feed")
	if !errors.Is(err, services.ErrSystemic) {
		t.Fatalf("expected systemic error, got %v", err)
	}
	if summary.Processed != 1 || summary.Failed != 1 {
		t.Fatalf("expected the pass to stop at the first line, got %s", summary)
	}
}

func TestLoadSkipsOversizedLineAndContinues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	huge := `{"id": 1, "name": "` + strings.Repeat("x", 17<<20) + `", "sale_price": 1}`
	input := huge + "\n" +
		`{"id": 2, "name": "Reloj", "sale_price": 100, "stock": 1}` + "\n" +
		`{"id": 3, "name": "Silla", "sale_price": 200, "stock": 1}`

	summary, err := ingest.NewLoader(st, nil).Load(ctx, strings.NewReader(input), "feed")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if summary.Processed != 3 || summary.Updated != 2 || summary.ReasonCount(services.ReasonMalformed) != 1 {
		t.Fatalf("expected one malformed line and two writes, got %s", summary)
	}
	for _, id := range []int64{2, 3} {
		if got, err := st.GetListing(ctx, id); err != nil || got == nil {
			t.Fatalf("listing %d after the oversized line was lost: %v", id, err)
		}
	}
	if got, _ := st.GetListing(ctx, 1); got != nil {
		t.Fatal("oversized line must not be written")
	}
}

func TestLoadRejectsFractionalIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	input := `{"id": "12.7", "name": "Reloj", "sale_price": 100}` + "\n" +
		`{"id": 13.5, "name": "Silla", "sale_price": 100}` + "\n" +
		`{"id": 99999999999999999999, "name": "Mesa", "sale_price": 100}` + "\n" +
		`{"id": 14.0, "name": "Lampara", "sale_price": 100}` + "\n"

	summary, err := ingest.NewLoader(st, nil).Load(ctx, strings.NewReader(input), "feed")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if summary.ReasonCount(services.ReasonMalformed) != 3 || summary.Updated != 1 {
		t.Fatalf("expected three malformed ids and one write, got %s", summary)
	}
	for _, id := range []int64{12, 13} {
		if got, _ := st.GetListing(ctx, id); got != nil {
			t.Fatalf("fractional id was truncated to %d", id)
		}
	}
	if got, _ := st.GetListing(ctx, 14); got == nil {
		t.Fatal("integral id written as 14.0 should load")
	}
}
