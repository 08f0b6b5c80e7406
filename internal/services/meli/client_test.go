package meli_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"dropindex/internal/services/meli"
	"dropindex/internal/services/webclient"
)

const searchPayload = `{"results":[
	{"id":"MCO1","title":"Reloj Inteligente T500","price":59900,"currency_id":"COP",
	 "permalink":"https://articulo.mercadolibre.com.co/MCO-1","thumbnail":"http://http2.mlstatic.com/D_123-I.jpg"},
	{"id":"MCO2","title":"Reloj T500 Plus","price":0,"currency_id":"COP",
	 "permalink":"https://articulo.mercadolibre.com.co/MCO-2","thumbnail":""}
]}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sites/MCO/search" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("q") != "reloj t500" {
			t.Errorf("unexpected query %q", r.URL.Query().Get("q"))
		}
		_, _ = w.Write([]byte(searchPayload))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSearchPricesDropsUnpricedItems(t *testing.T) {
	server := newServer(t)
	client := meli.New(webclient.New(webclient.Options{}), server.URL, "mco")

	hits, err := client.SearchPrices(context.Background(), "reloj t500", 10)
	if err != nil {
		t.Fatalf("SearchPrices: %v", err)
	}
	if len(hits) != 1 || hits[0].Price != 59900 || hits[0].Currency != "COP" || hits[0].Source != "mercadolibre" {
		t.Fatalf("unexpected hits %+v", hits)
	}
}

func TestSearchImagesUpgradesThumbnails(t *testing.T) {
	server := newServer(t)
	client := meli.New(webclient.New(webclient.Options{}), server.URL, "MCO")

	hits, err := client.SearchImages(context.Background(), "reloj t500", 10)
	if err != nil {
		t.Fatalf("SearchImages: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 image hit, got %d", len(hits))
	}
	if hits[0].ImageURL != "https://http2.mlstatic.com/D_123-O.jpg" {
		t.Fatalf("unexpected image url %q", hits[0].ImageURL)
	}
	if hits[0].SourcePageURL != "https://articulo.mercadolibre.com.co/MCO-1" {
		t.Fatalf("unexpected page url %q", hits[0].SourcePageURL)
	}
}
