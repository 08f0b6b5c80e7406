package bing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"dropindex/internal/services/bing"
	"dropindex/internal/services/webclient"
)

func TestSearchImagesSendsKeyAndMarket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "bing-key" {
			t.Errorf("unexpected key header %q", got)
		}
		q := r.URL.Query()
		if q.Get("mkt") != "es-CO" || q.Get("count") != "4" || q.Get("q") != "licuadora oster" {
			t.Errorf("unexpected params %v", q)
		}
		_, _ = w.Write([]byte(`{"value":[
			{"name":"Licuadora","contentUrl":"https://cdn.example.com/l.jpg","hostPageUrl":"https://shop.example.com/l"},
			{"name":"broken","contentUrl":"  "}
		]}`))
	}))
	defer server.Close()

	client := bing.New(webclient.New(webclient.Options{}), "bing-key", server.URL, "es-CO")
	hits, err := client.SearchImages(context.Background(), "licuadora oster", 4)
	if err != nil {
		t.Fatalf("SearchImages: %v", err)
	}
	if len(hits) != 1 || hits[0].ImageURL != "https://cdn.example.com/l.jpg" || hits[0].Source != "bing" {
		t.Fatalf("unexpected hits %+v", hits)
	}
}

func TestSearchImagesEmptyQuery(t *testing.T) {
	client := bing.New(webclient.New(webclient.Options{}), "k", "http://127.0.0.1:1", "")
	hits, err := client.SearchImages(context.Background(), "   ", 4)
	if err != nil || hits != nil {
		t.Fatalf("expected no request for empty query, got %v %v", hits, err)
	}
}
