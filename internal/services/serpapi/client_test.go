package serpapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dropindex/internal/services"
	"dropindex/internal/services/serpapi"
	"dropindex/internal/services/webclient"
)

func TestSearchPricesParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("engine") != "google_shopping" || q.Get("gl") != "co" || q.Get("hl") != "es" || q.Get("api_key") != "serp" {
			t.Errorf("unexpected params %v", q)
		}
		_, _ = w.Write([]byte(`{"shopping_results":[
			{"title":"Silla Gamer","link":"https://a.example/1","price":"$ 1.299.000"},
			{"title":"Silla Gamer Pro","product_link":"https://g.example/2","price":"$ 899.900","extracted_price":899900},
			{"title":"Sin precio","link":"https://a.example/3","price":"Consultar"}
		]}`))
	}))
	defer server.Close()

	client := serpapi.New(webclient.New(webclient.Options{}), "serp", serpapi.Params{
		BaseURL: server.URL, Country: "co", Language: "es", Currency: "cop",
	})
	hits, err := client.SearchPrices(context.Background(), "silla gamer", 10)
	if err != nil {
		t.Fatalf("SearchPrices: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 priced hits, got %+v", hits)
	}
	if hits[0].Price != 1299000 || hits[0].Currency != "COP" {
		t.Fatalf("unexpected first hit %+v", hits[0])
	}
	if hits[1].Price != 899900 || hits[1].URL != "https://g.example/2" {
		t.Fatalf("unexpected second hit %+v", hits[1])
	}
}

func TestSearchPricesReportsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Invalid API key."}`))
	}))
	defer server.Close()

	client := serpapi.New(webclient.New(webclient.Options{}), "bad", serpapi.Params{BaseURL: server.URL})
	if _, err := client.SearchPrices(context.Background(), "x", 5); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
