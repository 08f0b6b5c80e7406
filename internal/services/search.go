package services

import "context"

// ImageHit is one image search result.
type ImageHit struct {
	ImageURL      string `json:"image_url"`
	SourcePageURL string `json:"source_page_url"`
	Title         string `json:"title"`
	// Source tags the provider that produced the hit, e.g. "bing".
	Source string `json:"source"`
}

// PriceHit is one marketplace price result.
type PriceHit struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	URL      string  `json:"url"`
	Source   string  `json:"source"`
}

// MarketItem is one marketplace full-text search result. It carries enough to
// act as both an image hit and a price hit.
type MarketItem struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	Permalink string  `json:"permalink"`
	Thumbnail string  `json:"thumbnail"`
}

// ImageSearcher finds candidate product images for a query.
type ImageSearcher interface {
	Name() string
	SearchImages(ctx context.Context, query string, limit int) ([]ImageHit, error)
}

// PriceSearcher finds marketplace prices for a query.
type PriceSearcher interface {
	Name() string
	SearchPrices(ctx context.Context, query string, limit int) ([]PriceHit, error)
}

// MarketSearcher runs a marketplace full-text search.
type MarketSearcher interface {
	Name() string
	SearchMarket(ctx context.Context, query string, limit int) ([]MarketItem, error)
}
