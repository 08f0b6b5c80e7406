// Package meli wraps the MercadoLibre public search API. A single full-text
// search backs both image and price lookups.
package meli

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"dropindex/internal/config"
	"dropindex/internal/services"
	"dropindex/internal/services/webclient"
)

const (
	sourceName = "mercadolibre"
	maxResults = 50
)

// Client queries one MercadoLibre site, e.g. MCO for Colombia.
type Client struct {
	http    *webclient.Client
	baseURL string
	site    string
}

// New constructs a Client. An empty baseURL uses the public API.
func New(httpClient *webclient.Client, baseURL, site string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.mercadolibre.com"
	}
	site = strings.ToUpper(strings.TrimSpace(site))
	if site == "" {
		site = "MCO"
	}
	return &Client{http: httpClient, baseURL: baseURL, site: site}
}

// FromConfig returns nil when the provider is disabled.
func FromConfig(cfg *config.Config, doer webclient.Doer) *Client {
	if cfg == nil || !cfg.Providers.MeliEnabled {
		return nil
	}
	return New(webclient.FromConfig(cfg, sourceName, doer), cfg.Providers.MeliBaseURL, cfg.Providers.MeliSite)
}

// Name implements the searcher interfaces.
func (c *Client) Name() string {
	return sourceName
}

type searchResponse struct {
	Results []struct {
		ID         string  `json:"id"`
		Title      string  `json:"title"`
		Price      float64 `json:"price"`
		CurrencyID string  `json:"currency_id"`
		Permalink  string  `json:"permalink"`
		Thumbnail  string  `json:"thumbnail"`
	} `json:"results"`
}

// SearchMarket implements services.MarketSearcher.
func (c *Client) SearchMarket(ctx context.Context, query string, limit int) ([]services.MarketItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 || limit > maxResults {
		limit = maxResults
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/sites/%s/search", c.baseURL, url.PathEscape(c.site))
	var resp searchResponse
	if err := c.http.GetJSON(ctx, endpoint, params, nil, &resp); err != nil {
		return nil, err
	}
	items := make([]services.MarketItem, 0, len(resp.Results))
	for _, r := range resp.Results {
		items = append(items, services.MarketItem{
			ID:        r.ID,
			Title:     r.Title,
			Price:     r.Price,
			Currency:  r.CurrencyID,
			Permalink: r.Permalink,
			Thumbnail: fullSizeImage(r.Thumbnail),
		})
	}
	return items, nil
}

// SearchImages implements services.ImageSearcher using result thumbnails.
func (c *Client) SearchImages(ctx context.Context, query string, limit int) ([]services.ImageHit, error) {
	items, err := c.SearchMarket(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]services.ImageHit, 0, len(items))
	for _, item := range items {
		if item.Thumbnail == "" {
			continue
		}
		hits = append(hits, services.ImageHit{
			ImageURL:      item.Thumbnail,
			SourcePageURL: item.Permalink,
			Title:         item.Title,
			Source:        sourceName,
		})
	}
	return hits, nil
}

// SearchPrices implements services.PriceSearcher. Results without a positive
// price are dropped.
func (c *Client) SearchPrices(ctx context.Context, query string, limit int) ([]services.PriceHit, error) {
	items, err := c.SearchMarket(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]services.PriceHit, 0, len(items))
	for _, item := range items {
		if item.Price <= 0 {
			continue
		}
		hits = append(hits, services.PriceHit{
			Title:    item.Title,
			Price:    item.Price,
			Currency: item.Currency,
			URL:      item.Permalink,
			Source:   sourceName,
		})
	}
	return hits, nil
}

// fullSizeImage upgrades a listing thumbnail (the "-I" variant) to the
// original upload ("-O") over https.
func fullSizeImage(thumbnail string) string {
	thumbnail = strings.TrimSpace(thumbnail)
	if thumbnail == "" {
		return ""
	}
	if strings.HasPrefix(thumbnail, "http://") {
		thumbnail = "https://" + strings.TrimPrefix(thumbnail, "http://")
	}
	if idx := strings.LastIndex(thumbnail, "-I."); idx >= 0 {
		thumbnail = thumbnail[:idx] + "-O." + thumbnail[idx+3:]
	}
	return thumbnail
}
