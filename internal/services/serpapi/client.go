// Package serpapi queries Google Shopping results through SerpAPI.
package serpapi

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"dropindex/internal/config"
	"dropindex/internal/services"
	"dropindex/internal/services/webclient"
	"dropindex/internal/textutil"
)

const (
	sourceName = "google_shopping"
	maxResults = 100
)

// Client searches Google Shopping prices.
type Client struct {
	http     *webclient.Client
	baseURL  string
	apiKey   string
	country  string
	language string
	currency string
}

// Params holds the market settings sent with each query.
type Params struct {
	BaseURL  string
	Country  string
	Language string
	Currency string
}

// New constructs a Client.
func New(httpClient *webclient.Client, apiKey string, params Params) *Client {
	base := strings.TrimSpace(params.BaseURL)
	if base == "" {
		base = "https://serpapi.com/search.json"
	}
	return &Client{
		http:     httpClient,
		baseURL:  base,
		apiKey:   strings.TrimSpace(apiKey),
		country:  strings.TrimSpace(params.Country),
		language: strings.TrimSpace(params.Language),
		currency: strings.ToUpper(strings.TrimSpace(params.Currency)),
	}
}

// FromConfig returns nil when no API key is configured.
func FromConfig(cfg *config.Config, doer webclient.Doer) *Client {
	if cfg == nil || strings.TrimSpace(cfg.Providers.SerpAPIKey) == "" {
		return nil
	}
	return New(webclient.FromConfig(cfg, "serpapi", doer), cfg.Providers.SerpAPIKey, Params{
		BaseURL:  cfg.Providers.SerpAPIBaseURL,
		Country:  cfg.Providers.Country,
		Language: cfg.Providers.Language,
		Currency: cfg.Providers.Currency,
	})
}

// Name implements services.PriceSearcher.
func (c *Client) Name() string {
	return sourceName
}

type shoppingResult struct {
	Title          string   `json:"title"`
	Link           string   `json:"link"`
	ProductLink    string   `json:"product_link"`
	Price          string   `json:"price"`
	ExtractedPrice *float64 `json:"extracted_price"`
}

type searchResponse struct {
	Error           string           `json:"error"`
	ShoppingResults []shoppingResult `json:"shopping_results"`
}

// SearchPrices implements services.PriceSearcher. Results whose price cannot
// be read are dropped.
func (c *Client) SearchPrices(ctx context.Context, query string, limit int) ([]services.PriceHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 || limit > maxResults {
		limit = maxResults
	}
	params := url.Values{}
	params.Set("engine", "google_shopping")
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	params.Set("num", strconv.Itoa(limit))
	if c.country != "" {
		params.Set("gl", c.country)
	}
	if c.language != "" {
		params.Set("hl", c.language)
	}

	var resp searchResponse
	if err := c.http.GetJSON(ctx, c.baseURL, params, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, services.Wrap(services.ErrTransient, "serpapi", "search", resp.Error, nil)
	}

	hits := make([]services.PriceHit, 0, len(resp.ShoppingResults))
	for _, r := range resp.ShoppingResults {
		price, ok := resultPrice(r)
		if !ok || price <= 0 {
			continue
		}
		link := r.Link
		if link == "" {
			link = r.ProductLink
		}
		hits = append(hits, services.PriceHit{
			Title:    r.Title,
			Price:    price,
			Currency: c.currency,
			URL:      link,
			Source:   sourceName,
		})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

func resultPrice(r shoppingResult) (float64, bool) {
	if r.ExtractedPrice != nil {
		return *r.ExtractedPrice, true
	}
	value, ok := textutil.ParsePrice(r.Price)
	if !ok {
		return 0, false
	}
	f, _ := value.Float64()
	return f, true
}
