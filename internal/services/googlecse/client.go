// Package googlecse queries the Google Custom Search JSON API for product
// images, restricted to the trusted retail domains.
package googlecse

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"dropindex/internal/config"
	"dropindex/internal/services"
	"dropindex/internal/services/webclient"
)

const (
	sourceName = "google_cse"
	// The API rejects num > 10.
	maxResults = 10
)

// Client searches images through a Custom Search engine.
type Client struct {
	http    *webclient.Client
	baseURL string
	apiKey  string
	cx      string
	sites   []string
}

// Option configures a Client.
type Option func(*Client)

// WithSites restricts results to the given domains.
func WithSites(domains []string) Option {
	return func(c *Client) {
		c.sites = nil
		for _, d := range domains {
			if d = strings.TrimSpace(d); d != "" {
				c.sites = append(c.sites, d)
			}
		}
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimSpace(base); base != "" {
			c.baseURL = base
		}
	}
}

// New constructs a Client.
func New(httpClient *webclient.Client, apiKey, cx string, opts ...Option) *Client {
	c := &Client{
		http:    httpClient,
		baseURL: "https://www.googleapis.com/customsearch/v1",
		apiKey:  strings.TrimSpace(apiKey),
		cx:      strings.TrimSpace(cx),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig returns nil when the search engine id or key is missing.
func FromConfig(cfg *config.Config, doer webclient.Doer) *Client {
	if cfg == nil || strings.TrimSpace(cfg.Providers.GoogleAPIKey) == "" || strings.TrimSpace(cfg.Providers.GoogleCSEID) == "" {
		return nil
	}
	return New(
		webclient.FromConfig(cfg, sourceName, doer),
		cfg.Providers.GoogleAPIKey,
		cfg.Providers.GoogleCSEID,
		WithBaseURL(cfg.Providers.GoogleBaseURL),
		WithSites(cfg.Assets.TrustedDomains),
	)
}

// Name implements services.ImageSearcher.
func (c *Client) Name() string {
	return sourceName
}

type searchResponse struct {
	Items []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
		Image struct {
			ContextLink string `json:"contextLink"`
		} `json:"image"`
	} `json:"items"`
}

// SearchImages implements services.ImageSearcher.
func (c *Client) SearchImages(ctx context.Context, query string, limit int) ([]services.ImageHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 || limit > maxResults {
		limit = maxResults
	}
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.cx)
	params.Set("q", siteQuery(query, c.sites))
	params.Set("searchType", "image")
	params.Set("num", strconv.Itoa(limit))

	var resp searchResponse
	if err := c.http.GetJSON(ctx, c.baseURL, params, nil, &resp); err != nil {
		return nil, err
	}
	hits := make([]services.ImageHit, 0, len(resp.Items))
	for _, item := range resp.Items {
		if strings.TrimSpace(item.Link) == "" {
			continue
		}
		hits = append(hits, services.ImageHit{
			ImageURL:      item.Link,
			SourcePageURL: item.Image.ContextLink,
			Title:         item.Title,
			Source:        sourceName,
		})
	}
	return hits, nil
}

func siteQuery(query string, sites []string) string {
	if len(sites) == 0 {
		return query
	}
	filters := make([]string, 0, len(sites))
	for _, site := range sites {
		filters = append(filters, "site:"+site)
	}
	return query + " (" + strings.Join(filters, " OR ") + ")"
}
