// Package bing queries the Bing Image Search API.
package bing

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dropindex/internal/config"
	"dropindex/internal/services"
	"dropindex/internal/services/webclient"
)

const (
	sourceName = "bing"
	maxResults = 150
)

// Client searches images on Bing.
type Client struct {
	http    *webclient.Client
	baseURL string
	apiKey  string
	market  string
}

// New constructs a Client. An empty baseURL uses the public endpoint.
func New(httpClient *webclient.Client, apiKey, baseURL, market string) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = "https://api.bing.microsoft.com/v7.0/images/search"
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		market:  strings.TrimSpace(market),
	}
}

// FromConfig returns nil when no subscription key is configured.
func FromConfig(cfg *config.Config, doer webclient.Doer) *Client {
	if cfg == nil || strings.TrimSpace(cfg.Providers.BingAPIKey) == "" {
		return nil
	}
	return New(webclient.FromConfig(cfg, sourceName, doer), cfg.Providers.BingAPIKey, cfg.Providers.BingBaseURL, cfg.Providers.BingMarket)
}

// Name implements services.ImageSearcher.
func (c *Client) Name() string {
	return sourceName
}

type searchResponse struct {
	Value []struct {
		Name        string `json:"name"`
		ContentURL  string `json:"contentUrl"`
		HostPageURL string `json:"hostPageUrl"`
	} `json:"value"`
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
	params.Set("q", query)
	params.Set("count", strconv.Itoa(limit))
	params.Set("imageType", "Photo")
	if c.market != "" {
		params.Set("mkt", c.market)
	}
	header := http.Header{}
	header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	var resp searchResponse
	if err := c.http.GetJSON(ctx, c.baseURL, params, header, &resp); err != nil {
		return nil, err
	}
	hits := make([]services.ImageHit, 0, len(resp.Value))
	for _, v := range resp.Value {
		if strings.TrimSpace(v.ContentURL) == "" {
			continue
		}
		hits = append(hits, services.ImageHit{
			ImageURL:      v.ContentURL,
			SourcePageURL: v.HostPageURL,
			Title:         v.Name,
			Source:        sourceName,
		})
	}
	return hits, nil
}
