package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAssets()
	c.normalizeProviders()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = filepath.Join(c.Paths.DataDir, "catalog.db")
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.FeedDir) == "" {
		c.Paths.FeedDir = filepath.Join(c.Paths.DataDir, "raw_data")
	}
	if c.Paths.FeedDir, err = expandPath(c.Paths.FeedDir); err != nil {
		return fmt.Errorf("paths.feed_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

// normalizeAssets lowercases the trusted-domain allow-list and strips schemes
// and "www." prefixes while keeping the configured order, which is the trust
// ranking.
func (c *Config) normalizeAssets() {
	seen := make(map[string]struct{}, len(c.Assets.TrustedDomains))
	domains := make([]string, 0, len(c.Assets.TrustedDomains))
	for _, raw := range c.Assets.TrustedDomains {
		domain := strings.ToLower(strings.TrimSpace(raw))
		domain = strings.TrimPrefix(domain, "https://")
		domain = strings.TrimPrefix(domain, "http://")
		domain = strings.TrimPrefix(domain, "www.")
		domain = strings.TrimRight(domain, "/")
		if domain == "" {
			continue
		}
		if _, ok := seen[domain]; ok {
			continue
		}
		seen[domain] = struct{}{}
		domains = append(domains, domain)
	}
	c.Assets.TrustedDomains = domains
}

func (c *Config) normalizeProviders() {
	p := &c.Providers
	p.GoogleCSEID = strings.TrimSpace(p.GoogleCSEID)
	p.GoogleAPIKey = strings.TrimSpace(p.GoogleAPIKey)
	p.BingAPIKey = strings.TrimSpace(p.BingAPIKey)
	p.SerpAPIKey = strings.TrimSpace(p.SerpAPIKey)
	p.GoogleBaseURL = defaultIfBlank(strings.TrimRight(strings.TrimSpace(p.GoogleBaseURL), "/"), defaultGoogleBaseURL)
	p.BingBaseURL = defaultIfBlank(strings.TrimRight(strings.TrimSpace(p.BingBaseURL), "/"), defaultBingBaseURL)
	p.MeliBaseURL = defaultIfBlank(strings.TrimRight(strings.TrimSpace(p.MeliBaseURL), "/"), defaultMeliBaseURL)
	p.SerpAPIBaseURL = defaultIfBlank(strings.TrimRight(strings.TrimSpace(p.SerpAPIBaseURL), "/"), defaultSerpAPIBaseURL)
	p.MeliSite = strings.ToUpper(defaultIfBlank(strings.TrimSpace(p.MeliSite), defaultMeliSite))
	p.BingMarket = defaultIfBlank(strings.TrimSpace(p.BingMarket), defaultBingMarket)
	p.Country = strings.ToLower(defaultIfBlank(strings.TrimSpace(p.Country), defaultCountry))
	p.Language = strings.ToLower(defaultIfBlank(strings.TrimSpace(p.Language), defaultLanguage))
	p.Currency = strings.ToUpper(defaultIfBlank(strings.TrimSpace(p.Currency), defaultCurrency))
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Network.UserAgent = defaultIfBlank(strings.TrimSpace(c.Network.UserAgent), defaultUserAgent)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(defaultIfBlank(strings.TrimSpace(c.Logging.Format), defaultLogFormat))
	c.Logging.Level = strings.ToLower(defaultIfBlank(strings.TrimSpace(c.Logging.Level), defaultLogLevel))
}

func defaultIfBlank(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
