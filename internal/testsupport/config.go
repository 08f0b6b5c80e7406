package testsupport

import (
	"path/filepath"
	"testing"

	"dropindex/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Provider credentials are cleared so no test reaches a real API.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = base
	cfgVal.Paths.DatabasePath = filepath.Join(base, "catalog.db")
	cfgVal.Paths.FeedDir = filepath.Join(base, "raw_data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Providers.GoogleAPIKey = ""
	cfgVal.Providers.GoogleCSEID = ""
	cfgVal.Providers.BingAPIKey = ""
	cfgVal.Providers.SerpAPIKey = ""
	cfgVal.Providers.MeliEnabled = false
	cfgVal.Network.RequestsPerSecond = 0
	cfgVal.Workflow.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithConfig applies an arbitrary mutation to the test config.
func WithConfig(mutate func(*config.Config)) ConfigOption {
	return func(b *configBuilder) {
		mutate(b.cfg)
	}
}

// WithTrustedDomains replaces the trusted image domain ranking.
func WithTrustedDomains(domains ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Assets.TrustedDomains = append([]string(nil), domains...)
	}
}

// WithMinDimensions overrides the canonical image size floor.
func WithMinDimensions(width, height int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Assets.MinWidth = width
		b.cfg.Assets.MinHeight = height
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.DataDir
}
