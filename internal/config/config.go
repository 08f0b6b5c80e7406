package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and database locations.
type Paths struct {
	DataDir      string `toml:"data_dir" env:"DROPINDEX_DATA_DIR"`
	DatabasePath string `toml:"database_path" env:"DROPINDEX_DB_PATH"`
	FeedDir      string `toml:"feed_dir" env:"RAW_DIR"`
	LogDir       string `toml:"log_dir" env:"DROPINDEX_LOG_DIR"`
}

// Matching contains the identity resolution thresholds.
type Matching struct {
	// VisualThreshold is the maximum Hamming distance (of 64 bits) at which two
	// image fingerprints are treated as the same picture.
	VisualThreshold int `toml:"visual_threshold" env:"VISUAL_THRESHOLD"`
	// TextThreshold is the minimum token-set similarity (0-100) for two names
	// to be treated as the same product.
	TextThreshold float64 `toml:"text_threshold" env:"TEXT_THRESHOLD"`
	// MinNameLength disables the textual signal for placeholder titles.
	MinNameLength int `toml:"min_name_length" env:"MIN_NAME_LENGTH"`
	// RepresentativesPerCluster bounds how many members of each cluster a new
	// listing is compared against.
	RepresentativesPerCluster int `toml:"representatives_per_cluster" env:"CLUSTER_REPRESENTATIVES"`
	// MaintenanceBacklog is the largest pending set the pairwise sweep runs on.
	MaintenanceBacklog int `toml:"maintenance_backlog" env:"CLUSTER_MAINTENANCE_BACKLOG"`
	SaturationHigh     int `toml:"saturation_high" env:"SATURATION_HIGH"`
	SaturationFull     int `toml:"saturation_full" env:"SATURATION_FULL"`
}

// Assets contains canonical image acceptance and selection policy.
type Assets struct {
	MinWidth            int      `toml:"min_width" env:"MIN_WIDTH"`
	MinHeight           int      `toml:"min_height" env:"MIN_HEIGHT"`
	OverwriteCanonical  bool     `toml:"overwrite_canonical" env:"OVERWRITE_CANONICAL"`
	OverwriteAreaRatio  float64  `toml:"overwrite_area_ratio" env:"OVERWRITE_AREA_RATIO"`
	TrustedDomains      []string `toml:"trusted_domains" env:"SOURCE_DOMAINS" envSeparator:","`
	CandidatesPerSource int      `toml:"candidates_per_source" env:"CANDIDATES_PER_SOURCE"`
}

// Prices contains price consolidation policy.
type Prices struct {
	ConfidenceFloor  float64 `toml:"confidence_floor" env:"PRICE_CONFIDENCE_FLOOR"`
	Window           int     `toml:"window" env:"PRICE_WINDOW"`
	StaleAfterHours  int     `toml:"stale_after_hours" env:"PRICE_STALE_AFTER_HOURS"`
	ResultsPerSource int     `toml:"results_per_source" env:"PRICE_RESULTS_PER_SOURCE"`
}

// Network contains outbound HTTP limits shared by every collaborator.
type Network struct {
	TimeoutSeconds    int     `toml:"timeout_seconds" env:"TIMEOUT"`
	RequestsPerSecond float64 `toml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	UserAgent         string  `toml:"user_agent" env:"USER_AGENT"`
}

// Workflow contains pass sizing.
type Workflow struct {
	BatchSize int `toml:"batch_size" env:"BATCH_SIZE"`
	Workers   int `toml:"workers" env:"WORKERS"`
}

// Providers contains credentials and endpoints for the external search APIs.
// A provider without credentials is skipped.
type Providers struct {
	GoogleCSEID    string `toml:"google_cse_id" env:"GOOGLE_CSE_ID"`
	GoogleAPIKey   string `toml:"google_api_key" env:"GOOGLE_API_KEY"`
	GoogleBaseURL  string `toml:"google_base_url" env:"GOOGLE_BASE_URL"`
	BingAPIKey     string `toml:"bing_api_key" env:"BING_API_KEY"`
	BingBaseURL    string `toml:"bing_base_url" env:"BING_BASE_URL"`
	BingMarket     string `toml:"bing_market" env:"BING_MARKET"`
	MeliEnabled    bool   `toml:"meli_enabled" env:"MELI_ENABLED"`
	MeliSite       string `toml:"meli_site" env:"MELI_SITE"`
	MeliBaseURL    string `toml:"meli_base_url" env:"MELI_BASE_URL"`
	SerpAPIKey     string `toml:"serpapi_key" env:"SERPAPI_KEY"`
	SerpAPIBaseURL string `toml:"serpapi_base_url" env:"SERPAPI_BASE_URL"`
	Country        string `toml:"country" env:"MARKET_COUNTRY"`
	Language       string `toml:"language" env:"MARKET_LANGUAGE"`
	Currency       string `toml:"currency" env:"MARKET_CURRENCY"`
}

// Notifications contains the ntfy endpoint for pipeline events. An empty
// topic disables notifications.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic" env:"NTFY_TOPIC"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds" env:"NTFY_TIMEOUT"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" env:"LOG_FORMAT"`
	Level  string `toml:"level" env:"LOG_LEVEL"`
}

// Config encapsulates all configuration values for dropindex.
//
// Configuration sections by subsystem:
//   - Paths: data, feed, and log directories plus the catalog database
//   - Matching: visual/textual thresholds and cluster maintenance limits
//   - Assets: canonical image acceptance and overwrite policy
//   - Prices: confidence floor and consolidation window
//   - Network: timeouts, rate limits, and user agent for outbound calls
//   - Workflow: batch size and worker pool width
//   - Providers: image and price search credentials
//   - Notifications: ntfy topic for run summaries and failures
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Matching      Matching      `toml:"matching"`
	Assets        Assets        `toml:"assets"`
	Prices        Prices        `toml:"prices"`
	Network       Network       `toml:"network"`
	Workflow      Workflow      `toml:"workflow"`
	Providers     Providers     `toml:"providers"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dropindex/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// variables override file values. The returned config has all path fields
// expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, "", false, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dropindex.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, feed, and log directories plus the
// parent of the database file.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.FeedDir, c.Paths.LogDir, filepath.Dir(c.Paths.DatabasePath)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// NetworkTimeout returns the per-request timeout for outbound calls.
func (c *Config) NetworkTimeout() time.Duration {
	return time.Duration(c.Network.TimeoutSeconds) * time.Second
}

// LockPath returns the file used to serialize mutating passes.
func (c *Config) LockPath() string {
	return c.Paths.DatabasePath + ".lock"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
