package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateAssets(); err != nil {
		return err
	}
	if err := c.validatePrices(); err != nil {
		return err
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must be non-negative")
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DatabasePath == "" {
		return errors.New("paths.database_path must be set")
	}
	return nil
}

func (c *Config) validateMatching() error {
	m := c.Matching
	if m.VisualThreshold < 0 || m.VisualThreshold > 64 {
		return errors.New("matching.visual_threshold must be between 0 and 64")
	}
	if m.TextThreshold < 0 || m.TextThreshold > 100 {
		return errors.New("matching.text_threshold must be between 0 and 100")
	}
	if m.MinNameLength < 0 {
		return errors.New("matching.min_name_length must be non-negative")
	}
	if m.RepresentativesPerCluster < 1 {
		return errors.New("matching.representatives_per_cluster must be at least 1")
	}
	if m.MaintenanceBacklog < 0 {
		return errors.New("matching.maintenance_backlog must be non-negative")
	}
	if m.SaturationHigh < 1 || m.SaturationFull < m.SaturationHigh {
		return fmt.Errorf("matching.saturation_full (%d) must be >= saturation_high (%d) >= 1", m.SaturationFull, m.SaturationHigh)
	}
	return nil
}

func (c *Config) validateAssets() error {
	if c.Assets.MinWidth < 1 || c.Assets.MinHeight < 1 {
		return errors.New("assets.min_width and assets.min_height must be positive")
	}
	if c.Assets.OverwriteAreaRatio < 1 {
		return errors.New("assets.overwrite_area_ratio must be at least 1")
	}
	if c.Assets.CandidatesPerSource < 1 {
		return errors.New("assets.candidates_per_source must be positive")
	}
	return nil
}

func (c *Config) validatePrices() error {
	if c.Prices.ConfidenceFloor < 0 || c.Prices.ConfidenceFloor > 1 {
		return errors.New("prices.confidence_floor must be between 0 and 1")
	}
	if c.Prices.Window < 1 {
		return errors.New("prices.window must be positive")
	}
	if c.Prices.StaleAfterHours < 0 {
		return errors.New("prices.stale_after_hours must be non-negative")
	}
	if c.Prices.ResultsPerSource < 1 {
		return errors.New("prices.results_per_source must be positive")
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if c.Network.TimeoutSeconds < minTimeoutSeconds || c.Network.TimeoutSeconds > maxTimeoutSeconds {
		return fmt.Errorf("network.timeout_seconds must be between %d and %d", minTimeoutSeconds, maxTimeoutSeconds)
	}
	if c.Network.RequestsPerSecond <= 0 {
		return errors.New("network.requests_per_second must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.BatchSize < 1 {
		return errors.New("workflow.batch_size must be positive")
	}
	if c.Workflow.Workers < 1 {
		return errors.New("workflow.workers must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
