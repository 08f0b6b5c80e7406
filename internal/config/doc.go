// Package config loads, normalizes, and validates dropindex configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and overlays environment variables such as
// BATCH_SIZE, VISUAL_THRESHOLD, or SOURCE_DOMAINS on top of the file values.
// The Config type centralizes every knob the passes and CLI need: the catalog
// database location, similarity thresholds, image acceptance rules, price
// consolidation policy, outbound provider credentials, and network limits.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, clamped thresholds, and clear validation errors.
package config
