// Package logging assembles structured slog loggers and formatting helpers used
// across dropindex passes.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pass code can tag log lines
// with listing IDs, cluster IDs, stages, and correlation IDs without threading
// attributes by hand. A no-op logger is provided for tests and for wiring code
// that cannot fail.
package logging
