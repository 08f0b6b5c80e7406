// Package services defines shared utilities consumed by the passes and the
// outbound collaborator clients.
//
// Key responsibilities:
//   - Context helpers that stamp listing IDs, pass names, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     validation, transient, or systemic.
//   - Typed per-item outcomes (success, skip with reason, fatal) and the pass
//     Summary that counts them, so no item is ever dropped silently.
//
// Subpackages hold the best-effort HTTP clients for image and price search.
package services
