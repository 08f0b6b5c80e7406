// Package pipeline wires the catalog passes to the record store, the search
// providers and the configuration, and runs them in order under an exclusive
// file lock.
//
// A full run is ingest, fingerprint, cluster, images, prices. Each stage gets
// its own pass id in the context so every log line of a pass can be
// correlated.
package pipeline
