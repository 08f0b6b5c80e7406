// Package main hosts the dropindex CLI entrypoint and command graph.
//
// The Cobra command tree runs the catalog passes (ingest, fingerprint,
// cluster, enrich) against the local SQLite catalog and renders the results
// as tables or JSON. It centralizes configuration resolution, logger setup
// and store lifetime so subcommands only describe what to run and how to
// print it.
package main
