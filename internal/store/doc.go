// Package store persists supplier listings, their enrichment evidence, and
// identity clusters in SQLite.
//
// The Store owns the database connection, schema initialization, and every
// query the passes run: listing upserts from the feed, the pending-work
// predicates that select rows still lacking a fingerprint, canonical image, or
// fresh price statistics, the append-only image and price evidence logs, and
// the cluster snapshot written at the end of each clustering pass.
//
// Listings are never deleted. Re-ingesting a listing only touches the fields
// the supplier can change, so fingerprints and consolidated statistics written
// by later passes survive. Schema changes bump schemaVersion in schema.go;
// users rebuild the database to adopt the new schema.
package store
