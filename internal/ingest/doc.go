// Package ingest loads supplier feeds into the record store.
//
// A feed is newline-delimited JSON, one listing per line. Numeric fields are
// read leniently: numbers, numeric strings and formatted amounts are all
// accepted. Lines that cannot be parsed are skipped and counted as malformed;
// records that fail store validation are skipped and counted as invalid.
// Feed directories are scanned for raw_products_*.jsonl in lexical order.
package ingest
