// Package assets picks a canonical image for each identity cluster.
//
// For a cluster whose canonical listing has no canonical image, the listing's
// own supplier image is tried first. When it is missing or too small, every
// configured image searcher is queried with a cleaned name+SKU query and each
// distinct candidate is downloaded. Every candidate is recorded in the
// append-only image asset log with its status, including rejected ones.
//
// Accepted candidates are ranked by position in the trusted domain list, then
// by pixel area, then by URL. In overwrite mode an existing canonical image is
// replaced only by a candidate whose area exceeds it by the configured ratio.
package assets
