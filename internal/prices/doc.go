// Package prices collects external price observations and consolidates them
// into percentile statistics on the canonical listing of each cluster.
//
// Every search hit is appended to the observation log with a confidence equal
// to the title similarity between the listing name and the hit (0 to 1).
// Consolidation reads the most recent observations at or above the
// confidence floor and computes p25, p50 and p75 by linear interpolation,
// rounded to cents. Observations below the floor stay in the log but never
// reach the percentiles.
package prices
