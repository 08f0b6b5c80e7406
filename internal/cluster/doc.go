// Package cluster partitions listings into identity clusters.
//
// Builder holds the listings of one pass in a flat arena indexed by position
// and maintains a union-find over those indices. A listing being assigned is
// compared against a bounded set of representatives per cluster rather than
// against every historical member, and joins every cluster it matches, so a
// bridging listing merges clusters. A pairwise sweep over the pending
// listings runs only while the backlog is small.
//
// Builder is not safe for concurrent use; a pass owns it.
package cluster
