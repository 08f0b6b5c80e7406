package cluster

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"dropindex/internal/store"
)

// Saturation thresholds on distinct seller count.
type Saturation struct {
	High int
	Full int
}

// Level classifies a seller count: above Full is saturated, above High is
// high, anything else is an opportunity.
func (s Saturation) Level(sellers int) store.Saturation {
	switch {
	case sellers > s.Full:
		return store.SaturationSaturated
	case sellers > s.High:
		return store.SaturationHigh
	default:
		return store.SaturationOpportunity
	}
}

// Snapshot materializes the current partition. Each cluster keeps the id of
// the prior cluster holding most of its members; ids of other prior clusters
// that were absorbed are listed in Removed. New clusters get a fresh UUID.
func (b *Builder) Snapshot(sat Saturation) store.ClusterSnapshot {
	var snap store.ClusterSnapshot
	removed := make(map[string]struct{})
	kept := make(map[string]struct{})

	for _, members := range b.groups() {
		id, absorbed := b.clusterID(members)
		for _, old := range absorbed {
			removed[old] = struct{}{}
		}
		kept[id] = struct{}{}
		snap.Clusters = append(snap.Clusters, b.summarize(id, members, sat))
	}

	for id := range removed {
		if _, ok := kept[id]; !ok {
			snap.Removed = append(snap.Removed, id)
		}
	}
	sort.Strings(snap.Removed)
	return snap
}

// clusterID picks the surviving id for a group and the prior ids it absorbed.
func (b *Builder) clusterID(members []int) (string, []string) {
	counts := make(map[string]int)
	for _, idx := range members {
		if prior := b.nodes[idx].prior; prior != "" {
			counts[prior]++
		}
	}
	if len(counts) == 0 {
		return uuid.NewString(), nil
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids[0], ids[1:]
}

func (b *Builder) summarize(id string, members []int, sat Saturation) store.Cluster {
	c := store.Cluster{ClusterID: id, ListingCount: len(members)}
	sellers := make(map[string]struct{}, len(members))
	keep := b.priorOwner[id]
	canonical := members[0]
	for i, idx := range members {
		l := b.nodes[idx].listing
		sellers[sellerKey(l)] = struct{}{}
		if i == 0 || l.SalePrice < c.MinPrice {
			c.MinPrice = l.SalePrice
		}
		if i == 0 || l.SalePrice > c.MaxPrice {
			c.MaxPrice = l.SalePrice
		}
		if l.CaptureTime.After(c.LastSeen) {
			c.LastSeen = l.CaptureTime
		}
		if betterCanonical(l, b.nodes[canonical].listing, keep) {
			canonical = idx
		}
	}
	c.CanonicalOwnerID = b.nodes[canonical].listing.ID
	c.MemberCount = len(sellers)
	c.Saturation = sat.Level(c.MemberCount)

	c.Members = make([]store.ClusterMember, 0, len(members))
	for _, idx := range members {
		n := b.nodes[idx]
		m := store.ClusterMember{ClusterID: id, ListingID: n.listing.ID, TextSimilarity: 100, Fingerprint: n.listing.ImageFingerprint}
		if n.evidence != nil {
			m.HashDistance = n.evidence.HashDistance
			m.TextSimilarity = n.evidence.TextSimilarity
		}
		if n.prior == id {
			m.LinkedAt = n.linkedAt
		}
		c.Members = append(c.Members, m)
	}
	return c
}

// Assignment maps each listing id to its cluster id in snap.
func Assignment(snap store.ClusterSnapshot) map[int64]string {
	out := make(map[int64]string)
	for _, c := range snap.Clusters {
		for _, m := range c.Members {
			out[m.ListingID] = c.ClusterID
		}
	}
	return out
}

// Prior returns the cluster a listing belonged to when it was seeded.
func (b *Builder) Prior(id int64) string {
	idx, ok := b.index[id]
	if !ok {
		return ""
	}
	return b.nodes[idx].prior
}

// betterCanonical prefers the most complete listing (fingerprint, then
// image), then the listing with id keep, then the most recently captured,
// then the lowest id. keep is the cluster's previous canonical owner, which
// carries its enrichment.
func betterCanonical(l, current store.Listing, keep int64) bool {
	if cl, cc := completeness(l), completeness(current); cl != cc {
		return cl > cc
	}
	if keep != 0 && (l.ID == keep) != (current.ID == keep) {
		return l.ID == keep
	}
	if !l.CaptureTime.Equal(current.CaptureTime) {
		return l.CaptureTime.After(current.CaptureTime)
	}
	return l.ID < current.ID
}

func completeness(l store.Listing) int {
	score := 0
	if l.ImageFingerprint != nil {
		score++
	}
	if strings.TrimSpace(l.ImageURL) != "" {
		score++
	}
	return score
}

func sellerKey(l store.Listing) string {
	if l.SellerID != 0 {
		return "id:" + strconv.FormatInt(l.SellerID, 10)
	}
	name := strings.ToLower(strings.TrimSpace(l.SellerName))
	if name == "" {
		return "listing:" + strconv.FormatInt(l.ID, 10)
	}
	return "name:" + name
}
