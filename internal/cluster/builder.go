package cluster

import (
	"sort"
	"time"

	"dropindex/internal/similarity"
	"dropindex/internal/store"
)

const defaultRepresentatives = 3

type node struct {
	listing   store.Listing
	candidate similarity.Candidate
	// prior is the cluster the listing belonged to when the pass started.
	prior    string
	linkedAt time.Time
	// stale marks a clustered listing whose fingerprint changed since.
	stale    bool
	evidence *similarity.Evidence
}

// Builder incrementally resolves listings into clusters.
type Builder struct {
	resolver similarity.Resolver
	reps     int

	nodes  []node
	index  map[int64]int
	parent []int
	size   []int

	// repsByRoot holds up to reps member indices per live root.
	repsByRoot  map[int][]int
	roots       []int
	comparisons int

	// priorOwner maps seeded cluster ids to their canonical owner.
	priorOwner map[string]int64
}

// NewBuilder returns an empty Builder. representatives bounds how many
// members of each cluster a listing is compared against.
func NewBuilder(resolver similarity.Resolver, representatives int) *Builder {
	if representatives <= 0 {
		representatives = defaultRepresentatives
	}
	return &Builder{
		resolver:   resolver,
		reps:       representatives,
		index:      make(map[int64]int),
		repsByRoot: make(map[int][]int),
		priorOwner: make(map[string]int64),
	}
}

// Add places listings in the arena as unassigned singletons. A listing id
// already present is refreshed in place.
func (b *Builder) Add(listings ...store.Listing) {
	for _, l := range listings {
		if idx, ok := b.index[l.ID]; ok {
			b.nodes[idx].listing = l
			b.nodes[idx].candidate = similarity.FromListing(l)
			continue
		}
		idx := len(b.nodes)
		b.nodes = append(b.nodes, node{listing: l, candidate: similarity.FromListing(l)})
		b.parent = append(b.parent, idx)
		b.size = append(b.size, 1)
		b.index[l.ID] = idx
	}
}

// Len returns the number of listings in the arena.
func (b *Builder) Len() int {
	return len(b.nodes)
}

// Index returns the arena index of a listing id.
func (b *Builder) Index(id int64) (int, bool) {
	idx, ok := b.index[id]
	return idx, ok
}

// Comparisons returns how many pairwise resolver calls have been made.
func (b *Builder) Comparisons() int {
	return b.comparisons
}

// Seed restores a previous partition. Members missing from the arena are
// ignored. It returns, in id order, the indices that still need assignment:
// listings in no cluster and members whose fingerprint changed after they
// were clustered. Every other seeded listing is only a comparison target.
func (b *Builder) Seed(existing []store.Cluster) []int {
	seeded := make([]bool, len(b.nodes))
	for _, c := range existing {
		if c.CanonicalOwnerID != 0 {
			b.priorOwner[c.ClusterID] = c.CanonicalOwnerID
		}
		first := -1
		for _, m := range c.Members {
			idx, ok := b.index[m.ListingID]
			if !ok || seeded[idx] {
				continue
			}
			seeded[idx] = true
			n := &b.nodes[idx]
			n.prior = c.ClusterID
			n.linkedAt = m.LinkedAt
			n.stale = !sameFingerprint(m.Fingerprint, n.listing.ImageFingerprint)
			ev := similarity.Evidence{HashDistance: m.HashDistance, TextSimilarity: m.TextSimilarity}
			n.evidence = &ev
			if first < 0 {
				first = idx
				b.register(idx)
				continue
			}
			b.union(first, idx)
		}
	}

	pending := make([]int, 0)
	for idx := range b.nodes {
		if !seeded[idx] || b.nodes[idx].stale {
			pending = append(pending, idx)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return b.nodes[pending[i]].listing.ID < b.nodes[pending[j]].listing.ID
	})
	return pending
}

// Assign resolves one listing against the current clusters. It joins every
// cluster whose representatives match and otherwise becomes a singleton.
// It reports whether the listing joined at least one other cluster.
func (b *Builder) Assign(idx int) bool {
	if idx < 0 || idx >= len(b.nodes) {
		return false
	}
	cand := b.nodes[idx].candidate
	var best *similarity.Evidence
	joined := false

	// Unions below only append to roots at the end, so iterating the
	// current length is safe.
	count := len(b.roots)
	for i := 0; i < count; i++ {
		root := b.roots[i]
		if b.parent[root] != root || root == b.find(idx) {
			continue
		}
		for _, rep := range b.repsByRoot[root] {
			b.comparisons++
			ev := b.resolver.Compare(cand, b.nodes[rep].candidate)
			if !ev.Same() {
				continue
			}
			best = stronger(best, ev)
			b.union(idx, root)
			joined = true
			break
		}
	}

	if joined {
		b.nodes[idx].evidence = best
	} else if b.find(idx) == idx {
		if _, ok := b.repsByRoot[idx]; !ok {
			b.register(idx)
		}
	}
	b.compactRoots()
	return joined
}

// Sweep compares every pair of the given indices and unions matches that
// sit in different clusters. It is quadratic and meant for small backlogs.
func (b *Builder) Sweep(indices []int) int {
	merges := 0
	for i := 0; i < len(indices); i++ {
		for j := i + 1; j < len(indices); j++ {
			a, c := indices[i], indices[j]
			if b.find(a) == b.find(c) {
				continue
			}
			b.comparisons++
			ev := b.resolver.Compare(b.nodes[a].candidate, b.nodes[c].candidate)
			if !ev.Same() {
				continue
			}
			b.union(a, c)
			b.nodes[c].evidence = stronger(b.nodes[c].evidence, ev)
			merges++
		}
	}
	b.compactRoots()
	return merges
}

// Same reports whether two listing ids are in the same cluster.
func (b *Builder) Same(a, c int64) bool {
	ia, ok := b.index[a]
	if !ok {
		return false
	}
	ic, ok := b.index[c]
	if !ok {
		return false
	}
	return b.find(ia) == b.find(ic)
}

// groups returns member indices per root in ascending listing id order.
func (b *Builder) groups() [][]int {
	byRoot := make(map[int][]int)
	order := make([]int, 0)
	for idx := range b.nodes {
		root := b.find(idx)
		if _, ok := byRoot[root]; !ok {
			order = append(order, root)
		}
		byRoot[root] = append(byRoot[root], idx)
	}
	out := make([][]int, 0, len(order))
	for _, root := range order {
		members := byRoot[root]
		sort.Slice(members, func(i, j int) bool {
			return b.nodes[members[i]].listing.ID < b.nodes[members[j]].listing.ID
		})
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool {
		return b.nodes[out[i][0]].listing.ID < b.nodes[out[j][0]].listing.ID
	})
	return out
}

func (b *Builder) register(idx int) {
	root := b.find(idx)
	if _, ok := b.repsByRoot[root]; ok {
		return
	}
	b.repsByRoot[root] = []int{idx}
	b.roots = append(b.roots, root)
}

// find returns the root of idx with path halving.
func (b *Builder) find(idx int) int {
	for b.parent[idx] != idx {
		b.parent[idx] = b.parent[b.parent[idx]]
		idx = b.parent[idx]
	}
	return idx
}

// union merges the sets of a and c by size and merges their representatives.
func (b *Builder) union(a, c int) int {
	ra, rc := b.find(a), b.find(c)
	if ra == rc {
		return ra
	}
	if b.size[ra] < b.size[rc] {
		ra, rc = rc, ra
	}
	b.parent[rc] = ra
	b.size[ra] += b.size[rc]

	repsA, okA := b.repsByRoot[ra]
	repsC, okC := b.repsByRoot[rc]
	delete(b.repsByRoot, rc)
	merged := append(append([]int(nil), repsA...), repsC...)
	// An unregistered root is a singleton that has not been assigned yet.
	if !okA {
		merged = append(merged, ra)
		b.roots = append(b.roots, ra)
	}
	if !okC {
		merged = append(merged, rc)
	}
	b.repsByRoot[ra] = b.pickRepresentatives(merged)
	return ra
}

// pickRepresentatives keeps the most complete listings, fingerprinted ones
// first, breaking ties by id.
func (b *Builder) pickRepresentatives(indices []int) []int {
	seen := make(map[int]struct{}, len(indices))
	uniq := indices[:0]
	for _, idx := range indices {
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		uniq = append(uniq, idx)
	}
	sort.SliceStable(uniq, func(i, j int) bool {
		ci, cj := completeness(b.nodes[uniq[i]].listing), completeness(b.nodes[uniq[j]].listing)
		if ci != cj {
			return ci > cj
		}
		return b.nodes[uniq[i]].listing.ID < b.nodes[uniq[j]].listing.ID
	})
	if len(uniq) > b.reps {
		uniq = uniq[:b.reps]
	}
	return append([]int(nil), uniq...)
}

// compactRoots drops absorbed roots once they outnumber live ones.
func (b *Builder) compactRoots() {
	if len(b.roots) < 2*len(b.repsByRoot)+16 {
		return
	}
	live := b.roots[:0]
	for _, r := range b.roots {
		if _, ok := b.repsByRoot[r]; ok && b.parent[r] == r {
			live = append(live, r)
		}
	}
	b.roots = live
}

func sameFingerprint(a, c *int64) bool {
	if a == nil || c == nil {
		return a == nil && c == nil
	}
	return *a == *c
}

func stronger(current *similarity.Evidence, candidate similarity.Evidence) *similarity.Evidence {
	if current == nil {
		return &candidate
	}
	if candidate.Visual && !current.Visual {
		return &candidate
	}
	if candidate.Visual && current.Visual && current.HashDistance != nil && candidate.HashDistance != nil &&
		*candidate.HashDistance < *current.HashDistance {
		return &candidate
	}
	if candidate.Visual == current.Visual && candidate.TextSimilarity > current.TextSimilarity {
		return &candidate
	}
	return current
}
