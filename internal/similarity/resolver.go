// Package similarity decides whether two listings are the same product.
//
// Two signals are combined with a logical OR: a visual match when both image
// fingerprints are present and within VisualThreshold bits, and a textual
// match when the token-set similarity of the names reaches TextThreshold.
// Names too short after normalization never match textually.
package similarity

import (
	"dropindex/internal/config"
	"dropindex/internal/fingerprint"
	"dropindex/internal/store"
	"dropindex/internal/textutil"
)

// Defaults used when a Resolver field is left at zero.
const (
	DefaultVisualThreshold = 6
	DefaultTextThreshold   = 80.0
	DefaultMinNameLength   = 3
)

// Candidate is the part of a listing the resolver compares.
type Candidate struct {
	ID          int64
	Name        string
	Fingerprint *int64
}

// FromListing builds a Candidate from a stored listing.
func FromListing(l store.Listing) Candidate {
	return Candidate{ID: l.ID, Name: l.Name, Fingerprint: l.ImageFingerprint}
}

// Evidence records why two candidates were, or were not, judged the same.
type Evidence struct {
	// HashDistance is nil when either fingerprint is missing.
	HashDistance   *int
	TextSimilarity float64
	Visual         bool
	Textual        bool
}

// Same reports whether either signal matched.
func (e Evidence) Same() bool {
	return e.Visual || e.Textual
}

// Resolver holds the matching thresholds.
type Resolver struct {
	VisualThreshold int
	TextThreshold   float64
	MinNameLength   int
}

// New returns a Resolver with default thresholds.
func New() Resolver {
	return Resolver{
		VisualThreshold: DefaultVisualThreshold,
		TextThreshold:   DefaultTextThreshold,
		MinNameLength:   DefaultMinNameLength,
	}
}

// FromConfig returns a Resolver using the matching section of cfg.
func FromConfig(cfg *config.Config) Resolver {
	r := New()
	if cfg == nil {
		return r
	}
	r.VisualThreshold = cfg.Matching.VisualThreshold
	r.TextThreshold = cfg.Matching.TextThreshold
	r.MinNameLength = cfg.Matching.MinNameLength
	return r
}

// Compare computes the evidence for a pair. It is symmetric in a and b.
func (r Resolver) Compare(a, b Candidate) Evidence {
	var ev Evidence
	if a.Fingerprint != nil && b.Fingerprint != nil {
		d := fingerprint.Distance(*a.Fingerprint, *b.Fingerprint)
		ev.HashDistance = &d
		ev.Visual = d <= r.visualThreshold()
	}
	if r.usableName(a.Name) && r.usableName(b.Name) {
		ev.TextSimilarity = textutil.TokenSetRatio(a.Name, b.Name)
		ev.Textual = ev.TextSimilarity >= r.textThreshold()
	}
	return ev
}

// AreSameProduct reports whether a and b are the same product.
func (r Resolver) AreSameProduct(a, b Candidate) bool {
	return r.Compare(a, b).Same()
}

func (r Resolver) usableName(name string) bool {
	min := r.MinNameLength
	if min <= 0 {
		min = DefaultMinNameLength
	}
	return len([]rune(textutil.Normalize(name))) >= min
}

func (r Resolver) visualThreshold() int {
	if r.VisualThreshold < 0 {
		return DefaultVisualThreshold
	}
	return r.VisualThreshold
}

func (r Resolver) textThreshold() float64 {
	if r.TextThreshold <= 0 {
		return DefaultTextThreshold
	}
	return r.TextThreshold
}
