package assets

import (
	"net/url"
	"sort"
	"strings"

	"dropindex/internal/store"
)

// Candidate is a downloaded image considered for canonical use.
type Candidate struct {
	URL           string
	SourcePageURL string
	Source        string
	Width         int
	Height        int
	Fingerprint   int64
	MIME          string
	ContentHash   string
}

// Area returns the pixel area.
func (c Candidate) Area() int {
	return c.Width * c.Height
}

// Canonical converts the candidate into the value written on the listing.
func (c Candidate) Canonical() store.CanonicalImage {
	fp := c.Fingerprint
	return store.CanonicalImage{
		URL:         c.URL,
		Source:      c.Source,
		Width:       c.Width,
		Height:      c.Height,
		Fingerprint: &fp,
	}
}

// TrustRank returns the position of the first trusted domain that hosts the
// image or its source page, or len(trusted) when none does.
func TrustRank(c Candidate, trusted []string) int {
	hosts := []string{hostOf(c.URL), hostOf(c.SourcePageURL)}
	for i, domain := range trusted {
		domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "www."))
		if domain == "" {
			continue
		}
		for _, host := range hosts {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				return i
			}
		}
	}
	return len(trusted)
}

// Rank orders candidates best first.
func Rank(candidates []Candidate, trusted []string) []Candidate {
	ranked := append([]Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ti, tj := TrustRank(ranked[i], trusted), TrustRank(ranked[j], trusted)
		if ti != tj {
			return ti < tj
		}
		if ranked[i].Area() != ranked[j].Area() {
			return ranked[i].Area() > ranked[j].Area()
		}
		return ranked[i].URL < ranked[j].URL
	})
	return ranked
}

func hostOf(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
