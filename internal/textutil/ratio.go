package textutil

import (
	"sort"
	"strings"
)

// Ratio returns the indel similarity of a and b on a 0-100 scale:
// 100 * 2 * LCS(a, b) / (len(a) + len(b)), measured in runes. Inputs are
// compared as given. An empty input scores 0.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if a == b {
		return 100
	}
	return 100 * float64(2*lcsLength(ra, rb)) / float64(total)
}

// TokenSetRatio compares the normalized token sets of a and b. When the
// shared tokens cover all of either side the score is 100; otherwise it is the
// best Ratio among the shared tokens and each side's sorted token string.
// Inputs with no tokens score 0.
func TokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	var sect, onlyA, onlyB []string
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			sect = append(sect, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if _, ok := setA[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	if len(sect) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	sort.Strings(sect)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(sect, " ")
	combA := joinNonEmpty(base, strings.Join(onlyA, " "))
	combB := joinNonEmpty(base, strings.Join(onlyB, " "))

	best := Ratio(combA, combB)
	if base != "" {
		if r := Ratio(base, combA); r > best {
			best = r
		}
		if r := Ratio(base, combB); r > best {
			best = r
		}
	}
	return best
}

func tokenSet(text string) map[string]struct{} {
	tokens := Tokens(text)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

func lcsLength(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
