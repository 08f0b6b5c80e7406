package textutil

import "strings"

// queryNoise holds the decoration runes sellers add to titles. They never help
// a search engine.
var queryNoise = map[rune]struct{}{
	'|': {}, '[': {}, ']': {}, '(': {}, ')': {},
	'–': {}, '—': {}, '•': {}, '☆': {}, '★': {},
	'✅': {}, '✳': {}, '✓': {}, '✔': {}, '❌': {},
	'\uFE0F': {},
}

// QueryString builds a search query from a listing name, appending the SKU
// when the name does not already contain it.
func QueryString(name, sku string) string {
	cleaned := strings.Map(func(r rune) rune {
		if _, noisy := queryNoise[r]; noisy {
			return ' '
		}
		return r
	}, name)
	query := strings.Join(strings.Fields(cleaned), " ")

	sku = strings.TrimSpace(sku)
	if sku != "" && !strings.Contains(strings.ToLower(query), strings.ToLower(sku)) {
		query = joinNonEmpty(query, sku)
	}
	return query
}
