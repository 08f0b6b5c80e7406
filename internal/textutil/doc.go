// Package textutil provides the text primitives behind product name matching.
//
// The primary use cases are:
//   - Normalizing seller titles (case, accents, punctuation, emoji) before comparison
//   - Indel-based similarity between two strings on a 0-100 scale
//   - Order-insensitive token set similarity, where a title that only adds
//     words to another still scores 100
//   - Building search queries from a listing name and SKU
package textutil
