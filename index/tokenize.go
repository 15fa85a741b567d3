package index

import "strings"

// Tokenize lowercases text and splits it on whitespace.
// Build and query time must use the same tokenizer for scores to be reproducible.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
