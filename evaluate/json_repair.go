package evaluate

import (
	"regexp"
	"strings"
)

var (
	// `, score":` -> `, "score":`
	missingOpenQuote = regexp.MustCompile(`([{,]\s*)([A-Za-z][A-Za-z_ ]*)":`)
	// `{score: 7}` -> `{"score": 7}`
	bareKey = regexp.MustCompile(`([{,]\s*)([A-Za-z][A-Za-z_]*)\s*:`)
	// `[1, 2,]` -> `[1, 2]`
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// repairJSON fixes the key quoting and trailing comma mistakes models commonly make.
func repairJSON(s string) string {
	s = missingOpenQuote.ReplaceAllStringFunc(s, func(m string) string {
		sub := missingOpenQuote.FindStringSubmatch(m)
		return sub[1] + `"` + strings.TrimSpace(sub[2]) + `":`
	})
	s = bareKey.ReplaceAllString(s, `$1"$2":`)
	return trailingComma.ReplaceAllString(s, "$1")
}

// stripFences removes a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
