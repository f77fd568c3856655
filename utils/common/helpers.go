package common

import "strings"

// Snippet keeps at most limit runes of s and flattens line breaks so the
// result fits on one log line.
func Snippet(s string, limit int) string {
	r := []rune(s)
	if limit >= 0 && len(r) > limit {
		r = r[:limit]
	}
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(string(r))
}
