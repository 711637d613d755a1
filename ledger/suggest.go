/*
suggest.go - Optional tag-name suggestion from free text

The engine never parses free text to infer a funding source; it only
accepts explicit tags. This helper produces a candidate tag string from
a description for callers that want a prefill, and that is all it does.
*/
package ledger

import (
	"strings"
	"unicode"
)

const maxSuggestedTagLen = 40

// SuggestTag derives a candidate funding-source name from free-form
// description text: keep the leading letters/spaces, collapse
// whitespace, title-case words, cap the length. Returns "" when nothing
// usable remains; callers fall back to asking the user.
func SuggestTag(description string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(description) {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
			continue
		}
		break
	}

	words := strings.Fields(b.String())
	if len(words) == 0 {
		return ""
	}
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}

	tag := strings.Join(words, " ")
	if len(tag) > maxSuggestedTagLen {
		tag = strings.TrimSpace(tag[:maxSuggestedTagLen])
	}
	return tag
}
