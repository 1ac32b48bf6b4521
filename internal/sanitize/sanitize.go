// Package sanitize cleans user-submitted text before it is shown in the
// dashboard. Contact form messages come from anonymous visitors, so every
// tag is stripped with a strict bluemonday policy and only text survives.
package sanitize

import (
	"html"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the shared strict policy, built once on first use.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text strips all markup from input and returns plain text. bluemonday
// escapes the text it keeps, so entities are decoded again here; the
// templates escape on output.
func Text(input string) string {
	if input == "" {
		return ""
	}
	if !utf8.ValidString(input) {
		input = strings.ToValidUTF8(input, "�")
	}
	return strings.TrimSpace(html.UnescapeString(getPolicy().Sanitize(input)))
}

// Preview returns Text(input) shortened to at most max runes, with an
// ellipsis when cut.
func Preview(input string, max int) string {
	s := Text(input)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max])) + "..."
}
