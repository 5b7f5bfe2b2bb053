// Package moderation sanitizes user prompts and screens them for
// inappropriate language before a job is created.
package moderation

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	tagPattern        = regexp.MustCompile(`(?s)<[^>]*>`)
	scriptPattern     = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)\s*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// defaultBlocklist is extended at startup from MODERATION_BLOCKLIST.
var defaultBlocklist = []string{
	"idiot",
	"stupid",
	"suck",
	"sucks",
	"moron",
	"dumbass",
	"bastard",
	"asshole",
	"shit",
	"fuck",
	"fucking",
	"bitch",
	"crap",
}

// Filter is the default domain.ContentFilter.
type Filter struct {
	blocked map[string]struct{}
}

// NewFilter builds a filter from the default blocklist plus extra words.
func NewFilter(extra ...string) *Filter {
	f := &Filter{
		blocked: make(map[string]struct{}, len(defaultBlocklist)+len(extra)),
	}
	for _, w := range append(append([]string(nil), defaultBlocklist...), extra...) {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		f.blocked[normalize(w)] = struct{}{}
	}
	return f
}

// Sanitize strips markup and control characters and collapses whitespace.
func (f *Filter) Sanitize(text string) string {
	text = scriptPattern.ReplaceAllString(text, " ")
	text = tagPattern.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	// Unescaping may reveal markup that was entity-encoded.
	text = tagPattern.ReplaceAllString(text, " ")
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// IsClean reports whether no word of text is on the blocklist. Words are
// compared after NFKC normalization and case folding.
func (f *Filter) IsClean(text string) bool {
	for _, word := range strings.FieldsFunc(normalize(text), isSeparator) {
		if _, hit := f.blocked[word]; hit {
			return false
		}
	}
	return true
}

// normalize builds a fresh Caser per call because Casers are stateful.
func normalize(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}
