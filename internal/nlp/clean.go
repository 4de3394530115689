// Package nlp provides the text processing stages of the news pipeline: cleaning,
// symbol resolution, event tagging and sentiment scoring.
package nlp

import (
	"html"
	"regexp"
	"strings"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	urlRe        = regexp.MustCompile(`https?://\S+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanText returns s as plain text: entities decoded, tags and URLs removed,
// non-breaking spaces normalized and whitespace collapsed.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(s)
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = urlRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanPtr is CleanText for optional fields; nil yields "".
func CleanPtr(s *string) string {
	if s == nil {
		return ""
	}
	return CleanText(*s)
}
