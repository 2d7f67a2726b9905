package sam

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// CleanText strips markup the feed occasionally embeds in titles, flattens
// the remainder to plain text and collapses whitespace.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	s = sanitizeUTF8(s)
	if strings.ContainsAny(s, "<&") {
		s = stripPolicy.Sanitize(s)
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
