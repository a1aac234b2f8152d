package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlainPages returns content split on form feeds, replacing invalid
// UTF-8 sequences with the replacement character.
func extractPlainPages(content []byte) ([]Page, error) {
	s := string(content)
	if !utf8.Valid(content) {
		s = strings.ToValidUTF8(s, "\ufffd")
	}
	parts := strings.Split(s, "\f")
	pages := make([]Page, len(parts))
	for i, p := range parts {
		pages[i] = Page{Number: i + 1, Text: p}
	}
	return pages, nil
}
