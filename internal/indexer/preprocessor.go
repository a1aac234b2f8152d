package indexer

import (
	"regexp"
	"strings"
	"unicode"
)

// lineHyphen matches a word split across a line break by PDF layout,
// e.g. "licencie-\nment". Only a lowercase continuation is joined so that
// compounds such as "Bruxelles-\nCapitale" keep their hyphen.
var lineHyphen = regexp.MustCompile(`(\p{L})-[ \t]*\r?\n[ \t]*(\p{Ll})`)

// invisible drops soft hyphens and zero-width characters left by extraction.
var invisible = strings.NewReplacer("\u00ad", "", "\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")

// Preprocess normalizes extracted page text for indexing: rejoins words
// hyphenated at line ends, removes invisible and control characters, then
// collapses whitespace (including no-break spaces) to single spaces.
func Preprocess(text string) string {
	text = invisible.Replace(text)
	text = lineHyphen.ReplaceAllString(text, "$1$2")

	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsControl(r):
		default:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
