package keyword

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	defaultMinTokenLen = 3
	defaultMaxKeywords = 10
)

// Expander turns a free-text question into a bounded keyword set for the rules backend.
type Expander struct {
	synonyms    *SynonymTable
	minTokenLen int
	maxKeywords int
	typoDist    int
}

// ExpanderOption configures an Expander.
type ExpanderOption func(*Expander)

// WithMinTokenLen sets the shortest token kept; shorter tokens are discarded.
func WithMinTokenLen(n int) ExpanderOption {
	return func(e *Expander) {
		if n > 0 {
			e.minTokenLen = n
		}
	}
}

// WithMaxKeywords caps the size of the expanded keyword set.
func WithMaxKeywords(n int) ExpanderOption {
	return func(e *Expander) {
		if n > 0 {
			e.maxKeywords = n
		}
	}
}

// WithTypoTolerance lets a token with no synonym group borrow the group of
// the closest known term within maxDist edits. Tokens shorter than
// typoMinLen runes are never corrected. Zero disables it.
func WithTypoTolerance(maxDist int) ExpanderOption {
	return func(e *Expander) {
		if maxDist >= 0 {
			e.typoDist = maxDist
		}
	}
}

// typoMinLen keeps short words like "nuit" from matching unrelated terms.
const typoMinLen = 5

// NewExpander creates an expander over synonyms. A nil table disables expansion.
func NewExpander(synonyms *SynonymTable, opts ...ExpanderOption) *Expander {
	e := &Expander{
		synonyms:    synonyms,
		minTokenLen: defaultMinTokenLen,
		maxKeywords: defaultMaxKeywords,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tokenize splits query on whitespace, trims surrounding punctuation, lower-cases,
// and drops tokens shorter than the minimum length.
func (e *Expander) Tokenize(query string) []string {
	words := strings.Fields(query)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		}))
		if utf8.RuneCountInString(w) < e.minTokenLen {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// Expand returns the deduplicated keyword set for query: each kept token plus
// every term of its synonym group. The cap is applied after deduplication.
// With typo tolerance a misspelled token keeps its own spelling and adds the
// group of the term it was matched to.
func (e *Expander) Expand(query string) []string {
	seen := make(map[string]struct{})
	keywords := make([]string, 0, e.maxKeywords)
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		keywords = append(keywords, term)
	}
	for _, tok := range e.Tokenize(query) {
		add(tok)
		for _, syn := range e.group(tok) {
			add(syn)
		}
	}
	if len(keywords) > e.maxKeywords {
		keywords = keywords[:e.maxKeywords]
	}
	return keywords
}

func (e *Expander) group(tok string) []string {
	if e.typoDist > 0 && utf8.RuneCountInString(tok) >= typoMinLen {
		return e.synonyms.Nearest(tok, e.typoDist)
	}
	return e.synonyms.Group(tok)
}
