package backend

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/hyperjump/nexus/internal/keyword"
	"github.com/hyperjump/nexus/internal/models"
)

const (
	defaultMaxPageHits = 50
	defaultExcerptLen  = 600
	// pagesPerDocument bounds the page hits requested per wanted document.
	pagesPerDocument = 4
)

// FullText searches the page index built from uploaded PDF and office files.
// Page hits are grouped by parent document; each document carries one
// extractive answer per matching page.
type FullText struct {
	index       keyword.PageIndex
	tokenizer   *keyword.Expander
	maxPageHits int
	excerptLen  int
	titleBoost  float64
	fuzziness   int
}

// FullTextOption configures a FullText adapter.
type FullTextOption func(*FullText)

// WithMaxPageHits caps the number of page hits fetched per query.
func WithMaxPageHits(n int) FullTextOption {
	return func(f *FullText) {
		if n > 0 {
			f.maxPageHits = n
		}
	}
}

// WithExcerptLen sets the length in characters of each extractive answer.
func WithExcerptLen(n int) FullTextOption {
	return func(f *FullText) {
		if n > 0 {
			f.excerptLen = n
		}
	}
}

// WithFuzziness enables typo-tolerant matching within n edits (1 or 2). 0 disables it.
func WithFuzziness(n int) FullTextOption {
	return func(f *FullText) {
		if n >= 0 && n <= 2 {
			f.fuzziness = n
		}
	}
}

// NewFullText creates the full-text adapter over index.
func NewFullText(index keyword.PageIndex, opts ...FullTextOption) *FullText {
	f := &FullText{
		index:       index,
		tokenizer:   keyword.NewExpander(nil, keyword.WithMaxKeywords(32)),
		maxPageHits: defaultMaxPageHits,
		excerptLen:  defaultExcerptLen,
		titleBoost:  1.5,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name implements Adapter.
func (f *FullText) Name() string { return "fulltext" }

// SourceType implements Adapter.
func (f *FullText) SourceType() models.SourceType { return models.SourceTypePDF }

type docGroup struct {
	first   *keyword.PageHit
	answers []any
	snips   []any
}

// Search implements Adapter.
func (f *FullText) Search(ctx context.Context, query string, filter models.Filter, limit int) ([]models.RawResult, error) {
	size := min(limit*pagesPerDocument, f.maxPageHits)
	if size < limit {
		size = limit
	}
	hits, err := f.index.Search(ctx, query, size, &keyword.SearchOptions{
		DocType:      filter.DocType,
		TitleBoost:   f.titleBoost,
		FuzzyEnabled: f.fuzziness > 0,
		Fuzziness:    f.fuzziness,
	})
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	terms := f.tokenizer.Tokenize(query)
	maxScore := hits[0].Score
	for _, h := range hits {
		maxScore = max(maxScore, h.Score)
	}

	var order []string
	groups := make(map[string]*docGroup)
	for _, h := range hits {
		g, ok := groups[h.DocID]
		if !ok {
			g = &docGroup{first: h}
			groups[h.DocID] = g
			order = append(order, h.DocID)
		}
		text := excerpt(h.Content, terms, f.excerptLen)
		if text == "" {
			continue
		}
		g.answers = append(g.answers, map[string]any{"pageNumber": h.PageNumber, "content": text})
		g.snips = append(g.snips, map[string]any{"snippet": text})
	}

	raws := make([]models.RawResult, 0, min(len(order), limit))
	for _, docID := range order {
		g := groups[docID]
		score := 0.0
		if maxScore > 0 {
			score = g.first.Score / maxScore
		}
		raws = append(raws, models.RawResult{
			ID:         docID,
			Name:       g.first.Link,
			Score:      models.Score(score),
			SourceType: models.SourceTypePDF,
			Derived: map[string]any{
				"title":              g.first.Title,
				"link":               g.first.Link,
				"doc_type":           g.first.DocType,
				"extractive_answers": g.answers,
				"snippets":           g.snips,
			},
		})
	}
	return capResults(raws, limit), nil
}

// excerpt returns about n characters of content around the first occurrence
// of any term. Content shorter than n is returned whole.
func excerpt(content string, terms []string, n int) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= n {
		return string(runes)
	}
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}

	start := 0
	for _, t := range terms {
		if i := runeIndex(lower, []rune(t)); i >= 0 {
			start = max(0, i-n/4)
			break
		}
	}
	end := min(len(runes), start+n)
	start = max(0, end-n)

	out := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}

func runeIndex(s, sub []rune) int {
	if len(sub) == 0 {
		return -1
	}
outer:
	for i := 0; i+len(sub) <= len(s); i++ {
		for j := range sub {
			if s[i+j] != sub[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
