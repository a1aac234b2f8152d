// Package keyword provides the full-text page index and query keyword expansion.
package keyword

import (
	"context"
	"strconv"

	"github.com/hyperjump/nexus/internal/models"
)

// Page is one indexed page of a source document.
type Page struct {
	ID         string `json:"id"`
	DocID      string `json:"doc_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	DocType    string `json:"doc_type"`
	Link       string `json:"link"`
	PageNumber int    `json:"page"`
}

// PageID returns the index id of page n of document docID.
func PageID(docID string, n int) string {
	return docID + "#p" + strconv.Itoa(n)
}

// SearchOptions optional parameters for page search. Nil means use defaults.
type SearchOptions struct {
	// DocType restricts hits to pages of this authority class when set.
	DocType models.DocType
	// TitleBoost multiplies the score contribution of title matches. Values <= 1 disable it.
	TitleBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	Fuzziness int
}

// PageHit is a single page search hit with its stored fields.
type PageHit struct {
	Page
	Score float64
}

// PageIndex defines full-text page index operations.
type PageIndex interface {
	IndexPages(ctx context.Context, pages []Page) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*PageHit, error)
	DeleteDocument(ctx context.Context, docID string) error
	DocCount() (uint64, error)
	Close() error
}
