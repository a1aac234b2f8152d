package models

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultLimit is the per-backend result count when a query does not set one.
	DefaultLimit = 5
	// MaxLimit caps the per-backend result count.
	MaxLimit = 20
)

var (
	// ErrEmptyQuery is returned when a query has no searchable text.
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrUnknownDocType is returned for a doc type filter that names no
	// hierarchy level. Dropping it would silently widen the search.
	ErrUnknownDocType = errors.New("unknown doc_type")
)

// RetrievalQuery is one logical question dispatched to every backend.
type RetrievalQuery struct {
	Query   string  `json:"query"`
	DocType DocType `json:"doc_type,omitempty"`
	Limit   int     `json:"limit,omitempty"`
}

// Validate ensures the query has text, clamps Limit into [1, MaxLimit] and
// canonicalizes DocType.
func (q *RetrievalQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return ErrEmptyQuery
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.DocType != DocTypeUnset {
		dt := ParseDocType(string(q.DocType))
		if dt == DocTypeUnset {
			return fmt.Errorf("%w: %q", ErrUnknownDocType, q.DocType)
		}
		q.DocType = dt
	}
	return nil
}

// Filter returns the backend filter for the query.
func (q *RetrievalQuery) Filter() Filter {
	return Filter{DocType: q.DocType}
}
