// Package backend provides the search backend adapters queried by the dispatcher.
// Each adapter translates a query into one backend's native request and returns
// raw, unnormalized results tagged with the adapter's source type.
package backend

import (
	"context"

	"github.com/hyperjump/nexus/internal/models"
)

// Adapter is one search backend.
//
// Search returns at most limit results in backend order. On any failure it
// returns a nil slice and a non-nil error; it must not panic.
type Adapter interface {
	Name() string
	SourceType() models.SourceType
	Search(ctx context.Context, query string, filter models.Filter, limit int) ([]models.RawResult, error)
}

func capResults(raws []models.RawResult, limit int) []models.RawResult {
	if limit > 0 && len(raws) > limit {
		return raws[:limit]
	}
	return raws
}
