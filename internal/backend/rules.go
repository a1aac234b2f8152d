package backend

import (
	"context"
	"fmt"

	"github.com/hyperjump/nexus/internal/keyword"
	"github.com/hyperjump/nexus/internal/models"
	"github.com/hyperjump/nexus/internal/storage"
)

// Rules searches the structured rules table with the expanded keyword set of the query.
type Rules struct {
	store    storage.RuleStore
	expander *keyword.Expander
	fields   []string
}

// NewRules creates the rules adapter. fields are the rule columns matched
// against each keyword; they must be searchable columns of the store.
func NewRules(store storage.RuleStore, expander *keyword.Expander, fields []string) (*Rules, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("rules backend: no search fields configured")
	}
	for _, f := range fields {
		if !storage.IsSearchable(f) {
			return nil, fmt.Errorf("rules backend: %w: %q", storage.ErrFieldNotAllowed, f)
		}
	}
	return &Rules{store: store, expander: expander, fields: fields}, nil
}

// Name implements Adapter.
func (r *Rules) Name() string { return "rules" }

// SourceType implements Adapter.
func (r *Rules) SourceType() models.SourceType { return models.SourceTypeStructured }

// Search implements Adapter. A query with no usable keyword returns the most
// recently updated rules.
func (r *Rules) Search(ctx context.Context, query string, filter models.Filter, limit int) ([]models.RawResult, error) {
	var (
		rows []*models.Rule
		err  error
	)
	if keywords := r.expander.Expand(query); len(keywords) > 0 {
		rows, err = r.store.Search(ctx, keywords, r.fields, filter.DocType, limit)
	} else {
		rows, err = r.store.Recent(ctx, filter.DocType, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("rules search: %w", err)
	}

	raws := make([]models.RawResult, 0, len(rows))
	for _, row := range rows {
		raws = append(raws, models.RawResult{
			ID:         row.ID,
			Name:       "rules/" + row.ID,
			SourceType: models.SourceTypeStructured,
			Struct: map[string]any{
				"title":      row.Title,
				"category":   row.Category,
				"content":    row.Content,
				"doc_type":   row.DocType,
				"source_uri": row.SourceURI,
			},
		})
	}
	return capResults(raws, limit), nil
}
