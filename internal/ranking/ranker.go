package ranking

import (
	"sort"

	"github.com/hyperjump/nexus/internal/models"
)

// Ranker orders documents by hierarchy priority descending, then relevance
// score descending. Equal keys keep their input order.
type Ranker struct {
	hierarchy Hierarchy
}

// NewRanker creates a Ranker. A nil hierarchy uses DefaultHierarchy.
func NewRanker(h Hierarchy) *Ranker {
	if h == nil {
		h = DefaultHierarchy()
	}
	return &Ranker{hierarchy: h}
}

// Hierarchy returns the priority table in use.
func (r *Ranker) Hierarchy() Hierarchy {
	return r.hierarchy
}

// Rank returns a new slice with docs in ranked order; docs is not modified.
func (r *Ranker) Rank(docs []*models.Document) []*models.Document {
	out := make([]*models.Document, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := r.hierarchy.Priority(out[i].DocType), r.hierarchy.Priority(out[j].DocType)
		if pi != pj {
			return pi > pj
		}
		return out[i].RelevanceScore > out[j].RelevanceScore
	})
	return out
}

// IsRanked reports whether docs are non-increasing in (priority, relevance).
func (r *Ranker) IsRanked(docs []*models.Document) bool {
	for i := 1; i < len(docs); i++ {
		pPrev, pCur := r.hierarchy.Priority(docs[i-1].DocType), r.hierarchy.Priority(docs[i].DocType)
		if pPrev < pCur {
			return false
		}
		if pPrev == pCur && docs[i-1].RelevanceScore < docs[i].RelevanceScore {
			return false
		}
	}
	return true
}
