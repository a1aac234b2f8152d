package models

// DispatchState is the lifecycle state of one retrieval.
type DispatchState string

const (
	StateIdle        DispatchState = "idle"
	StateDispatching DispatchState = "dispatching"
	StateNormalizing DispatchState = "normalizing"
	StateRanking     DispatchState = "ranking"
	StateAssembling  DispatchState = "assembling"
	StateDone        DispatchState = "done"
	StateFailed      DispatchState = "failed"
)

// BranchState is the outcome of one backend call within a dispatch.
type BranchState string

const (
	BranchSucceeded BranchState = "succeeded"
	BranchSkipped   BranchState = "skipped"
)

// BranchReport describes what one backend contributed to a dispatch.
type BranchReport struct {
	Backend    string      `json:"backend"`
	SourceType SourceType  `json:"source_type"`
	State      BranchState `json:"state"`
	Count      int         `json:"count"`
	Error      string      `json:"error,omitempty"`
	ElapsedMs  int64       `json:"elapsed_ms"`
}

// Retrieval is the result of dispatching one query: the bounded context handed
// to generation and the ranked documents it was built from.
type Retrieval struct {
	Query     string         `json:"query"`
	State     DispatchState  `json:"state"`
	Context   string         `json:"context"`
	Documents []*Document    `json:"documents"`
	Omitted   int            `json:"omitted"`
	Branches  []BranchReport `json:"branches"`
	QueryTime int64          `json:"query_time_ms"`
}

// Citation is the subset of a Document a UI needs to render a source list.
type Citation struct {
	Title          string     `json:"title"`
	SourceURI      string     `json:"source_uri"`
	SourceType     SourceType `json:"source_type"`
	DocType        DocType    `json:"doc_type,omitempty"`
	RelevanceScore float64    `json:"relevance_score"`
	Snippet        string     `json:"snippet,omitempty"`
}

// Citations returns one citation per document, in ranked order.
func (r *Retrieval) Citations() []Citation {
	out := make([]Citation, 0, len(r.Documents))
	for _, d := range r.Documents {
		out = append(out, Citation{
			Title:          d.Title,
			SourceURI:      d.SourceURI,
			SourceType:     d.SourceType,
			DocType:        d.DocType,
			RelevanceScore: d.RelevanceScore,
			Snippet:        d.Snippet,
		})
	}
	return out
}

// Rule is one row of the structured rules table.
type Rule struct {
	ID        string `json:"id" db:"id"`
	Title     string `json:"title" db:"title"`
	Category  string `json:"category,omitempty" db:"category"`
	Keywords  string `json:"keywords,omitempty" db:"keywords"`
	Content   string `json:"content" db:"content"`
	DocType   string `json:"doc_type,omitempty" db:"doc_type"`
	SourceURI string `json:"source_uri,omitempty" db:"source_uri"`
	UpdatedAt int64  `json:"updated_at,omitempty" db:"updated_at"`
}
