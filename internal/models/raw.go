package models

// RawResult is one backend hit in its native shape. Only the normalizer reads it.
//
// Struct holds fields the backend stores verbatim for the record (title, uri,
// content, doc_type, ...). Derived holds fields the backend computed at query
// time (link, extractive_answers, snippets, ...).
type RawResult struct {
	ID         string
	Name       string
	URI        string
	Score      *float64
	SourceType SourceType
	Struct     map[string]any
	Derived    map[string]any
}

// Score returns a pointer to s, for building RawResults.
func Score(s float64) *float64 {
	return &s
}
