// Package models defines core data structures for retrieved documents, queries, and dispatch results.
package models

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxContentLen is the maximum number of characters kept in Document.Content.
	MaxContentLen = 2000
	// SnippetLen is the number of leading content characters copied into Document.Snippet.
	SnippetLen = 300
)

// SourceType tags the backend family a document came from.
type SourceType string

const (
	SourceTypePDF        SourceType = "PDF"
	SourceTypeWeb        SourceType = "WEB"
	SourceTypeStructured SourceType = "STRUCTURED"
)

// SourceTypes lists every source type in default section order.
var SourceTypes = []SourceType{SourceTypePDF, SourceTypeStructured, SourceTypeWeb}

// Valid reports whether s is one of the known source types.
func (s SourceType) Valid() bool {
	switch s {
	case SourceTypePDF, SourceTypeWeb, SourceTypeStructured:
		return true
	}
	return false
}

// DocType is the authority classification of a legal document.
// The zero value means the backend did not supply one.
type DocType string

const (
	DocTypeUnset               DocType = ""
	DocTypeLaw                 DocType = "LAW"
	DocTypeCollectiveAgreement DocType = "COLLECTIVE_AGREEMENT"
	DocTypeLocalProtocol       DocType = "LOCAL_PROTOCOL"
)

// ParseDocType maps canonical names and the labels used by the backends
// ("Loi", "CCT", "Protocole") to a DocType. Unknown labels map to DocTypeUnset.
func ParseDocType(s string) DocType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "law", "loi", "wet":
		return DocTypeLaw
	case "collective_agreement", "collective agreement", "cct", "cao":
		return DocTypeCollectiveAgreement
	case "local_protocol", "local protocol", "protocol", "protocole":
		return DocTypeLocalProtocol
	default:
		return DocTypeUnset
	}
}

// Label returns the label backends use when filtering on doc type.
func (d DocType) Label() string {
	switch d {
	case DocTypeLaw:
		return "Loi"
	case DocTypeCollectiveAgreement:
		return "CCT"
	case DocTypeLocalProtocol:
		return "Protocole"
	default:
		return ""
	}
}

// Filter narrows a backend search. The zero value means unfiltered.
type Filter struct {
	DocType DocType `json:"doc_type,omitempty"`
}

// Document is the canonical record every backend result is normalized into.
// Documents are built once by NewDocument and never modified afterwards.
type Document struct {
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Snippet        string     `json:"snippet"`
	SourceURI      string     `json:"source_uri"`
	DocID          string     `json:"doc_id"`
	SourceType     SourceType `json:"source_type"`
	DocType        DocType    `json:"doc_type,omitempty"`
	RelevanceScore float64    `json:"relevance_score"`
}

// DocumentInput carries the resolved fields used to build a Document.
type DocumentInput struct {
	Title          string
	Content        string
	SourceURI      string
	DocID          string
	SourceType     SourceType
	DocType        DocType
	RelevanceScore float64
}

// NewDocument builds a Document, bounding content to MaxContentLen characters
// and deriving the snippet from the bounded content.
func NewDocument(in DocumentInput) *Document {
	content := TruncateRunes(in.Content, MaxContentLen)
	score := in.RelevanceScore
	if score < 0 || score != score {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return &Document{
		Title:          in.Title,
		Content:        content,
		Snippet:        TruncateRunes(content, SnippetLen),
		SourceURI:      in.SourceURI,
		DocID:          in.DocID,
		SourceType:     in.SourceType,
		DocType:        in.DocType,
		RelevanceScore: score,
	}
}

// TruncateRunes returns the first n characters of s without splitting a UTF-8 sequence.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
