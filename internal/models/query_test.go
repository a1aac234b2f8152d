package models

import (
	"errors"
	"strings"
	"testing"
)

func TestRetrievalQuery_Validate(t *testing.T) {
	tests := []struct {
		name      string
		query     *RetrievalQuery
		wantErr   bool
		wantLimit int
	}{
		{"empty query", &RetrievalQuery{Query: ""}, true, 0},
		{"whitespace query", &RetrievalQuery{Query: "   "}, true, 0},
		{"sets default limit", &RetrievalQuery{Query: "x"}, false, DefaultLimit},
		{"caps limit", &RetrievalQuery{Query: "x", Limit: 200}, false, MaxLimit},
		{"keeps limit", &RetrievalQuery{Query: "x", Limit: 3}, false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.query.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", tt.query.Limit, tt.wantLimit)
			}
		})
	}
}

func TestRetrievalQuery_ValidateNormalizesDocType(t *testing.T) {
	q := &RetrievalQuery{Query: "congé", DocType: "cct"}
	if err := q.Validate(); err != nil {
		t.Fatal(err)
	}
	if q.DocType != DocTypeCollectiveAgreement {
		t.Errorf("DocType = %q, want %q", q.DocType, DocTypeCollectiveAgreement)
	}
}

func TestRetrievalQuery_ValidateRejectsUnknownDocType(t *testing.T) {
	q := &RetrievalQuery{Query: "congé", DocType: "circulaire"}
	err := q.Validate()
	if !errors.Is(err, ErrUnknownDocType) {
		t.Fatalf("Validate() error = %v, want ErrUnknownDocType", err)
	}
}

func TestParseDocType(t *testing.T) {
	cases := map[string]DocType{
		"Loi":                  DocTypeLaw,
		"LAW":                  DocTypeLaw,
		"CCT":                  DocTypeCollectiveAgreement,
		"COLLECTIVE_AGREEMENT": DocTypeCollectiveAgreement,
		"Protocole":            DocTypeLocalProtocol,
		"local_protocol":       DocTypeLocalProtocol,
		"":                     DocTypeUnset,
		"circulaire":           DocTypeUnset,
	}
	for in, want := range cases {
		if got := ParseDocType(in); got != want {
			t.Errorf("ParseDocType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewDocument_BoundsContentAndSnippet(t *testing.T) {
	long := strings.Repeat("é", MaxContentLen+50)
	doc := NewDocument(DocumentInput{Title: "t", Content: long, RelevanceScore: 1.7})
	if n := len([]rune(doc.Content)); n != MaxContentLen {
		t.Errorf("content runes = %d, want %d", n, MaxContentLen)
	}
	if doc.Snippet != string([]rune(doc.Content)[:SnippetLen]) {
		t.Error("snippet must be the first SnippetLen characters of content")
	}
	if doc.RelevanceScore != 1 {
		t.Errorf("score = %v, want clamped to 1", doc.RelevanceScore)
	}
}

func TestNewDocument_ShortContent(t *testing.T) {
	doc := NewDocument(DocumentInput{Title: "t", Content: "30 days", RelevanceScore: -1})
	if doc.Snippet != "30 days" || doc.Content != "30 days" {
		t.Errorf("unexpected content/snippet: %q / %q", doc.Content, doc.Snippet)
	}
	if doc.RelevanceScore != 0 {
		t.Errorf("score = %v, want 0", doc.RelevanceScore)
	}
}

func TestRetrieval_Citations(t *testing.T) {
	r := &Retrieval{Documents: []*Document{
		NewDocument(DocumentInput{Title: "Loi 1971", SourceURI: "gs://b/loi.pdf", SourceType: SourceTypePDF, DocType: DocTypeLaw, RelevanceScore: 0.4}),
	}}
	c := r.Citations()
	if len(c) != 1 || c[0].Title != "Loi 1971" || c[0].SourceType != SourceTypePDF || c[0].RelevanceScore != 0.4 {
		t.Errorf("unexpected citations: %+v", c)
	}
}
