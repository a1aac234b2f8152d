package indexer

import (
	"strings"
	"testing"

	"github.com/hyperjump/nexus/internal/keyword"
)

func TestChunker_Chunk(t *testing.T) {
	c := NewChunker(3, 1)
	page := keyword.Page{DocID: "doc1", PageNumber: 2, Title: "t", Content: "one two three four five six"}
	chunks := c.Chunk(page)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if chunks[0].ID != "doc1#p2" {
		t.Errorf("first chunk id = %q", chunks[0].ID)
	}
	if chunks[1].ID != "doc1#p2.1" {
		t.Errorf("second chunk id = %q", chunks[1].ID)
	}
	if chunks[0].Content != "one two three" {
		t.Errorf("first chunk content = %q", chunks[0].Content)
	}
	if !strings.HasPrefix(chunks[1].Content, "three") {
		t.Errorf("chunks must overlap, second = %q", chunks[1].Content)
	}
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(last.Content, "six") {
		t.Errorf("last chunk = %q", last.Content)
	}
	for _, ch := range chunks {
		if ch.PageNumber != 2 || ch.DocID != "doc1" || ch.Title != "t" {
			t.Errorf("chunk lost page fields: %+v", ch)
		}
	}
}

func TestChunker_ShortPageUnchanged(t *testing.T) {
	c := NewChunker(10, 2)
	chunks := c.Chunk(keyword.Page{DocID: "d", PageNumber: 1, Content: "a b c"})
	if len(chunks) != 1 || chunks[0].Content != "a b c" || chunks[0].ID != "d#p1" {
		t.Errorf("got %+v", chunks)
	}
}

func TestChunker_Disabled(t *testing.T) {
	words := strings.Repeat("w ", 1000)
	chunks := NewChunker(0, 0).Chunk(keyword.Page{DocID: "d", PageNumber: 1, Content: words})
	if len(chunks) != 1 {
		t.Errorf("got %d chunks, want 1", len(chunks))
	}
}

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "  Article\t12 \n\n  alinéa 2  ", "Article 12 alinéa 2"},
		{"rejoins line-end hyphenation", "le licencie-\nment du travailleur", "le licenciement du travailleur"},
		{"keeps capitalized compounds", "Région de Bruxelles-\nCapitale", "Région de Bruxelles- Capitale"},
		{"drops soft hyphens", "pré\u00adavis", "préavis"},
		{"no-break spaces", "20\u00a0jours", "20 jours"},
		{"control characters", "art.\x0012\x07", "art.12"},
		{"empty", " \n\t ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preprocess(tt.in); got != tt.want {
				t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
