package ranking

import (
	"math/rand"
	"testing"

	"github.com/hyperjump/nexus/internal/models"
)

func doc(title string, dt models.DocType, score float64) *models.Document {
	return models.NewDocument(models.DocumentInput{Title: title, DocType: dt, RelevanceScore: score})
}

func titles(docs []*models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Title
	}
	return out
}

func TestRanker_HierarchyDominatesRelevance(t *testing.T) {
	docs := []*models.Document{
		doc("protocol", models.DocTypeLocalProtocol, 0.9),
		doc("law", models.DocTypeLaw, 0.4),
		doc("cct", models.DocTypeCollectiveAgreement, 0.6),
	}
	got := titles(NewRanker(nil).Rank(docs))
	want := []string{"law", "cct", "protocol"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Rank = %v, want %v", got, want)
		}
	}
}

func TestRanker_RelevanceBreaksTiesAndUnsetRanksLast(t *testing.T) {
	docs := []*models.Document{
		doc("web", models.DocTypeUnset, 1.0),
		doc("law-low", models.DocTypeLaw, 0.2),
		doc("law-high", models.DocTypeLaw, 0.8),
	}
	got := titles(NewRanker(nil).Rank(docs))
	want := []string{"law-high", "law-low", "web"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Rank = %v, want %v", got, want)
		}
	}
}

func TestRanker_StableForEqualKeys(t *testing.T) {
	docs := []*models.Document{
		doc("a", models.DocTypeLaw, 0.5),
		doc("b", models.DocTypeLaw, 0.5),
		doc("c", models.DocTypeLaw, 0.5),
	}
	got := titles(NewRanker(nil).Rank(docs))
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("equal keys reordered: %v", got)
	}
}

func TestRanker_DoesNotModifyInput(t *testing.T) {
	docs := []*models.Document{
		doc("p", models.DocTypeLocalProtocol, 0.9),
		doc("l", models.DocTypeLaw, 0.1),
	}
	_ = NewRanker(nil).Rank(docs)
	if docs[0].Title != "p" {
		t.Error("input slice was reordered")
	}
}

func TestRanker_MonotoneOnRandomInput(t *testing.T) {
	r := NewRanker(nil)
	types := []models.DocType{models.DocTypeUnset, models.DocTypeLaw, models.DocTypeCollectiveAgreement, models.DocTypeLocalProtocol}
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		docs := make([]*models.Document, rng.Intn(20))
		for i := range docs {
			docs[i] = doc("d", types[rng.Intn(len(types))], float64(rng.Intn(5))/4)
		}
		ranked := r.Rank(docs)
		if len(ranked) != len(docs) {
			t.Fatalf("round %d: length changed", round)
		}
		if !r.IsRanked(ranked) {
			t.Fatalf("round %d: output not ranked", round)
		}
	}
}

func TestRanker_CustomHierarchy(t *testing.T) {
	h, err := ParseHierarchy(map[string]int{"Protocole": 5})
	if err != nil {
		t.Fatal(err)
	}
	docs := []*models.Document{
		doc("law", models.DocTypeLaw, 1),
		doc("protocol", models.DocTypeLocalProtocol, 0),
	}
	if got := titles(NewRanker(h).Rank(docs)); got[0] != "protocol" {
		t.Errorf("custom priority ignored: %v", got)
	}
	if _, err := ParseHierarchy(map[string]int{"Circulaire": 1}); err == nil {
		t.Error("expected error for unknown label")
	}
}

func TestHierarchy_Priority(t *testing.T) {
	h := DefaultHierarchy()
	if h.Priority(models.DocTypeLaw) != 3 || h.Priority(models.DocTypeCollectiveAgreement) != 2 ||
		h.Priority(models.DocTypeLocalProtocol) != 1 || h.Priority(models.DocTypeUnset) != 0 {
		t.Errorf("unexpected default priorities: %v", h)
	}
}

func TestIsRanked(t *testing.T) {
	r := NewRanker(nil)
	if r.IsRanked([]*models.Document{doc("a", models.DocTypeUnset, 1), doc("b", models.DocTypeLaw, 0)}) {
		t.Error("unset before law must not be ranked")
	}
	if !r.IsRanked(nil) {
		t.Error("empty slice is ranked")
	}
}
