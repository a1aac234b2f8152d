package normalize

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/nexus/internal/models"
)

func TestNormalizeOne_TitleFallsBackToDerivedTitle(t *testing.T) {
	raw := models.RawResult{
		SourceType: models.SourceTypePDF,
		Struct:     map[string]any{"title": ""},
		Derived:    map[string]any{"title": "Circular 12", "link": "gs://bucket/circ12.pdf"},
	}
	doc, err := New().NormalizeOne(raw)
	require.NoError(t, err)
	assert.Equal(t, "Circular 12", doc.Title)
	assert.Equal(t, "gs://bucket/circ12.pdf", doc.SourceURI)
}

func TestNormalizeOne_ExtractiveAnswerContent(t *testing.T) {
	raw := models.RawResult{
		SourceType: models.SourceTypePDF,
		Derived: map[string]any{
			"extractive_answers": []any{
				map[string]any{"pageNumber": 3, "content": "30 days of leave"},
			},
		},
	}
	doc, err := New().NormalizeOne(raw)
	require.NoError(t, err)
	assert.Equal(t, "[Page 3] 30 days of leave", doc.Content)
	assert.Equal(t, "[Page 3] 30 days of leave", doc.Snippet)
}

func TestNormalizeOne_MultipleAnswersAndJSONPageNumbers(t *testing.T) {
	raw := models.RawResult{
		Derived: map[string]any{
			"extractive_answers": []any{
				map[string]any{"pageNumber": float64(1), "content": "a"},
				map[string]any{"pageNumber": "7", "content": "b"},
				map[string]any{"content": "c"},
				map[string]any{"pageNumber": 2, "content": "  "},
			},
		},
	}
	doc, err := New().NormalizeOne(raw)
	require.NoError(t, err)
	assert.Equal(t, "[Page 1] a\n\n[Page 7] b\n\nc", doc.Content)
}

func TestResolve_ContentCascade(t *testing.T) {
	tests := []struct {
		name string
		raw  models.RawResult
		want string
	}{
		{
			name: "snippets when no answers",
			raw: models.RawResult{Derived: map[string]any{
				"extractive_answers": []any{},
				"snippets":           []any{map[string]any{"snippet": "one"}, map[string]any{"snippet": "two"}},
			}},
			want: "one\n\ntwo",
		},
		{
			name: "derived content",
			raw:  models.RawResult{Derived: map[string]any{"content": "derived"}, Struct: map[string]any{"content": "struct"}},
			want: "derived",
		},
		{
			name: "struct content",
			raw:  models.RawResult{Struct: map[string]any{"content": "struct", "text": "text"}},
			want: "struct",
		},
		{
			name: "struct text",
			raw:  models.RawResult{Struct: map[string]any{"text": "text", "body": "body"}},
			want: "text",
		},
		{
			name: "struct body",
			raw:  models.RawResult{Struct: map[string]any{"body": "body"}},
			want: "body",
		},
		{
			name: "nothing",
			raw:  models.RawResult{},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(ContentExtractors, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_TitleCascade(t *testing.T) {
	tests := []struct {
		name string
		raw  models.RawResult
		want string
	}{
		{"struct title", models.RawResult{Struct: map[string]any{"title": "T", "name": "N"}}, "T"},
		{"struct name", models.RawResult{Struct: map[string]any{"name": "N"}, Derived: map[string]any{"title": "D"}}, "N"},
		{"derived name", models.RawResult{Derived: map[string]any{"name": "DN", "link": "x/y.pdf"}}, "DN"},
		{"link basename", models.RawResult{Derived: map[string]any{"link": "gs://bucket/docs/cct-46.pdf"}}, "cct-46.pdf"},
		{"resource name basename", models.RawResult{Name: "projects/p/branches/0/documents/abc"}, "abc"},
		{"id", models.RawResult{ID: "doc-9"}, "doc-9"},
		{"nothing", models.RawResult{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(TitleExtractors, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_URICascade(t *testing.T) {
	raw := models.RawResult{
		Name:    "rules/r1",
		URI:     "https://a",
		Derived: map[string]any{"link": "gs://b"},
	}
	got, err := Resolve(URIExtractors, raw)
	require.NoError(t, err)
	assert.Equal(t, "https://a", got)

	raw.Struct = map[string]any{"source_uri": "cct-46"}
	got, _ = Resolve(URIExtractors, raw)
	assert.Equal(t, "cct-46", got)

	got, _ = Resolve(URIExtractors, models.RawResult{Name: "rules/r1"})
	assert.Equal(t, "rules/r1", got)
}

func TestNormalizeOne_UntitledIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := New(WithLogger(zap.New(core)))

	doc, err := n.NormalizeOne(models.RawResult{Struct: map[string]any{"content": "x"}})
	require.NoError(t, err)
	assert.Equal(t, UntitledTitle, doc.Title)
	assert.Equal(t, 1, logs.FilterMessage("no title for result").Len())
}

func TestNormalizeOne_DocTypeAndScore(t *testing.T) {
	tests := []struct {
		name      string
		raw       models.RawResult
		wantType  models.DocType
		wantScore float64
	}{
		{"native label", models.RawResult{Struct: map[string]any{"doc_type": "CCT"}, Score: models.Score(0.7)}, models.DocTypeCollectiveAgreement, 0.7},
		{"derived label", models.RawResult{Derived: map[string]any{"doc_type": "LAW"}}, models.DocTypeLaw, 0},
		{"unknown label", models.RawResult{Struct: map[string]any{"doc_type": "Circulaire"}, Score: models.Score(3)}, models.DocTypeUnset, 1},
		{"negative score", models.RawResult{Score: models.Score(-0.5)}, models.DocTypeUnset, 0},
		{"NaN score", models.RawResult{Score: models.Score(math.NaN())}, models.DocTypeUnset, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := New().NormalizeOne(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, doc.DocType)
			assert.Equal(t, tt.wantScore, doc.RelevanceScore)
		})
	}
}

func TestNormalizeOne_ContentBounded(t *testing.T) {
	long := strings.Repeat("é", models.MaxContentLen*2)
	doc, err := New().NormalizeOne(models.RawResult{Struct: map[string]any{"content": long}})
	require.NoError(t, err)
	assert.Equal(t, models.MaxContentLen, len([]rune(doc.Content)))
	assert.Equal(t, models.SnippetLen, len([]rune(doc.Snippet)))
}

func TestNormalizeOne_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  models.RawResult
	}{
		{"answers not a list", models.RawResult{Derived: map[string]any{"extractive_answers": "oops"}}},
		{"answer not an object", models.RawResult{Derived: map[string]any{"extractive_answers": []any{"oops"}}}},
		{"answer content not a string", models.RawResult{Derived: map[string]any{"extractive_answers": []any{map[string]any{"content": 5}}}}},
		{"page number not a number", models.RawResult{Derived: map[string]any{"extractive_answers": []any{map[string]any{"content": "x", "pageNumber": true}}}}},
		{"title not a string", models.RawResult{Struct: map[string]any{"title": 42}}},
		{"doc type not a string", models.RawResult{Struct: map[string]any{"doc_type": []string{"LAW"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().NormalizeOne(tt.raw)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestNormalize_OmitsOnlyMalformedRecord(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := New(WithLogger(zap.New(core)))

	raws := []models.RawResult{
		{ID: "a", Struct: map[string]any{"title": "A"}},
		{ID: "bad", Struct: map[string]any{"title": 1}},
		{ID: "c", Struct: map[string]any{"title": "C"}},
	}
	docs := n.Normalize(raws)
	require.Len(t, docs, 2)
	assert.Equal(t, "A", docs[0].Title)
	assert.Equal(t, "C", docs[1].Title)

	omitted := logs.FilterMessage("omitting malformed result").All()
	require.Len(t, omitted, 1)
	assert.Equal(t, "bad", omitted[0].ContextMap()["id"])
}

func TestNormalize_Empty(t *testing.T) {
	assert.Empty(t, New().Normalize(nil))
}
