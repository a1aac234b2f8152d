package assemble

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/nexus/internal/models"
)

var allSources = []models.SourceType{models.SourceTypePDF, models.SourceTypeStructured, models.SourceTypeWeb}

func newDoc(title string, st models.SourceType, dt models.DocType, content, uri string) *models.Document {
	return models.NewDocument(models.DocumentInput{
		Title: title, SourceType: st, DocType: dt, Content: content, SourceURI: uri,
	})
}

func TestAssemble_NoDocuments(t *testing.T) {
	res := New(Options{}).Assemble(nil, allSources)
	assert.Equal(t, NoDocumentsMarker, res.Context)
	assert.Empty(t, res.Included)
	assert.Zero(t, res.Omitted)
}

func TestAssemble_SectionsAndRendering(t *testing.T) {
	ranked := []*models.Document{
		newDoc("Loi 1971", models.SourceTypePDF, models.DocTypeLaw, "[Page 3] 20 jours", "/docs/loi.pdf"),
		newDoc("Prime de nuit", models.SourceTypeStructured, models.DocTypeCollectiveAgreement, "10%", "cct-46"),
		newDoc("Protocole", models.SourceTypePDF, models.DocTypeLocalProtocol, "horaires", ""),
	}
	res := New(Options{}).Assemble(ranked, allSources)

	want := "## Documents (PDF)\n" +
		"[PDF-1] Loi 1971 (Loi)\n[Page 3] 20 jours\nSource: /docs/loi.pdf\n" +
		"[PDF-2] Protocole (Protocole)\nhoraires\n" +
		"\n## Rules table\n" +
		"[RULE-1] Prime de nuit (CCT)\n10%\nSource: cct-46\n" +
		"\n## Web results\n" +
		NoResultsMarker + "\n"
	assert.Equal(t, want, res.Context)
	assert.Len(t, res.Included, 3)
	assert.Zero(t, res.Omitted)
}

func TestAssemble_UnqueriedSourceHasNoSection(t *testing.T) {
	ranked := []*models.Document{newDoc("a", models.SourceTypePDF, models.DocTypeUnset, "x", "")}
	res := New(Options{}).Assemble(ranked, []models.SourceType{models.SourceTypePDF})
	assert.NotContains(t, res.Context, "Web results")
	assert.NotContains(t, res.Context, "Rules table")
}

func TestAssemble_PerDocumentLimit(t *testing.T) {
	ranked := []*models.Document{newDoc("a", models.SourceTypeWeb, models.DocTypeUnset, strings.Repeat("é", 500), "")}
	res := New(Options{PerDocumentLimit: 10}).Assemble(ranked, []models.SourceType{models.SourceTypeWeb})
	assert.Contains(t, res.Context, "\n"+strings.Repeat("é", 10)+"\n")
	assert.NotContains(t, res.Context, strings.Repeat("é", 11))
}

func TestAssemble_BudgetDropsLowestRankedFirst(t *testing.T) {
	body := strings.Repeat("x", 100)
	ranked := []*models.Document{
		newDoc("law", models.SourceTypePDF, models.DocTypeLaw, body, ""),
		newDoc("cct", models.SourceTypeStructured, models.DocTypeCollectiveAgreement, body, ""),
		newDoc("proto", models.SourceTypeWeb, models.DocTypeLocalProtocol, body, ""),
		// small but lower ranked: must not jump the queue
		newDoc("tiny", models.SourceTypePDF, models.DocTypeUnset, "y", ""),
	}
	budget := 300
	res := New(Options{Budget: budget}).Assemble(ranked, allSources)

	require.NotEmpty(t, res.Included)
	assert.LessOrEqual(t, utf8.RuneCountInString(res.Context), budget)
	assert.Equal(t, len(ranked), len(res.Included)+res.Omitted)
	for i, d := range res.Included {
		assert.Same(t, ranked[i], d, "included documents must be a ranked prefix")
	}
	assert.Equal(t, "law", res.Included[0].Title)
	assert.Contains(t, res.Context, BudgetOmittedMarker)
	assert.NotContains(t, res.Context, "tiny")
}

func TestAssemble_BudgetHardCap(t *testing.T) {
	ranked := []*models.Document{newDoc("a", models.SourceTypePDF, models.DocTypeLaw, strings.Repeat("z", 1000), "")}
	res := New(Options{Budget: 40}).Assemble(ranked, allSources)
	assert.LessOrEqual(t, utf8.RuneCountInString(res.Context), 40)
	assert.Equal(t, 1, res.Omitted)
	assert.Empty(t, res.Included)
}

func TestAssemble_DocumentsFromUnknownSourceStillRendered(t *testing.T) {
	ranked := []*models.Document{newDoc("a", models.SourceType("MAIL"), models.DocTypeUnset, "c", "")}
	res := New(Options{}).Assemble(ranked, nil)
	assert.Contains(t, res.Context, "## MAIL\n[MAIL-1] a\n")
}
