package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/nexus/internal/generation"
	"github.com/hyperjump/nexus/internal/models"
)

func sampleRetrieval() *models.Retrieval {
	return &models.Retrieval{
		Query:     "préavis",
		State:     models.StateDone,
		Context:   "## Documents (PDF)\n[PDF-1] Loi (Loi)\n...",
		QueryTime: 42,
		Omitted:   1,
		Documents: []*models.Document{
			models.NewDocument(models.DocumentInput{
				Title: "Loi sur les contrats de travail", SourceURI: "/docs/loi.pdf",
				SourceType: models.SourceTypePDF, DocType: models.DocTypeLaw,
				Content: strings.Repeat("préavis ", 100), RelevanceScore: 0.9,
			}),
		},
		Branches: []models.BranchReport{
			{Backend: "fulltext", State: models.BranchSucceeded, Count: 3, ElapsedMs: 12},
			{Backend: "web", State: models.BranchSkipped, Error: "context deadline exceeded"},
		},
	}
}

func TestWriteRetrieval_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRetrieval(&buf, sampleRetrieval(), OutputText, true); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"1 sources in 42ms (1 omitted by context budget)",
		"fulltext",
		"(context deadline exceeded)",
		"[PDF] Loi sur les contrats de travail (Loi)",
		"/docs/loi.pdf",
		"--- Context ---",
		"[PDF-1] Loi (Loi)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteRetrieval_noContext(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRetrieval(&buf, sampleRetrieval(), OutputText, false); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "--- Context ---") {
		t.Error("context should be hidden")
	}
}

func TestWriteRetrieval_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRetrieval(&buf, sampleRetrieval(), OutputJSON, false); err != nil {
		t.Fatal(err)
	}
	var decoded models.Retrieval
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Query != "préavis" || len(decoded.Documents) != 1 || decoded.Documents[0].DocType != models.DocTypeLaw {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteAnswer(t *testing.T) {
	ret := sampleRetrieval()
	ans := &generation.Answer{Text: "  Trois mois [PDF-1].  ", State: models.StateDone, Citations: ret.Citations(), Branches: ret.Branches}
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, ans, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "\nTrois mois [PDF-1].\n") || !strings.Contains(out, "--- Sources ---") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "not grounded") {
		t.Error("grounded answer flagged")
	}

	buf.Reset()
	failed := &generation.Answer{Text: "Je ne sais pas.", State: models.StateFailed}
	if err := WriteAnswer(&buf, failed, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "not grounded") {
		t.Errorf("failed dispatch should be flagged:\n%s", buf.String())
	}
}

func TestWriteCompliance(t *testing.T) {
	res := &generation.ComplianceResult{Compliance: generation.VerdictCompliant, Reason: "ok", Sources: []string{"Loi", "CCT 2019"}}
	var buf bytes.Buffer
	if err := WriteCompliance(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Verdict: CONFORME") || !strings.Contains(buf.String(), "Loi; CCT 2019") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
	buf.Reset()
	if err := WriteCompliance(&buf, res, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"compliance": "CONFORME"`) {
		t.Errorf("json output:\n%s", buf.String())
	}
}

func TestUnknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRetrieval(&buf, &models.Retrieval{State: models.StateDone}, OutputFormat("yaml"), false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "0 sources") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}
