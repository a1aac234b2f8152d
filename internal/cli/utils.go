// Package cli provides output formatting for the nexus command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/nexus/internal/generation"
	"github.com/hyperjump/nexus/internal/models"
	"github.com/hyperjump/nexus/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const snippetWidth = 200

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRetrieval writes a retrieval result to w. The text format shows the
// per-backend report, the ranked sources and the assembled context.
func WriteRetrieval(w io.Writer, ret *models.Retrieval, format OutputFormat, showContext bool) error {
	if format == OutputJSON {
		return writeJSON(w, ret)
	}
	fmt.Fprintf(w, "\n%s: %d sources in %dms", ret.State, len(ret.Documents), ret.QueryTime)
	if ret.Omitted > 0 {
		fmt.Fprintf(w, " (%d omitted by context budget)", ret.Omitted)
	}
	fmt.Fprintln(w)
	writeBranches(w, ret.Branches)
	writeCitations(w, ret.Citations())
	if showContext {
		fmt.Fprintf(w, "\n--- Context ---\n%s\n", ret.Context)
	}
	return nil
}

// WriteAnswer writes a generated answer followed by its sources.
func WriteAnswer(w io.Writer, ans *generation.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, ans)
	}
	fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(ans.Text))
	if ans.State == models.StateFailed {
		fmt.Fprintln(w, "\n(no search backend answered; the answer is not grounded in any source)")
	}
	writeBranches(w, ans.Branches)
	writeCitations(w, ans.Citations)
	return nil
}

// WriteCompliance writes a compliance verdict.
func WriteCompliance(w io.Writer, res *generation.ComplianceResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "\nVerdict: %s\n%s\n", res.Compliance, res.Reason)
	if len(res.Sources) > 0 {
		fmt.Fprintf(w, "Cited: %s\n", strings.Join(res.Sources, "; "))
	}
	writeCitations(w, res.Citations)
	return nil
}

func writeBranches(w io.Writer, branches []models.BranchReport) {
	for _, b := range branches {
		fmt.Fprintf(w, "  %-10s %-9s %d results, %dms", b.Backend, b.State, b.Count, b.ElapsedMs)
		if b.Error != "" {
			fmt.Fprintf(w, " (%s)", b.Error)
		}
		fmt.Fprintln(w)
	}
}

func writeCitations(w io.Writer, citations []models.Citation) {
	if len(citations) == 0 {
		return
	}
	fmt.Fprintln(w, "\n--- Sources ---")
	for i, c := range citations {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. [%s] %s", i+1, c.SourceType, c.Title)
		if label := c.DocType.Label(); label != "" {
			fmt.Fprintf(w, " (%s)", label)
		}
		fmt.Fprintf(w, " | Score: %.4f\n", c.RelevanceScore)
		if c.SourceURI != "" {
			fmt.Fprintf(w, "%s\n", c.SourceURI)
		}
		if c.Snippet != "" {
			fmt.Fprintf(w, "\n%s\n", utils.Truncate(c.Snippet, snippetWidth))
		}
	}
	fmt.Fprintln(w)
}
