package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/nexus/internal/models"
)

// ruleColumns maps accepted header names (lower-cased) to rule fields.
var ruleColumns = map[string]string{
	"id":         "id",
	"title":      "title",
	"titre":      "title",
	"category":   "category",
	"catégorie":  "category",
	"categorie":  "category",
	"keywords":   "keywords",
	"mots-clés":  "keywords",
	"mots-cles":  "keywords",
	"content":    "content",
	"contenu":    "content",
	"doc_type":   "doc_type",
	"type":       "doc_type",
	"source_uri": "source_uri",
	"source":     "source_uri",
}

// ReadRuleSheet reads rules from the first sheet of an XLSX workbook. The
// first row names the columns; rows without title and content are skipped.
// The doc type column accepts canonical names and backend labels ("Loi", "CCT", ...).
func ReadRuleSheet(content []byte) ([]models.Rule, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	fields := make([]string, len(rows[0]))
	hasTitle := false
	for i, h := range rows[0] {
		fields[i] = ruleColumns[strings.ToLower(strings.TrimSpace(h))]
		if fields[i] == "title" || fields[i] == "content" {
			hasTitle = true
		}
	}
	if !hasTitle {
		return nil, fmt.Errorf("rule sheet %q: header has neither title nor content column", sheets[0])
	}

	var rules []models.Rule
	for _, row := range rows[1:] {
		var r models.Rule
		for i, cell := range row {
			if i >= len(fields) {
				break
			}
			cell = strings.TrimSpace(cell)
			switch fields[i] {
			case "id":
				r.ID = cell
			case "title":
				r.Title = cell
			case "category":
				r.Category = cell
			case "keywords":
				r.Keywords = cell
			case "content":
				r.Content = cell
			case "doc_type":
				r.DocType = string(models.ParseDocType(cell))
			case "source_uri":
				r.SourceURI = cell
			}
		}
		if r.Title == "" && r.Content == "" {
			continue
		}
		rules = append(rules, r)
	}
	return rules, nil
}
