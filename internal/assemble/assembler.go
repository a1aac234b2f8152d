// Package assemble renders ranked documents into the bounded, source-attributed
// context handed to text generation.
package assemble

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/nexus/internal/models"
)

const (
	// DefaultPerDocumentLimit bounds the content characters rendered per document.
	DefaultPerDocumentLimit = 2000
	// DefaultBudget bounds the characters of the whole context.
	DefaultBudget = 12000

	// NoDocumentsMarker is the whole context when no backend returned anything usable.
	NoDocumentsMarker = "No relevant documents were found for this question."
	// NoResultsMarker fills the section of a queried source that returned nothing.
	NoResultsMarker = "(no results for this source)"
	// BudgetOmittedMarker fills a section whose documents were all dropped for size.
	BudgetOmittedMarker = "(results omitted: context budget reached)"
)

var sectionLabels = map[models.SourceType]string{
	models.SourceTypePDF:        "Documents (PDF)",
	models.SourceTypeStructured: "Rules table",
	models.SourceTypeWeb:        "Web results",
}

var tagPrefixes = map[models.SourceType]string{
	models.SourceTypePDF:        "PDF",
	models.SourceTypeStructured: "RULE",
	models.SourceTypeWeb:        "WEB",
}

// Options configures an Assembler. Zero fields take defaults.
type Options struct {
	PerDocumentLimit int
	Budget           int
	// SectionOrder lists source types in the order their sections appear.
	SectionOrder []models.SourceType
}

// Result is the assembled context and the documents it contains.
type Result struct {
	Context string
	// Included are the documents rendered into Context, in ranked order.
	Included []*models.Document
	// Omitted counts documents dropped to respect the budget.
	Omitted int
}

// Assembler renders contexts. It is safe for concurrent use.
type Assembler struct {
	opts Options
}

// New creates an Assembler.
func New(opts Options) *Assembler {
	if opts.PerDocumentLimit <= 0 {
		opts.PerDocumentLimit = DefaultPerDocumentLimit
	}
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if len(opts.SectionOrder) == 0 {
		opts.SectionOrder = models.SourceTypes
	}
	return &Assembler{opts: opts}
}

// Assemble renders ranked documents grouped into one section per queried source type.
// Documents are admitted in ranked order until the next would exceed the budget;
// it and every lower-ranked document are omitted.
func (a *Assembler) Assemble(ranked []*models.Document, queried []models.SourceType) Result {
	if len(ranked) == 0 {
		return Result{Context: NoDocumentsMarker}
	}
	queriedSet := make(map[models.SourceType]bool, len(queried))
	for _, st := range queried {
		queriedSet[st] = true
	}
	// a document from a source outside the order still gets a section
	order := append([]models.SourceType(nil), a.opts.SectionOrder...)
	for _, d := range ranked {
		queriedSet[d.SourceType] = true
		if !contains(order, d.SourceType) {
			order = append(order, d.SourceType)
		}
	}

	admitted := 0
	for admitted < len(ranked) {
		ctx := a.render(ranked[:admitted+1], ranked[admitted+1:], order, queriedSet)
		if utf8.RuneCountInString(ctx) > a.opts.Budget {
			break
		}
		admitted++
	}

	ctx := a.render(ranked[:admitted], ranked[admitted:], order, queriedSet)
	ctx = models.TruncateRunes(ctx, a.opts.Budget)
	return Result{
		Context:  ctx,
		Included: append([]*models.Document(nil), ranked[:admitted]...),
		Omitted:  len(ranked) - admitted,
	}
}

func (a *Assembler) render(included, omitted []*models.Document, order []models.SourceType, queried map[models.SourceType]bool) string {
	bySource := make(map[models.SourceType][]*models.Document)
	for _, d := range included {
		bySource[d.SourceType] = append(bySource[d.SourceType], d)
	}
	dropped := make(map[models.SourceType]bool)
	for _, d := range omitted {
		dropped[d.SourceType] = true
	}

	var b strings.Builder
	for _, st := range order {
		if !queried[st] {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## ")
		b.WriteString(label(st))
		b.WriteString("\n")

		docs := bySource[st]
		switch {
		case len(docs) == 0 && dropped[st]:
			b.WriteString(BudgetOmittedMarker + "\n")
		case len(docs) == 0:
			b.WriteString(NoResultsMarker + "\n")
		}
		for i, d := range docs {
			a.writeDocument(&b, st, i+1, d)
		}
	}
	return b.String()
}

func (a *Assembler) writeDocument(b *strings.Builder, st models.SourceType, n int, d *models.Document) {
	b.WriteString("[")
	b.WriteString(tagPrefix(st))
	b.WriteString("-")
	b.WriteString(strconv.Itoa(n))
	b.WriteString("] ")
	b.WriteString(d.Title)
	if dt := d.DocType.Label(); dt != "" {
		b.WriteString(" (")
		b.WriteString(dt)
		b.WriteString(")")
	}
	b.WriteString("\n")
	if content := models.TruncateRunes(d.Content, a.opts.PerDocumentLimit); content != "" {
		b.WriteString(content)
		b.WriteString("\n")
	}
	if d.SourceURI != "" {
		b.WriteString("Source: ")
		b.WriteString(d.SourceURI)
		b.WriteString("\n")
	}
}

func label(st models.SourceType) string {
	if l, ok := sectionLabels[st]; ok {
		return l
	}
	return string(st)
}

func tagPrefix(st models.SourceType) string {
	if p, ok := tagPrefixes[st]; ok {
		return p
	}
	return string(st)
}

func contains(list []models.SourceType, st models.SourceType) bool {
	for _, s := range list {
		if s == st {
			return true
		}
	}
	return false
}
