// Package extract provides page-level text extraction from legal source documents.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Page is the text of one page (or slide) of a document. Number starts at 1.
type Page struct {
	Number int
	Text   string
}

// Extractor extracts page text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// SupportedExtensions lists the file extensions ExtractPages understands.
var SupportedExtensions = []string{".pdf", ".docx", ".odt", ".rtf", ".pptx", ".txt", ".md"}

// Supported reports whether ext (with leading dot, any case) can be extracted.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExtensions {
		if s == ext {
			return true
		}
	}
	return false
}

// ExtractPages reads the file at path and returns its non-empty pages.
func (e *Extractor) ExtractPages(path string) ([]Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractPagesBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractPagesBytes extracts pages from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). PDF pages and PPTX slides
// map one to one; DOCX is split on explicit page breaks; other formats yield
// a single page, or one per form feed for plain text.
func (e *Extractor) ExtractPagesBytes(content []byte, ext string) ([]Page, error) {
	var (
		pages []Page
		err   error
	)
	switch ext {
	case ".pdf":
		pages, err = extractPDFPages(content)
	case ".docx":
		pages, err = extractDOCXPages(content)
	case ".pptx":
		pages, err = extractPPTXPages(content)
	case ".odt", ".rtf":
		pages, err = extractCat(content)
	case ".txt", ".md", "":
		pages, err = extractPlainPages(content)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return compact(pages), nil
}

// compact drops blank pages, keeping original page numbers.
func compact(pages []Page) []Page {
	out := pages[:0]
	for _, p := range pages {
		p.Text = strings.TrimSpace(p.Text)
		if p.Text != "" {
			out = append(out, p)
		}
	}
	return out
}
