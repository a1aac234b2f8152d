package extract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// extractPDFPages returns one Page per PDF page that has text. Scanned
// statutes often carry a few pages the decoder cannot read; those are
// skipped, and the file fails only when no page could be read at all.
func extractPDFPages(content []byte) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("open PDF: malformed document: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	pages = make([]Page, 0, numPages)
	var failed []error
	for i := 1; i <= numPages; i++ {
		text, err := pdfPageText(r.Page(i))
		if err != nil {
			failed = append(failed, fmt.Errorf("page %d: %w", i, err))
			continue
		}
		if text != "" {
			pages = append(pages, Page{Number: i, Text: text})
		}
	}
	if len(pages) == 0 && len(failed) > 0 {
		return nil, fmt.Errorf("extract PDF: %w", errors.Join(failed...))
	}
	return pages, nil
}

// pdfPageText isolates decoder panics to the page that caused them.
func pdfPageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode: %v", r)
		}
	}()
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
