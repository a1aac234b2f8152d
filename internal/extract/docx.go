package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	ooxmlContentTypes = "[Content_Types].xml"
	docxDefaultBody   = "word/document.xml"
	docxBodyType      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// text runs, with or without xml:space and other attributes
	wtTag         = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	overrideTag   = regexp.MustCompile(`<Override\s[^>]*>`)
	partNameAttr  = regexp.MustCompile(`PartName="([^"]+)"`)
	contentTypeAt = regexp.MustCompile(`ContentType="([^"]+)"`)
)

// docxBodyPath returns the part holding the document body. Writers other
// than Word sometimes rename it, so [Content_Types].xml wins over the default.
func docxBodyPath(zr *zip.Reader) string {
	ct, err := readZipEntry(zr, ooxmlContentTypes)
	if err != nil {
		return docxDefaultBody
	}
	for _, tag := range overrideTag.FindAll(ct, -1) {
		typ := contentTypeAt.FindSubmatch(tag)
		name := partNameAttr.FindSubmatch(tag)
		if typ != nil && name != nil && string(typ[1]) == docxBodyType {
			return strings.TrimPrefix(string(name[1]), "/")
		}
	}
	return docxDefaultBody
}

// pageBreak matches explicit page breaks and the breaks Word records at the last render.
var pageBreak = regexp.MustCompile(`<w:br[^>]*w:type="page"[^>]*/>|<w:lastRenderedPageBreak/>`)

// extractDOCXPages extracts text from .docx bytes, one page per explicit page
// break. DOCX is a ZIP whose main part (word/document.xml unless
// [Content_Types].xml names another) holds <w:t> text runs. The regex scan
// tolerates paragraph attributes that defeat simpler <w:p> matching.
func extractDOCXPages(content []byte) ([]Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	docXML, err := readZipEntry(zr, docxBodyPath(zr))
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: %w", err)
	}

	parts := pageBreak.Split(string(docXML), -1)
	pages := make([]Page, 0, len(parts))
	for i, part := range parts {
		runs := wtTag.FindAllStringSubmatch(part, -1)
		words := make([]string, 0, len(runs))
		for _, r := range runs {
			if t := strings.TrimSpace(r[1]); t != "" {
				words = append(words, t)
			}
		}
		pages = append(pages, Page{Number: i + 1, Text: unescapeXML(strings.Join(words, " "))})
	}
	return pages, nil
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

var xmlEntities = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&amp;", "&")

func unescapeXML(s string) string {
	return xmlEntities.Replace(s)
}
