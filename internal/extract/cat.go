package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// extractCat extracts ODT and RTF text as a single page.
func extractCat(content []byte) ([]Page, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	return []Page{{Number: 1, Text: text}}, nil
}
