package indexer

import (
	"strconv"
	"strings"

	"github.com/hyperjump/nexus/internal/keyword"
)

// Chunker splits long pages into overlapping word windows so a single
// unpaginated file (plain text, ODT) does not become one huge index entry.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
// A size <= 0 disables splitting.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits page into windows of at most chunkSize words. Every window
// keeps the page's number; window k > 0 gets the id suffix ".k".
func (c *Chunker) Chunk(page keyword.Page) []keyword.Page {
	if page.ID == "" {
		page.ID = keyword.PageID(page.DocID, page.PageNumber)
	}
	words := strings.Fields(page.Content)
	if c.chunkSize <= 0 || len(words) <= c.chunkSize {
		return []keyword.Page{page}
	}
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	var chunks []keyword.Page
	for i, k := 0, 0; i < len(words); i, k = i+step, k+1 {
		end := min(i+c.chunkSize, len(words))
		chunk := page
		chunk.Content = strings.Join(words[i:end], " ")
		if k > 0 {
			chunk.ID = page.ID + "." + strconv.Itoa(k)
		}
		chunks = append(chunks, chunk)
		if end >= len(words) {
			break
		}
	}
	return chunks
}
