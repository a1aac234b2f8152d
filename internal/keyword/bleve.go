package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// BleveIndex implements PageIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve page index at path.
// If the path already exists, the existing index is opened and reused.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := pageMapping()
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryBleveIndex creates an in-memory page index. Used by tests and one-shot CLI runs.
func NewMemoryBleveIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(pageMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func pageMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming): legal terms such as
	// "préavis" must match verbatim; stemming merges unrelated article words.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("doc_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("doc_type", keywordFieldMapping)

	linkMapping := bleve.NewTextFieldMapping()
	linkMapping.Index = false
	docMapping.AddFieldMappingsAt("link", linkMapping)
	docMapping.AddFieldMappingsAt("page", bleve.NewNumericFieldMapping())

	im.AddDocumentMapping("page", docMapping)
	im.DefaultType = "page"
	im.DefaultMapping = docMapping
	return im
}

// IndexPages indexes pages in one batch.
func (b *BleveIndex) IndexPages(ctx context.Context, pages []Page) error {
	batch := b.index.NewBatch()
	for i := range pages {
		p := pages[i]
		if p.ID == "" {
			p.ID = PageID(p.DocID, p.PageNumber)
		}
		if err := batch.Index(p.ID, p); err != nil {
			return fmt.Errorf("batch page %s: %w", p.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("index pages: %w", err)
	}
	return nil
}

// Search runs a match query over title and content and returns up to limit page hits.
// opts.DocType restricts hits with a term query on the doc_type keyword field.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*PageHit, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	fuzziness := 2
	if opts.Fuzziness > 0 {
		fuzziness = opts.Fuzziness
	}

	var textQuery blevequery.Query
	switch {
	case opts.FuzzyEnabled && opts.TitleBoost > 1:
		textQuery = bleve.NewDisjunctionQuery(
			buildFuzzyQuery(query, fuzziness, "title", opts.TitleBoost),
			buildFuzzyQuery(query, fuzziness, "content", 0))
	case opts.FuzzyEnabled:
		textQuery = buildFuzzyQuery(query, fuzziness, "", 0)
	case opts.TitleBoost > 1:
		tq := bleve.NewMatchQuery(query)
		tq.SetField("title")
		tq.SetBoost(opts.TitleBoost)
		cq := bleve.NewMatchQuery(query)
		cq.SetField("content")
		textQuery = bleve.NewDisjunctionQuery(tq, cq)
	default:
		textQuery = bleve.NewMatchQuery(query)
	}

	q := textQuery
	if opts.DocType != "" {
		dt := bleve.NewTermQuery(string(opts.DocType))
		dt.SetField("doc_type")
		q = bleve.NewConjunctionQuery(textQuery, dt)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"*"}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*PageHit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		out = append(out, &PageHit{Page: pageFromFields(hit.ID, hit.Fields), Score: hit.Score})
	}
	return out, nil
}

func pageFromFields(id string, fields map[string]interface{}) Page {
	p := Page{ID: id}
	p.DocID, _ = fields["doc_id"].(string)
	p.Title, _ = fields["title"].(string)
	p.Content, _ = fields["content"].(string)
	p.DocType, _ = fields["doc_type"].(string)
	p.Link, _ = fields["link"].(string)
	if n, ok := fields["page"].(float64); ok {
		p.PageNumber = int(n)
	}
	return p
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w != "" {
			terms = append(terms, w)
		}
	}
	return terms
}

// buildFuzzyQuery ORs one fuzzy query per term. An empty field searches all
// fields; boost <= 1 leaves scores unchanged.
func buildFuzzyQuery(queryStr string, fuzziness int, field string, boost float64) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		if boost > 1 {
			fq.SetBoost(boost)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DeleteDocument removes every page of docID.
func (b *BleveIndex) DeleteDocument(ctx context.Context, docID string) error {
	tq := bleve.NewTermQuery(docID)
	tq.SetField("doc_id")
	for {
		req := bleve.NewSearchRequest(tq)
		req.Size = 500
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("find pages of %s: %w", docID, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("delete pages of %s: %w", docID, err)
		}
	}
}

// DocCount returns the number of indexed pages.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
