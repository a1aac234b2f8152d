package normalize

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/nexus/internal/models"
)

// Normalizer converts RawResults into Documents.
type Normalizer struct {
	logger *zap.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger used to report omitted records and missing titles.
func WithLogger(l *zap.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NormalizeOne converts a single raw result. It fails only when a field is malformed.
func (n *Normalizer) NormalizeOne(raw models.RawResult) (*models.Document, error) {
	title, err := Resolve(TitleExtractors, raw)
	if err != nil {
		return nil, fmt.Errorf("title: %w", err)
	}
	content, err := Resolve(ContentExtractors, raw)
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	uri, err := Resolve(URIExtractors, raw)
	if err != nil {
		return nil, fmt.Errorf("source uri: %w", err)
	}
	label, err := Resolve(DocTypeExtractors, raw)
	if err != nil {
		return nil, fmt.Errorf("doc type: %w", err)
	}

	if title == "" {
		title = UntitledTitle
		n.logger.Warn("no title for result",
			zap.String("source_type", string(raw.SourceType)),
			zap.String("uri", uri))
	}

	var score float64
	if raw.Score != nil {
		score = *raw.Score
	}

	docID := raw.ID
	if docID == "" {
		docID = uri
	}

	return models.NewDocument(models.DocumentInput{
		Title:          title,
		Content:        content,
		SourceURI:      uri,
		DocID:          docID,
		SourceType:     raw.SourceType,
		DocType:        models.ParseDocType(label),
		RelevanceScore: score,
	}), nil
}

// Normalize converts a batch, preserving input order. Malformed records are
// logged and omitted; the rest of the batch is unaffected.
func (n *Normalizer) Normalize(raws []models.RawResult) []*models.Document {
	docs := make([]*models.Document, 0, len(raws))
	for i, raw := range raws {
		doc, err := n.NormalizeOne(raw)
		if err != nil {
			n.logger.Warn("omitting malformed result",
				zap.Int("index", i),
				zap.String("id", raw.ID),
				zap.String("source_type", string(raw.SourceType)),
				zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}
