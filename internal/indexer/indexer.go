// Package indexer feeds source documents into the page index and rule sheets into the rules store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/nexus/internal/extract"
	"github.com/hyperjump/nexus/internal/fileid"
	"github.com/hyperjump/nexus/internal/keyword"
	"github.com/hyperjump/nexus/internal/models"
	"github.com/hyperjump/nexus/internal/storage"
)

// ErrUnsupportedFile is returned for files the extractor cannot read.
var ErrUnsupportedFile = errors.New("unsupported file type")

const (
	defaultChunkSize    = 400
	defaultChunkOverlap = 40
	defaultWorkers      = 4
)

// Stats summarizes what is currently indexed.
type Stats struct {
	Pages uint64 `json:"pages"`
	Rules int64  `json:"rules"`
}

// fileStamp identifies an indexed file version.
type fileStamp struct {
	mtime   int64
	size    int64
	docType models.DocType
}

// Indexer indexes files into the page index and rules into the rule store.
type Indexer struct {
	pages     keyword.PageIndex
	rules     storage.RuleStore
	extractor *extract.Extractor
	chunker   *Chunker
	workers   int
	docTypeOf func(path string) models.DocType
	logger    *zap.Logger

	mu   sync.Mutex
	seen map[string]fileStamp
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (file indexed, document deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// WithChunking sets the page split window, in words.
func WithChunking(size, overlap int) IndexerOption {
	return func(idx *Indexer) { idx.chunker = NewChunker(size, overlap) }
}

// WithWorkers sets the number of files IndexDirectory processes concurrently.
func WithWorkers(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.workers = n
		}
	}
}

// WithDocTypeResolver sets how a doc type is chosen for files indexed without one,
// typically config.WatchConfig.DocTypeFor.
func WithDocTypeResolver(fn func(path string) models.DocType) IndexerOption {
	return func(idx *Indexer) { idx.docTypeOf = fn }
}

// NewIndexer creates an indexer. rules may be nil when the rules backend is disabled.
func NewIndexer(pages keyword.PageIndex, rules storage.RuleStore, extractor *extract.Extractor, opts ...IndexerOption) *Indexer {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	idx := &Indexer{
		pages:     pages,
		rules:     rules,
		extractor: extractor,
		chunker:   NewChunker(defaultChunkSize, defaultChunkOverlap),
		workers:   defaultWorkers,
		docTypeOf: func(string) models.DocType { return models.DocTypeUnset },
		logger:    zap.NewNop(),
		seen:      make(map[string]fileStamp),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexFile extracts the pages of the file at path and replaces its entries in
// the page index. An unset docType is resolved from the file's directory.
// Files unchanged since the last call (same mtime, size and doc type) are
// skipped. Returns the number of index entries written.
func (idx *Indexer) IndexFile(ctx context.Context, path string, docType models.DocType) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if !extract.Supported(ext) {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFile, ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file: %s", absPath)
	}
	if docType == models.DocTypeUnset {
		docType = idx.docTypeOf(absPath)
	}

	docID := fileid.FileDocID(absPath)
	stamp := fileStamp{mtime: info.ModTime().UnixNano(), size: info.Size(), docType: docType}
	idx.mu.Lock()
	prev, ok := idx.seen[docID]
	idx.mu.Unlock()
	if ok && prev == stamp {
		idx.logger.Debug("indexer skipping unchanged file", zap.String("path", absPath))
		return 0, nil
	}

	extracted, err := idx.extractor.ExtractPages(absPath)
	if err != nil {
		return 0, fmt.Errorf("extract content: %w", err)
	}
	title := titleFromPath(absPath)
	var pages []keyword.Page
	for _, p := range extracted {
		pages = append(pages, idx.chunker.Chunk(keyword.Page{
			DocID:      docID,
			Title:      title,
			Content:    Preprocess(p.Text),
			DocType:    string(docType),
			Link:       absPath,
			PageNumber: p.Number,
		})...)
	}

	if err := idx.pages.DeleteDocument(ctx, docID); err != nil {
		return 0, err
	}
	if len(pages) > 0 {
		if err := idx.pages.IndexPages(ctx, pages); err != nil {
			return 0, err
		}
	}

	idx.mu.Lock()
	idx.seen[docID] = stamp
	idx.mu.Unlock()
	idx.logger.Debug("indexer file indexed",
		zap.String("path", absPath),
		zap.String("doc_id", docID),
		zap.String("doc_type", string(docType)),
		zap.Int("pages", len(extracted)),
		zap.Int("entries", len(pages)))
	return len(pages), nil
}

// titleFromPath returns the file name without extension, underscores as
// spaces, so "cct_2019_horaires.pdf" is searchable as "cct 2019 horaires".
func titleFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(base, "_", " ")
}

// DeleteFile removes every page of the file at path from the index.
func (idx *Indexer) DeleteFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	docID := fileid.FileDocID(absPath)
	if err := idx.pages.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	idx.mu.Lock()
	delete(idx.seen, docID)
	idx.mu.Unlock()
	idx.logger.Debug("indexer document deleted", zap.String("path", absPath), zap.String("doc_id", docID))
	return nil
}

// IndexDirectory walks dir recursively and indexes each regular file whose
// extension is in allowedExts (every supported extension when empty) on a
// worker pool. Per-file failures are logged and joined into the returned
// error; the remaining files are still indexed. Returns the number of files indexed.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, allowedExts []string, docType models.DocType) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}

	var files []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !extract.Supported(ext) || (len(allowedExts) > 0 && !ExtensionAllowed(ext, allowedExts)) {
			return nil
		}
		// Resolve symlinks so we only index regular files
		if finfo, statErr := os.Stat(path); statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", absDir, err)
	}

	pool, err := ants.NewPool(idx.workers)
	if err != nil {
		return 0, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		indexed atomic.Int64
		errMu   sync.Mutex
		errs    []error
	)
	addErr := func(e error) {
		errMu.Lock()
		errs = append(errs, e)
		errMu.Unlock()
	}
	for _, path := range files {
		if ctx.Err() != nil {
			addErr(ctx.Err())
			break
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if _, err := idx.IndexFile(ctx, path, docType); err != nil {
				idx.logger.Warn("failed to index file", zap.String("path", path), zap.Error(err))
				addErr(fmt.Errorf("%s: %w", path, err))
				return
			}
			indexed.Add(1)
		})
		if submitErr != nil {
			wg.Done()
			addErr(fmt.Errorf("%s: %w", path, submitErr))
		}
	}
	wg.Wait()
	return int(indexed.Load()), errors.Join(errs...)
}

// ExtensionAllowed reports whether ext is in allowed (case-insensitive, dot optional).
func ExtensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// ImportRules loads the rule sheet at path into the rule store. Rows without
// an id get one derived from the file and row so re-importing updates them.
// Rows without a doc type or source take the file's.
func (idx *Indexer) ImportRules(ctx context.Context, path string) (int, error) {
	if idx.rules == nil {
		return 0, errors.New("rules store not configured")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return 0, fmt.Errorf("read rule sheet: %w", err)
	}
	rules, err := extract.ReadRuleSheet(content)
	if err != nil {
		return 0, err
	}
	fileDocType := idx.docTypeOf(absPath)
	for i := range rules {
		r := &rules[i]
		if r.ID == "" {
			r.ID = fileid.RuleID(absPath, r.Title, r.Content)
		}
		if r.DocType == "" {
			r.DocType = string(fileDocType)
		}
		if r.SourceURI == "" {
			r.SourceURI = absPath
		}
		if err := idx.rules.Upsert(ctx, r); err != nil {
			return i, fmt.Errorf("import rule %q: %w", r.Title, err)
		}
	}
	idx.logger.Info("rules imported", zap.String("path", absPath), zap.Int("count", len(rules)))
	return len(rules), nil
}

// PutRule stores a single rule, assigning a random id when it has none.
func (idx *Indexer) PutRule(ctx context.Context, rule *models.Rule) error {
	if idx.rules == nil {
		return errors.New("rules store not configured")
	}
	if strings.TrimSpace(rule.Title) == "" && strings.TrimSpace(rule.Content) == "" {
		return errors.New("rule needs a title or content")
	}
	if rule.ID == "" {
		rule.ID = fileid.NewRuleID()
	}
	if rule.DocType != "" {
		dt := models.ParseDocType(rule.DocType)
		if dt == models.DocTypeUnset {
			return fmt.Errorf("unknown doc type %q", rule.DocType)
		}
		rule.DocType = string(dt)
	}
	return idx.rules.Upsert(ctx, rule)
}

// Stats reports the number of indexed page entries and stored rules.
func (idx *Indexer) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	n, err := idx.pages.DocCount()
	if err != nil {
		return s, fmt.Errorf("count pages: %w", err)
	}
	s.Pages = n
	if idx.rules != nil {
		if s.Rules, err = idx.rules.Count(ctx); err != nil {
			return s, fmt.Errorf("count rules: %w", err)
		}
	}
	return s, nil
}
