package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/nexus/internal/assemble"
	"github.com/hyperjump/nexus/internal/backend"
	"github.com/hyperjump/nexus/internal/config"
	"github.com/hyperjump/nexus/internal/dispatch"
	"github.com/hyperjump/nexus/internal/extract"
	"github.com/hyperjump/nexus/internal/generation"
	"github.com/hyperjump/nexus/internal/indexer"
	"github.com/hyperjump/nexus/internal/keyword"
	"github.com/hyperjump/nexus/internal/normalize"
	"github.com/hyperjump/nexus/internal/ranking"
	"github.com/hyperjump/nexus/internal/storage"
)

// Components holds every long-lived collaborator built from the config.
type Components struct {
	Pages      *keyword.BleveIndex
	Rules      *storage.SQLiteRuleStore
	Indexer    *indexer.Indexer
	Dispatcher *dispatch.Dispatcher
	Answers    *generation.Service
}

// Close releases the page index and the rules database.
func (c *Components) Close() {
	if c.Pages != nil {
		_ = c.Pages.Close()
	}
	if c.Rules != nil {
		_ = c.Rules.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.IndexPath), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	pages, err := keyword.NewBleveIndex(cfg.Storage.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize page index: %w", err)
	}
	c.Pages = pages

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.RulesDatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("create rules database directory: %w", err)
	}
	rules, err := storage.NewSQLiteRuleStore(cfg.Storage.RulesDatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rules store: %w", err)
	}
	c.Rules = rules

	expander, err := buildExpander(cfg.Keywords)
	if err != nil {
		return nil, err
	}

	c.Indexer = indexer.NewIndexer(pages, rules, extract.NewExtractor(),
		indexer.WithLogger(logger),
		indexer.WithChunking(cfg.Indexing.ChunkSize, cfg.Indexing.ChunkOverlap),
		indexer.WithWorkers(cfg.Indexing.Workers),
		indexer.WithDocTypeResolver(cfg.Watch.DocTypeFor),
	)

	adapters, err := buildAdapters(cfg, pages, rules, expander, logger)
	if err != nil {
		return nil, err
	}
	hierarchy, err := ranking.ParseHierarchy(cfg.Retrieval.Hierarchy)
	if err != nil {
		return nil, err
	}
	c.Dispatcher, err = dispatch.New(adapters,
		normalize.New(normalize.WithLogger(logger)),
		ranking.NewRanker(hierarchy),
		assemble.New(assemble.Options{
			PerDocumentLimit: cfg.Retrieval.PerDocumentLimit,
			Budget:           cfg.Retrieval.ContextBudget,
		}),
		dispatch.WithBackendTimeout(cfg.Retrieval.BackendTimeout),
		dispatch.WithDefaultLimit(cfg.Retrieval.DefaultLimit),
		dispatch.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	gen, err := buildGenerator(ctx, cfg.Generation, logger)
	if err != nil {
		return nil, err
	}
	c.Answers = generation.NewService(c.Dispatcher, gen, generation.WithLogger(logger))

	ok = true
	return c, nil
}

func buildExpander(cfg config.KeywordsConfig) (*keyword.Expander, error) {
	table := keyword.DefaultSynonyms()
	if cfg.SynonymsPath != "" {
		var err error
		if table, err = keyword.LoadSynonymTable(cfg.SynonymsPath); err != nil {
			return nil, err
		}
	}
	return keyword.NewExpander(table,
		keyword.WithMinTokenLen(cfg.MinTokenLen),
		keyword.WithMaxKeywords(cfg.MaxKeywords),
		keyword.WithTypoTolerance(cfg.TypoDistance),
	), nil
}

// buildAdapters creates the enabled backends in section order: PDF, rules, web.
// The web backend is skipped with a warning when its API key is not set.
func buildAdapters(cfg *config.Config, pages keyword.PageIndex, rules storage.RuleStore, expander *keyword.Expander, logger *zap.Logger) ([]backend.Adapter, error) {
	var adapters []backend.Adapter
	b := cfg.Backends
	if b.FullTextEnabled() {
		adapters = append(adapters, backend.NewFullText(pages,
			backend.WithMaxPageHits(b.FullText.MaxPagesHits),
			backend.WithExcerptLen(b.FullText.ExcerptLen),
			backend.WithFuzziness(b.FullText.Fuzziness),
		))
	}
	if b.RulesEnabled() {
		r, err := backend.NewRules(rules, expander, b.Rules.Fields)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, r)
	}
	if b.Web.Enabled {
		apiKey := os.Getenv(b.Web.APIKeyEnv)
		if apiKey == "" {
			logger.Warn("web search disabled: API key not set", zap.String("env", b.Web.APIKeyEnv))
		} else {
			web, err := backend.NewWeb(b.Web.Endpoint, apiKey,
				backend.WithIncludeDomains(b.Web.IncludeDomains),
				backend.WithSearchDepth(b.Web.SearchDepth),
				backend.WithRateLimiter(backend.NewRateLimiter(b.Web.RequestsPerSec, b.Web.Burst)),
			)
			if err != nil {
				return nil, err
			}
			adapters = append(adapters, web)
		}
	}
	if len(adapters) == 0 {
		return nil, errors.New("no search backend available")
	}
	names := make([]string, len(adapters))
	for i, a := range adapters {
		names[i] = a.Name()
	}
	logger.Info("search backends ready", zap.Strings("backends", names))
	return adapters, nil
}

// buildGenerator returns nil when generation is disabled or its API key is missing.
func buildGenerator(ctx context.Context, cfg config.GenerationConfig, logger *zap.Logger) (generation.Generator, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		logger.Warn("generation disabled: API key not set", zap.String("env", cfg.APIKeyEnv))
		return nil, nil
	}
	g, err := generation.NewGemini(ctx, apiKey, cfg.Model, cfg.Temperature, cfg.MaxOutputTokens)
	if err != nil {
		return nil, err
	}
	logger.Info("generation enabled", zap.String("model", g.Model()))
	return g, nil
}
