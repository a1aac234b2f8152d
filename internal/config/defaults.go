package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/nexus/data/indices/pages"
	}
	if cfg.Storage.RulesDatabasePath == "" {
		cfg.Storage.RulesDatabasePath = "/usr/local/var/nexus/data/db/rules.db"
	}
	if cfg.Backends.FullText.MaxPagesHits == 0 {
		cfg.Backends.FullText.MaxPagesHits = 50
	}
	if cfg.Backends.FullText.ExcerptLen == 0 {
		cfg.Backends.FullText.ExcerptLen = 500
	}
	if cfg.Backends.Web.APIKeyEnv == "" {
		cfg.Backends.Web.APIKeyEnv = "NEXUS_WEB_SEARCH_API_KEY"
	}
	if cfg.Backends.Web.SearchDepth == "" {
		cfg.Backends.Web.SearchDepth = "basic"
	}
	if cfg.Backends.Web.RequestsPerSec == 0 {
		cfg.Backends.Web.RequestsPerSec = 2
	}
	if cfg.Backends.Web.Burst == 0 {
		cfg.Backends.Web.Burst = 4
	}
	if cfg.Backends.Rules.Fields == nil {
		cfg.Backends.Rules.Fields = []string{"title", "category", "keywords", "content"}
	}
	if cfg.Retrieval.DefaultLimit == 0 {
		cfg.Retrieval.DefaultLimit = 5
	}
	if cfg.Retrieval.BackendTimeout == 0 {
		cfg.Retrieval.BackendTimeout = 10 * time.Second
	}
	if cfg.Retrieval.PerDocumentLimit == 0 {
		cfg.Retrieval.PerDocumentLimit = 2000
	}
	if cfg.Retrieval.ContextBudget == 0 {
		cfg.Retrieval.ContextBudget = 12000
	}
	if cfg.Keywords.MinTokenLen == 0 {
		cfg.Keywords.MinTokenLen = 3
	}
	if cfg.Keywords.MaxKeywords == 0 {
		cfg.Keywords.MaxKeywords = 10
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gemini-2.0-flash"
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "GOOGLE_API_KEY"
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.5
	}
	if cfg.Generation.MaxOutputTokens == 0 {
		cfg.Generation.MaxOutputTokens = 2048
	}
	if cfg.Indexing.ChunkSize == 0 {
		cfg.Indexing.ChunkSize = 400
	}
	if cfg.Indexing.ChunkOverlap == 0 {
		cfg.Indexing.ChunkOverlap = 40
	}
	if cfg.Indexing.Workers == 0 {
		cfg.Indexing.Workers = 4
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".docx", ".odt", ".rtf", ".pptx", ".txt", ".md", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
