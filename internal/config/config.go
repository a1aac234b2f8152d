// Package config provides configuration loading and structs for the nexus server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/nexus/internal/models"
)

// ErrInvalidField is returned when a configured rule search field is not allow-listed.
var ErrInvalidField = errors.New("field not allowed for rule search")

// RuleSearchFields is the allow-list of rule table columns the rules backend may match on.
var RuleSearchFields = []string{"title", "category", "keywords", "content"}

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Backends   BackendsConfig   `yaml:"backends"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Keywords   KeywordsConfig   `yaml:"keywords"`
	Generation GenerationConfig `yaml:"generation"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the page index and the rules database.
type StorageConfig struct {
	IndexPath         string `yaml:"index_path"`
	RulesDatabasePath string `yaml:"rules_database_path"`
}

// BackendsConfig enables and tunes each search backend.
type BackendsConfig struct {
	FullText FullTextConfig `yaml:"fulltext"`
	Web      WebConfig      `yaml:"web"`
	Rules    RulesConfig    `yaml:"rules"`
}

// FullTextConfig configures the PDF page index backend.
type FullTextConfig struct {
	Enabled      *bool `yaml:"enabled"`
	MaxPagesHits int   `yaml:"max_page_hits"`
	ExcerptLen   int   `yaml:"excerpt_len"`
	Fuzziness    int   `yaml:"fuzziness"`
}

// WebConfig configures the web search backend.
type WebConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Endpoint       string   `yaml:"endpoint"`
	APIKeyEnv      string   `yaml:"api_key_env"`
	SearchDepth    string   `yaml:"search_depth"`
	IncludeDomains []string `yaml:"include_domains"`
	RequestsPerSec float64  `yaml:"requests_per_second"`
	Burst          int      `yaml:"burst"`
}

// RulesConfig configures the structured rules backend.
type RulesConfig struct {
	Enabled *bool    `yaml:"enabled"`
	Fields  []string `yaml:"fields"`
}

// RetrievalConfig holds dispatch, ranking and context assembly settings.
type RetrievalConfig struct {
	DefaultLimit     int            `yaml:"default_limit"`
	BackendTimeout   time.Duration  `yaml:"backend_timeout"`
	PerDocumentLimit int            `yaml:"per_document_limit"`
	ContextBudget    int            `yaml:"context_budget"`
	Hierarchy        map[string]int `yaml:"hierarchy"`
}

// KeywordsConfig configures query expansion for the rules backend.
type KeywordsConfig struct {
	MinTokenLen  int    `yaml:"min_token_len"`
	MaxKeywords  int    `yaml:"max_keywords"`
	SynonymsPath string `yaml:"synonyms_path"`
	// TypoDistance lets misspelled tokens match synonym groups within this many edits. 0 disables it.
	TypoDistance int    `yaml:"typo_distance"`
}

// GenerationConfig configures the text generation collaborator.
type GenerationConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Model           string  `yaml:"model"`
	APIKeyEnv       string  `yaml:"api_key_env"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
}

// IndexingConfig controls how source files are split and indexed.
type IndexingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	Workers      int `yaml:"workers"`
}

// WatchConfig holds directory watch settings. DocTypes maps a watched
// directory to the doc type assigned to every file indexed under it.
type WatchConfig struct {
	Directories []string          `yaml:"directories"`
	Extensions  []string          `yaml:"extensions"`
	Recursive   *bool             `yaml:"recursive"`
	DocTypes    map[string]string `yaml:"doc_types"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// DocTypeFor returns the doc type configured for the directory containing path.
// The longest matching directory wins.
func (w *WatchConfig) DocTypeFor(path string) models.DocType {
	best := ""
	var dt models.DocType
	for dir, label := range w.DocTypes {
		clean := filepath.Clean(dir)
		if path != clean && !strings.HasPrefix(path, clean+string(filepath.Separator)) {
			continue
		}
		if len(clean) > len(best) {
			best = clean
			dt = models.ParseDocType(label)
		}
	}
	return dt
}

// FullTextEnabled reports whether the page index backend is on; defaults to true.
func (b *BackendsConfig) FullTextEnabled() bool {
	return b.FullText.Enabled == nil || *b.FullText.Enabled
}

// RulesEnabled reports whether the rules backend is on; defaults to true.
func (b *BackendsConfig) RulesEnabled() bool {
	return b.Rules.Enabled == nil || *b.Rules.Enabled
}

// Load reads and parses the config file at path, expands paths, applies defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.RulesDatabasePath = expandPath(cfg.Storage.RulesDatabasePath, configDir)
	if cfg.Keywords.SynonymsPath != "" {
		cfg.Keywords.SynonymsPath = expandPath(cfg.Keywords.SynonymsPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
	if len(cfg.Watch.DocTypes) > 0 {
		expanded := make(map[string]string, len(cfg.Watch.DocTypes))
		for dir, dt := range cfg.Watch.DocTypes {
			expanded[expandPath(dir, configDir)] = dt
		}
		cfg.Watch.DocTypes = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration that would make every dispatch fail.
func (c *Config) Validate() error {
	if !c.Backends.FullTextEnabled() && !c.Backends.Web.Enabled && !c.Backends.RulesEnabled() {
		return errors.New("no search backend enabled")
	}
	if c.Backends.Web.Enabled && c.Backends.Web.Endpoint == "" {
		return errors.New("backends.web.endpoint is required when web search is enabled")
	}
	if c.Backends.RulesEnabled() {
		if len(c.Backends.Rules.Fields) == 0 {
			return errors.New("backends.rules.fields must list at least one field")
		}
		for _, f := range c.Backends.Rules.Fields {
			if !ruleFieldAllowed(f) {
				return fmt.Errorf("%w: %q", ErrInvalidField, f)
			}
		}
	}
	if c.Indexing.ChunkOverlap >= c.Indexing.ChunkSize && c.Indexing.ChunkSize > 0 {
		return errors.New("indexing.chunk_overlap must be smaller than indexing.chunk_size")
	}
	if c.Backends.FullText.Fuzziness < 0 || c.Backends.FullText.Fuzziness > 2 {
		return errors.New("backends.fulltext.fuzziness must be between 0 and 2")
	}
	if c.Keywords.TypoDistance < 0 || c.Keywords.TypoDistance > 2 {
		return errors.New("keywords.typo_distance must be between 0 and 2")
	}
	for label := range c.Retrieval.Hierarchy {
		if models.ParseDocType(label) == models.DocTypeUnset {
			return fmt.Errorf("retrieval.hierarchy: unknown doc type %q", label)
		}
	}
	return nil
}

func ruleFieldAllowed(f string) bool {
	for _, allowed := range RuleSearchFields {
		if f == allowed {
			return true
		}
	}
	return false
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
