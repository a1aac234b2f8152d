// Package main is the Nexus CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/nexus/internal/cli"
	"github.com/hyperjump/nexus/internal/config"
	"github.com/hyperjump/nexus/internal/generation"
	"github.com/hyperjump/nexus/internal/models"
	"github.com/hyperjump/nexus/internal/server"
	"github.com/hyperjump/nexus/internal/watcher"
	"github.com/hyperjump/nexus/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/nexus/config.yaml"

const defaultServerURL = "http://localhost:8080"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if it exists, so "nexus server" run from a project
// directory picks up the project's config. Returns the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "retrieve":
		runRetrieve()
	case "ask":
		runAsk()
	case "compliance":
		runCompliance()
	case "index":
		runIndex()
	case "import-rules":
		runImportRules()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("nexus version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads the config, creates the logger and builds every component.
// Failures exit the process.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, resolved, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (dispatch branches, file indexing, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		components.Indexer,
		watcher.WithLogger(logger),
		watcher.WithDocTypeResolver(cfg.Watch.DocTypeFor),
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer watchSvc.Stop()
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Dispatcher,
		components.Answers,
		components.Indexer,
		components.Rules,
		&cfg.Server,
		logger,
		server.WithWatch(watchSvc),
		server.WithDataPaths(cfg.Storage.IndexPath, cfg.Storage.RulesDatabasePath),
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so `nexus retrieve "préavis" -limit 5`
// would otherwise leave -limit unparsed.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// parseOutputFormat maps the -output flag value to a cli.OutputFormat.
func parseOutputFormat(s string) (cli.OutputFormat, error) {
	switch s {
	case "text":
		return cli.OutputText, nil
	case "json":
		return cli.OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

// parseDocTypeFlag accepts an empty value (no filter) or any known doc type label.
func parseDocTypeFlag(s string) (models.DocType, error) {
	if strings.TrimSpace(s) == "" {
		return models.DocTypeUnset, nil
	}
	dt := models.ParseDocType(s)
	if dt == models.DocTypeUnset {
		return "", fmt.Errorf("unknown doc type %q; use law, cct or protocol", s)
	}
	return dt, nil
}

// queryFlags are shared by retrieve and ask.
type queryFlags struct {
	fs         *flag.FlagSet
	configPath *string
	serverURL  *string
	docType    *string
	limit      *int
	output     *string
	debug      *bool
}

func newQueryFlags(name string) *queryFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &queryFlags{
		fs:         fs,
		configPath: fs.String("config", defaultConfigPath, "config file path (direct mode)"),
		serverURL:  fs.String("server", defaultServerURL, "server URL (empty = open the index directly; stop the server first)"),
		docType:    fs.String("doc-type", "", "restrict to one doc type: law, cct or protocol"),
		limit:      fs.Int("limit", 0, "results per backend (0 = configured default)"),
		output:     fs.String("output", "text", "output format: text or json"),
		debug:      fs.Bool("debug", false, "enable debug logging (direct mode)"),
	}
}

// parse returns the query and output format, or exits with usage.
func (f *queryFlags) parse(args []string) (models.RetrievalQuery, cli.OutputFormat) {
	_ = f.fs.Parse(searchArgsReorder(args))
	queryStr := buildSearchQuery(f.fs.Args())
	if queryStr == "" {
		fmt.Fprintf(f.fs.Output(), "Usage: nexus %s [flags] <question>\n\n", f.fs.Name())
		f.fs.PrintDefaults()
		os.Exit(1)
	}
	format, err := parseOutputFormat(*f.output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	dt, err := parseDocTypeFlag(*f.docType)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return models.RetrievalQuery{Query: queryStr, DocType: dt, Limit: *f.limit}, format
}

func runRetrieve() {
	f := newQueryFlags("retrieve")
	showContext := f.fs.Bool("context", false, "print the assembled context block")
	q, format := f.parse(os.Args[2:])

	var ret models.Retrieval
	if *f.serverURL != "" {
		// HTTP avoids contending with the server for the Bleve and SQLite locks.
		if err := postJSON(*f.serverURL, "/api/v1/retrieve", q, &ret); err != nil {
			fmt.Fprintf(os.Stderr, "Retrieve failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, _, logger, components := setup(*f.configPath, *f.debug)
		defer logger.Sync()
		defer components.Close()
		r, err := components.Dispatcher.Dispatch(context.Background(), q)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Retrieve failed: %v\n", err)
			os.Exit(1)
		}
		ret = *r
	}
	if err := cli.WriteRetrieval(os.Stdout, &ret, format, *showContext); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAsk() {
	f := newQueryFlags("ask")
	q, format := f.parse(os.Args[2:])

	var ans generation.Answer
	if *f.serverURL != "" {
		if err := postJSON(*f.serverURL, "/api/v1/ask", q, &ans); err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, _, logger, components := setup(*f.configPath, *f.debug)
		defer logger.Sync()
		defer components.Close()
		a, err := components.Answers.Ask(context.Background(), q)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		ans = *a
	}
	if err := cli.WriteAnswer(os.Stdout, &ans, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runCompliance() {
	fs := flag.NewFlagSet("compliance", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open the index directly)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	question := buildSearchQuery(fs.Args())
	if question == "" {
		fmt.Println("Usage: nexus compliance [flags] <situation>")
		os.Exit(1)
	}
	format, err := parseOutputFormat(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var res generation.ComplianceResult
	if *serverURL != "" {
		if err := postJSON(*serverURL, "/api/v1/compliance", map[string]string{"question": question}, &res); err != nil {
			fmt.Fprintf(os.Stderr, "Compliance check failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		r, err := components.Answers.CheckCompliance(context.Background(), question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Compliance check failed: %v\n", err)
			os.Exit(1)
		}
		res = *r
	}
	if err := cli.WriteCompliance(os.Stdout, &res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// postJSON sends body to serverURL+path and decodes a 200 response into out.
func postJSON(serverURL, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func getJSON(serverURL, path string, out any) error {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	docTypeFlag := fs.String("doc-type", "", "doc type for every indexed file (default: from watch.doc_types)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: nexus index [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	docType, err := parseDocTypeFlag(*docTypeFlag)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	cfg, _, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, err := components.Indexer.IndexDirectory(ctx, path, cfg.Watch.Extensions, docType)
		if err != nil {
			// Per-file failures are reported but do not discard what was indexed.
			fmt.Printf("Some files failed: %v\n", err)
		}
		fmt.Printf("Indexed %d file(s) from %s\n", n, path)
		if err != nil {
			os.Exit(1)
		}
		return
	}
	n, err := components.Indexer.IndexFile(ctx, path, docType)
	if err != nil {
		fmt.Printf("Indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexed %d page(s) from %s\n", n, path)
}

func runImportRules() {
	fs := flag.NewFlagSet("import-rules", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: nexus import-rules [flags] <sheet.xlsx>")
		os.Exit(1)
	}

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	n, err := components.Indexer.ImportRules(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Printf("Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d rule(s) from %s\n", n, fs.Arg(0))
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	rule := fs.Bool("rule", false, "argument is a rule id instead of a file path")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: nexus delete [flags] <file-path | -rule rule-id>")
		os.Exit(1)
	}
	target := fs.Arg(0)

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if *rule {
		if err := components.Rules.Delete(ctx, target); err != nil {
			fmt.Printf("Deletion failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Rule deleted: %s\n", target)
		return
	}
	if err := components.Indexer.DeleteFile(ctx, target); err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", target)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open the index directly)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := parseOutputFormat(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	status := map[string]any{}
	if *serverURL != "" {
		if err := getJSON(*serverURL, "/api/v1/status", &status); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		stats, err := components.Indexer.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status["backends"] = components.Dispatcher.Backends()
		status["generation"] = components.Answers.HasGenerator()
		status["pages"] = stats.Pages
		status["rules"] = stats.Rules
		status["watch_directories"] = cfg.Watch.Directories
	}

	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
		return
	}
	writeStatusText(os.Stdout, status)
}

// writeStatusText prints status keys in a fixed order, skipping absent ones.
func writeStatusText(w io.Writer, status map[string]any) {
	for _, key := range []string{"backends", "generation", "pages", "rules", "watch_directories", "disk_usage_bytes"} {
		v, ok := status[key]
		if !ok {
			continue
		}
		if list, isList := v.([]any); isList {
			parts := make([]string, len(list))
			for i, item := range list {
				parts[i] = fmt.Sprint(item)
			}
			v = strings.Join(parts, ", ")
		} else if list, isList := v.([]string); isList {
			v = strings.Join(list, ", ")
		}
		fmt.Fprintf(w, "%-18s %v\n", key+":", v)
	}
}

func printUsage() {
	fmt.Println(`nexus - Legal retrieval and reconciliation engine

Usage:
  nexus server [flags]                 Start the HTTP server and directory watcher
  nexus retrieve [flags] <question>    Retrieve ranked sources and the context block
  nexus ask [flags] <question>         Answer a question from the retrieved sources
  nexus compliance [flags] <situation> Check a situation against the retrieved norms
  nexus index [flags] <file-or-dir>    Index documents into the page index
  nexus import-rules [flags] <xlsx>    Import a rule sheet into the rules store
  nexus delete [flags] <path>          Remove an indexed file (or -rule <id>)
  nexus status [flags]                 Show backends and index counts
  nexus version                        Show version
  nexus help                           Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/nexus/config.yaml, or ./config.yaml)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to open the index directly.

Retrieve/Ask Flags:
  --doc-type string  Restrict to law, cct or protocol
  --limit int        Results per backend (default from config)
  --output string    text or json (default: text)
  --context          Print the assembled context block (retrieve only)

Index Flags:
  --doc-type string  Doc type for every indexed file (default from watch.doc_types)

Examples:
  nexus server
  nexus retrieve "durée du préavis"
  nexus retrieve --doc-type cct --context "congé d'ancienneté"
  nexus ask "Combien de jours de congé pour un mariage ?"
  nexus compliance "Mon employeur refuse le congé de naissance"
  nexus index --doc-type law ./docs/lois
  nexus import-rules ./docs/protocoles.xlsx
  nexus status --output json`)
}
