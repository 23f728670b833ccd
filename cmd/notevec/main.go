// Package main is the notevec CLI entry point.
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

	"github.com/hyperjump/notevec/internal/cli"
	"github.com/hyperjump/notevec/internal/config"
	"github.com/hyperjump/notevec/internal/embedding"
	"github.com/hyperjump/notevec/internal/gate"
	"github.com/hyperjump/notevec/internal/indexer"
	"github.com/hyperjump/notevec/internal/models"
	"github.com/hyperjump/notevec/internal/search"
	"github.com/hyperjump/notevec/internal/server"
	"github.com/hyperjump/notevec/internal/storage"
	"github.com/hyperjump/notevec/internal/vault"
	"github.com/hyperjump/notevec/internal/vector"
	"github.com/hyperjump/notevec/internal/watcher"
	"github.com/hyperjump/notevec/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/notevec/config.yaml"
	defaultServerURL  = "http://localhost:8090"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development). When neither file exists
// the built-in defaults are used, relative to the current directory.
// Environment overrides are applied last, then the result is validated.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	cfg, resolved, err := readConfig(path)
	if err != nil {
		return nil, "", err
	}
	config.ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, resolved, nil
}

func readConfig(path string) (*config.Config, string, error) {
	if path != defaultConfigPath {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
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
	if _, statErr := os.Stat(path); statErr == nil {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	for _, p := range []*string{&cfg.Storage.IndexPath, &cfg.Storage.DatabasePath, &cfg.Vault.Directory} {
		if abs, err := filepath.Abs(*p); err == nil {
			*p = abs
		}
	}
	return cfg, "", nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "rebuild":
		runRebuild()
	case "status":
		runStatus()
	case "reset":
		runReset()
	case "version", "--version", "-v":
		fmt.Printf("notevec version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads the config and builds the logger shared by every local command.
func setup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	for _, w := range cfg.Warnings() {
		logger.Warn("config warning", zap.String("warning", w))
	}
	return cfg, resolved, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (file events, indexing, etc.)")
	rebuild := fs.Bool("rebuild", false, "rebuild the whole vault in the background after start")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *debug)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchSvc := watcher.NewWatcher(components.Vault, watcher.WithLogger(logger))
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		components.Indexer.Run(ctx, watchSvc.Events())
	}()

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Store,
		components.Meta,
		cfg,
		logger,
		server.WithReadiness(components.Gate),
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()
	if *rebuild || components.Store.Len() == 0 {
		srv.StartRebuild()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			break
		}
		reloadSettings(ctx, components, *configPath, logger)
	}

	logger.Info("Shutting down...")
	components.Indexer.Cancel()
	watchSvc.Stop()
	cancel()
	<-runDone
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: notevec search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Results are chunks of notes ranked by cosine similarity to the query.
  • --min-score overrides search.threshold from the config (0..1).
  • --limit overrides search.max_results (at most %d).

Examples:
  notevec search goroutine leaks
  notevec search "goroutine leaks"                 # same as above
  notevec search --min-score 0.3 --limit 20 sourdough starter
  notevec search --server "" --output json query   # read the index directly
`, models.MaxLimit)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "notevec search \"query\" -limit 5"
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

// flagWasSet reports whether name was given explicitly on the command line.
func flagWasSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the index directly)")
	limit := fs.Int("limit", 0, "number of results (0 = search.max_results)")
	minScore := fs.Float64("min-score", 0, "minimum similarity (default search.threshold)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	searchQuery := &models.SearchQuery{Query: queryStr, Limit: *limit}
	if flagWasSet(fs, "min-score") {
		searchQuery.MinScore = minScore
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		response, err = searchViaHTTP(*serverURL, searchQuery)
	} else {
		response, err = searchDirect(*configPath, searchQuery)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchDirect(configPath string, query *models.SearchQuery) (*models.SearchResponse, error) {
	cfg, _, logger := setup(configPath, false)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	response, err := components.Engine.Search(context.Background(), query)
	if errors.Is(err, search.ErrIndexEmpty) {
		return &models.SearchResponse{
			Query:   query.Query,
			Results: []*models.SearchHit{},
			Message: "index is empty, run `notevec rebuild` first",
		}, nil
	}
	return response, err
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// serverError turns a non-2xx API response into an error, preferring the JSON error message.
func serverError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func runRebuild() {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "ask a running server to rebuild instead of indexing here")
	outputFormat := fs.String("output", "text", "summary format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *serverURL != "" {
		if err := postAction(*serverURL+"/api/v1/index/rebuild", http.StatusAccepted); err != nil {
			fmt.Fprintf(os.Stderr, "Rebuild failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Rebuild started on server")
		return
	}

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	// Ctrl-C cancels the run; the previous index stays in place.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress indexer.ProgressFunc
	if format == cli.OutputText {
		progress = cli.ProgressPrinter(os.Stderr)
	}
	summary, err := components.Indexer.RebuildVault(ctx, progress)
	if summary != nil {
		if werr := cli.WriteRunSummary(os.Stdout, summary, format); werr != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", werr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Rebuild failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the index directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status *models.Status
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		status, err = statusDirect(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusDirect(configPath string) (*models.Status, error) {
	cfg, _, logger := setup(configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// populate the readiness state; the outcome is reported, not fatal
	_, _ = components.Gate.EnsureReady(ctx, true)
	return server.BuildStatus(ctx, components.Store, components.Indexer, components.Meta, components.Gate, cfg)
}

func statusViaHTTP(serverURL string) (*models.Status, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}
	var s models.Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runReset() {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "ask a running server to clear its index")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/index", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Reset failed: %v\n", serverError(resp))
			os.Exit(1)
		}
		fmt.Println("Index cleared")
		return
	}

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()
	if err := components.Indexer.Clear(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Reset failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Index cleared")
}

func postAction(url string, want int) error {
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return serverError(resp)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Store    *vector.Store
	Meta     *storage.SQLiteStorage
	Client   *embedding.OllamaClient
	Embedder embedding.Embedder
	Gate     *gate.Gate
	Vault    *vault.Vault
	Engine   *search.Engine
	Indexer  *indexer.Indexer
}

func (c *Components) Close() {
	if c.Meta != nil {
		_ = c.Meta.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	meta, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	store := vector.NewStore(cfg.Storage.IndexPath, vector.WithStoreLogger(logger))
	n := store.Load()
	logger.Info("index loaded", zap.String("path", cfg.Storage.IndexPath), zap.Int("records", n))

	client := embedding.NewOllamaClient(
		cfg.Embedding.ServiceURL,
		cfg.Embedding.ModelName,
		time.Duration(cfg.Embedding.TimeoutSecs)*time.Second,
		embedding.WithLogger(logger),
	)
	embedder := embedding.NewCachedEmbedder(client, cfg.Embedding.CacheSize)
	readiness := gate.New(client, gate.WithLogger(logger))

	v, err := vault.New(cfg.Vault.Directory, cfg.Vault.Extensions, cfg.Vault.RecursiveOrDefault())
	if err != nil {
		_ = meta.Close()
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}

	engine := search.NewEngine(store, embedder, readiness, &cfg.Search, logger)
	idx := indexer.NewIndexer(store, embedder, v, &cfg.Chunking,
		indexer.WithLogger(logger),
		indexer.WithGate(readiness),
		indexer.WithMetaStore(meta),
		indexer.WithDebounce(time.Duration(cfg.Vault.FileProcessingDebounceMs)*time.Millisecond),
	)

	warnOnModelChange(context.Background(), meta, cfg, logger)

	return &Components{
		Store:    store,
		Meta:     meta,
		Client:   client,
		Embedder: embedder,
		Gate:     readiness,
		Vault:    v,
		Engine:   engine,
		Indexer:  idx,
	}, nil
}

// ApplyEmbeddingSettings points the embedding client at new settings and reports whether
// anything changed. The gate reads its endpoint from the client, so a change resets the
// cached readiness and the next check runs against the new service and model.
func (c *Components) ApplyEmbeddingSettings(ec config.EmbeddingConfig) bool {
	serviceURL, model := c.Client.Endpoint()
	if strings.TrimRight(ec.ServiceURL, "/") == serviceURL && ec.ModelName == model {
		return false
	}
	c.Client.Configure(ec.ServiceURL, ec.ModelName)
	return true
}

// reloadSettings re-reads the config on SIGHUP and applies the embedding settings.
// Other sections need a restart.
func reloadSettings(ctx context.Context, components *Components, configPath string, logger *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		logger.Warn("config reload failed, keeping current settings", zap.Error(err))
		return
	}
	if !components.ApplyEmbeddingSettings(cfg.Embedding) {
		logger.Info("config reloaded, embedding settings unchanged", zap.String("config_path", resolved))
		return
	}
	logger.Info("embedding settings changed",
		zap.String("config_path", resolved),
		zap.String("service_url", cfg.Embedding.ServiceURL),
		zap.String("model", cfg.Embedding.ModelName),
	)
	warnOnModelChange(ctx, components.Meta, cfg, logger)
}

// warnOnModelChange logs when the persisted index was built with another model;
// its vectors will not match queries until the vault is rebuilt.
func warnOnModelChange(ctx context.Context, meta storage.MetaStore, cfg *config.Config, logger *zap.Logger) {
	m, err := meta.GetIndexMetadata(ctx)
	if err != nil || m.Model == "" || m.Model == cfg.Embedding.ModelName {
		return
	}
	logger.Warn("index was built with a different embedding model; run `notevec rebuild`",
		zap.String("indexed_model", m.Model),
		zap.String("configured_model", cfg.Embedding.ModelName),
	)
}

func printUsage() {
	fmt.Println(`notevec - Local semantic search over a notes vault

Usage:
  notevec server [flags]           Start the HTTP server and watch the vault
  notevec search [flags] <query>   Search notes
  notevec rebuild [flags]          Re-index the whole vault
  notevec status [flags]           Show index and embedding service status
  notevec reset [flags]            Delete the index
  notevec version                  Show version
  notevec help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/notevec/config.yaml)
  --debug            Enable debug logging (file events, indexing, etc.)
  --rebuild          Rebuild the vault after start (always done when the index is empty)

Search Flags:
  --config string      Config file path (direct mode)
  --server string      Server URL (default: http://localhost:8090). Use --server "" to read the index directly.
  --limit int          Number of results (default: search.max_results)
  --min-score float    Minimum similarity (default: search.threshold)
  --output string      Output format: text, compact, or json (default: text)

Rebuild Flags:
  --config string    Config file path
  --server string    Ask a running server to rebuild instead
  --output string    Summary format: text or json (default: text)

Status Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8090). Use --server "" for direct mode.
  --output string    Output format: text or json (default: text)

Reset Flags:
  --config string    Config file path
  --server string    Ask a running server to clear its index instead

Environment:
  NOTEVEC_SERVICE_URL, NOTEVEC_MODEL_NAME, NOTEVEC_VAULT_DIR override the config file.
  A .env file in the current directory is loaded first.

Examples:
  notevec server
  notevec rebuild
  notevec search "sourdough starter"
  notevec search --output json "query"   # structured JSON for other apps
  notevec status --output json
  notevec reset --server http://localhost:8090`)
}
