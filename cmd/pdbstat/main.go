// Package main is the pdbstat CLI entry point.
package main

import (
	"context"
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

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hyperjump/pdbstat/internal/cli"
	"github.com/hyperjump/pdbstat/internal/config"
	"github.com/hyperjump/pdbstat/internal/core"
	"github.com/hyperjump/pdbstat/internal/fileid"
	"github.com/hyperjump/pdbstat/internal/ingest"
	"github.com/hyperjump/pdbstat/internal/keyword"
	"github.com/hyperjump/pdbstat/internal/metrics"
	"github.com/hyperjump/pdbstat/internal/models"
	"github.com/hyperjump/pdbstat/internal/report"
	"github.com/hyperjump/pdbstat/internal/search"
	"github.com/hyperjump/pdbstat/internal/server"
	"github.com/hyperjump/pdbstat/internal/storage"
	"github.com/hyperjump/pdbstat/internal/watcher"
	"github.com/hyperjump/pdbstat/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/pdbstat/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// A missing default config is not an error: built-in defaults apply.
// Environment overrides are applied last in every case.
// Returns the config and the path that was actually loaded (empty when none was).
func loadConfig(path string) (*config.Config, string, error) {
	cfg, resolved, err := readConfig(path)
	if err != nil {
		return nil, "", err
	}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}

func readConfig(path string) (*config.Config, string, error) {
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
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
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
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "validate":
		runValidate()
	case "analyze":
		runAnalyze()
	case "compare":
		runCompare()
	case "history":
		runHistory()
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "delete":
		runDelete()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("pdbstat version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds a logger. The debug flag, when set, wins over config.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Debug = cfg.Debug || debug
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (validation, ingest, directory changes)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *debug)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug),
		zap.String("addr", cfg.Server.Addr()),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchSvc := watcher.New(
		components.Ingester,
		cfg.Watch.Directories,
		cfg.Watch.RecursiveOrDefault(),
		watcher.WithLogger(logger),
		watcher.WithFilter(components.Engine.ExtensionAllowed),
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Engine,
		components.Ingester,
		components.Searcher,
		components.Storage,
		cfg,
		logger,
		server.WithWatch(watchSvc, resolvedConfigPath),
		server.WithKeywordIndex(components.KeywordIndex),
		server.WithGatherer(components.Registry),
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
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// reorderArgs moves any flags (and their values) that appear after the positional
// arguments to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so "pdbstat analyze 1abc.pdb -format json"
// would otherwise leave -format unparsed.
func reorderArgs(args []string) []string {
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

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reportFormat checks a --format value against the report formats. xlsx
// cannot go to a terminal, so it requires an output file.
func reportFormat(format, out string) (string, error) {
	switch format {
	case report.FormatText, report.FormatJSON:
		return format, nil
	case report.FormatXLSX:
		if out == "" {
			return "", fmt.Errorf("xlsx output requires --out")
		}
		return format, nil
	default:
		return "", fmt.Errorf("unknown format %q (use text, json or xlsx)", format)
	}
}

// writeOutput renders v to the file at out, or to stdout when out is empty.
func writeOutput(v any, format, out string) error {
	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := report.Write(w, v, format); err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", out)
	}
	return nil
}

// readInput reads a structure file and checks it the way an upload is checked.
func readInput(engine *core.Engine, path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		fatalf("Failed to read %s: %v", path, err)
	}
	if ok, msg := engine.Validate(data, filepath.Base(path)); !ok {
		fatalf("%s: %s", path, msg)
	}
	return data
}

func runValidate() {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: pdbstat validate [flags] <file>...")
		os.Exit(1)
	}
	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	engine := core.NewEngine(cfg.Upload, core.WithLogger(logger))

	failed := false
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			failed = true
			continue
		}
		ok, msg := engine.Validate(data, filepath.Base(path))
		fmt.Printf("%s: %s\n", path, msg)
		if !ok {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func runAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	format := fs.String("format", report.FormatText, "report format: text, json or xlsx")
	out := fs.String("out", "", "write the report to this file instead of stdout")
	save := fs.Bool("save", false, "record the analysis in history")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Println("Usage: pdbstat analyze [flags] <file>")
		os.Exit(1)
	}
	f, err := reportFormat(*format, *out)
	if err != nil {
		fatalf("%v", err)
	}
	path := fs.Arg(0)
	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()

	var result any
	if *save {
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()
		data := readInput(components.Engine, path)
		rec, err := components.Ingester.IngestUpload(context.Background(), data, filepath.Base(path))
		if err != nil {
			fatalf("Analysis failed: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Saved analysis %s\n", rec.ID)
		result = rec.Summary
	} else {
		engine := core.NewEngine(cfg.Upload, core.WithLogger(logger))
		data := readInput(engine, path)
		summary, err := engine.Analyze(data, filepath.Base(path))
		if err != nil {
			fatalf("Analysis failed: %v", err)
		}
		result = summary
	}
	if err := writeOutput(result, f, *out); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runCompare() {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	format := fs.String("format", report.FormatText, "report format: text, json or xlsx")
	out := fs.String("out", "", "write the report to this file instead of stdout")
	save := fs.Bool("save", false, "record the comparison in history")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() != 2 {
		fmt.Println("Usage: pdbstat compare [flags] <file1> <file2>")
		os.Exit(1)
	}
	f, err := reportFormat(*format, *out)
	if err != nil {
		fatalf("%v", err)
	}
	path1, path2 := fs.Arg(0), fs.Arg(1)
	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()

	var result any
	if *save {
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()
		data1 := readInput(components.Engine, path1)
		data2 := readInput(components.Engine, path2)
		rec, err := components.Ingester.IngestComparison(context.Background(),
			data1, filepath.Base(path1), data2, filepath.Base(path2))
		if err != nil {
			fatalf("Comparison failed: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Saved comparison %s\n", rec.ID)
		result = rec.Comparison
	} else {
		engine := core.NewEngine(cfg.Upload, core.WithLogger(logger))
		data1 := readInput(engine, path1)
		data2 := readInput(engine, path2)
		cmp, err := engine.Compare(data1, filepath.Base(path1), data2, filepath.Base(path2))
		if err != nil {
			fatalf("Comparison failed: %v", err)
		}
		result = cmp
	}
	if err := writeOutput(result, f, *out); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// runHistory lists recorded analyses, or renders one of them when an id is given.
// It reads SQLite directly, which is safe while the server is running.
func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 20, "number of records")
	offset := fs.Int("offset", 0, "records to skip")
	outputFormat := fs.String("output", "text", "list output format: text or json")
	format := fs.String("format", report.FormatText, "report format when an id is given: text, json or xlsx")
	out := fs.String("out", "", "write the report to this file instead of stdout")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fatalf("Failed to open history: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if fs.NArg() > 0 {
		f, err := reportFormat(*format, *out)
		if err != nil {
			fatalf("%v", err)
		}
		rec, err := store.GetRecord(ctx, fs.Arg(0))
		if err != nil {
			fatalf("Lookup failed: %v", err)
		}
		payload := rec.Payload()
		if payload == nil {
			fatalf("Record %s has no stored result", rec.ID)
		}
		if err := writeOutput(payload, f, *out); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}

	of, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	records, err := store.ListRecords(ctx, *offset, *limit)
	if err != nil {
		fatalf("List failed: %v", err)
	}
	total, err := store.CountRecords(ctx)
	if err != nil {
		fatalf("Count failed: %v", err)
	}
	list := &cli.RecordList{Analyses: records, Total: total, Offset: *offset, Limit: *limit}
	if err := cli.WriteRecords(os.Stdout, list, of); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	recursive := fs.Bool("recursive", true, "descend into subdirectories")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: pdbstat ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fatalf("Failed to stat path: %v", err)
	}
	if info.IsDir() {
		n, err := components.Ingester.IngestDirectory(ctx, path, *recursive)
		if err != nil {
			fatalf("Ingesting directory failed: %v", err)
		}
		fmt.Printf("Ingested %d file(s) from %s\n", n, path)
		return
	}
	if err := components.Ingester.IngestFile(ctx, path); err != nil {
		fatalf("Ingest failed: %v", err)
	}
	absPath, _ := filepath.Abs(path)
	fmt.Printf("Structure recorded: %s\n", fileid.RecordID(absPath))
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: pdbstat search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Searches structure ids, file names, chain ids and residue names in analysis history.
When nothing matches, the search is retried once with --fuzzy.

Examples:
  pdbstat search 1abc
  pdbstat search --kind comparison lysozyme
  pdbstat search --fuzzy lysozime
`)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage when server is not running)")
	limit := fs.Int("limit", 10, "number of results")
	offset := fs.Int("offset", 0, "results to skip")
	kind := fs.String("kind", "", "restrict to analysis or comparison records")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	query := &models.SearchQuery{
		Query:  queryStr,
		Limit:  *limit,
		Offset: *offset,
		Fuzzy:  *fuzzy,
		Kind:   models.RecordKind(*kind),
	}

	var searchFn func(*models.SearchQuery) (*models.SearchResponse, error)
	if *serverURL != "" {
		// Use HTTP API when server is running (avoids Bleve lock conflict).
		searchFn = func(q *models.SearchQuery) (*models.SearchResponse, error) {
			return searchViaHTTP(*serverURL, q)
		}
	} else {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		searchFn = func(q *models.SearchQuery) (*models.SearchResponse, error) {
			return components.Searcher.Search(context.Background(), q)
		}
	}

	response, err := searchFn(query)
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	// Auto-retry with fuzzy if no results and fuzzy not already enabled
	if !query.Fuzzy && response.Total == 0 {
		query.Fuzzy = true
		if fuzzyResponse, fuzzyErr := searchFn(query); fuzzyErr == nil && fuzzyResponse.Total > 0 {
			response = fuzzyResponse
		}
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: pdbstat delete [flags] <record-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	if *serverURL != "" {
		if err := deleteViaHTTP(*serverURL, id); err != nil {
			fatalf("Deletion failed: %v", err)
		}
		fmt.Printf("Record deleted: %s\n", id)
		return
	}

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := components.Ingester.DeleteRecord(context.Background(), id); err != nil {
		fatalf("Deletion failed: %v", err)
	}
	fmt.Printf("Record deleted: %s\n", id)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	var status *cli.Status
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()
		status, err = components.status(context.Background(), cfg)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: pdbstat watch <add|remove|list> [path]")
		fmt.Println("  pdbstat watch add <path>     Add inbox directory")
		fmt.Println("  pdbstat watch remove <path>  Remove inbox directory")
		fmt.Println("  pdbstat watch list           List inbox directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(reorderArgs(os.Args[3:]))
	switch sub {
	case "add", "remove":
		if fs.NArg() < 1 {
			fmt.Printf("Usage: pdbstat watch %s <path>\n", sub)
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if sub == "add" {
			if err := addWatchViaHTTP(*serverURL, path); err != nil {
				fatalf("Add failed: %v", err)
			}
			fmt.Printf("Added: %s\n", path)
			return
		}
		if err := removeWatchViaHTTP(*serverURL, path); err != nil {
			fatalf("Remove failed: %v", err)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		dirs, err := listWatchViaHTTP(*serverURL)
		if err != nil {
			fatalf("List failed: %v", err)
		}
		for _, d := range dirs {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	KeywordIndex keyword.KeywordIndex
	Engine       *core.Engine
	Ingester     *ingest.Ingester
	Searcher     *search.Engine
	Registry     *prometheus.Registry
}

func (c *Components) Close() {
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func (c *Components) status(ctx context.Context, cfg *config.Config) (*cli.Status, error) {
	count, err := c.Storage.CountRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	st := &cli.Status{
		Records: count,
		Upload: cli.UploadStatus{
			AllowedExtensions: c.Engine.AllowedExtensions(),
			MaxFileSizeBytes:  c.Engine.MaxFileSize(),
			MaxFileSize:       humanBytes(c.Engine.MaxFileSize()),
		},
		WatchDirectories: cfg.Watch.Directories,
		Config: &cli.StoragePaths{
			DatabasePath:   cfg.Storage.DatabasePath,
			BleveIndexPath: cfg.Storage.BleveIndexPath,
		},
	}
	if n, err := c.KeywordIndex.DocCount(); err == nil {
		st.IndexedRecords = &n
	}
	if usage, err := storage.MeasureUsage(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); err == nil {
		total := usage.Total()
		st.DiskUsageBytes = &total
		st.DiskUsage = humanBytes(total)
		st.Usage = &usage
	}
	return st, nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	engine := core.NewEngine(cfg.Upload,
		core.WithLogger(logger),
		core.WithMetrics(metrics.New(registry)),
	)

	return &Components{
		Storage:      store,
		KeywordIndex: keywordIndex,
		Engine:       engine,
		Ingester:     ingest.New(engine, store, keywordIndex, ingest.WithLogger(logger)),
		Searcher:     search.NewEngine(store, keywordIndex, search.WithLogger(logger)),
		Registry:     registry,
	}, nil
}

func printUsage() {
	fmt.Println(`pdbstat - PDB structure analysis and comparison

Usage:
  pdbstat server [flags]                   Start the HTTP server
  pdbstat validate [flags] <file>...       Check files against the upload rules
  pdbstat analyze [flags] <file>           Analyze one structure
  pdbstat compare [flags] <file1> <file2>  Compare two structures
  pdbstat history [flags] [id]             List recorded analyses, or render one
  pdbstat ingest [flags] <file-or-dir>     Analyze and record files on disk
  pdbstat search [flags] <query>           Search analysis history
  pdbstat delete [flags] <id>              Delete a recorded analysis
  pdbstat status [flags]                   Show storage/index status
  pdbstat watch <add|remove|list>          Manage inbox directories
  pdbstat version                          Show version
  pdbstat help                             Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/pdbstat/config.yaml)

Server Flags:
  --debug            Enable debug logging

Analyze/Compare Flags:
  --format string    Report format: text, json or xlsx (default: text)
  --out string       Write the report to a file (required for xlsx)
  --save             Record the result in history

History Flags:
  --limit int        Number of records (default: 20)
  --offset int       Records to skip
  --output string    List output format: text or json (default: text)
  --format string    Report format when an id is given

Search Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --limit int        Number of results (default: 10)
  --kind string      analysis or comparison
  --fuzzy            Enable fuzzy matching for typo tolerance
  --output string    Output format: text or json (default: text)

Status Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

Environment:
  PDBSTAT_ALLOWED_EXTENSIONS, PDBSTAT_MAX_FILE_SIZE, PDBSTAT_SCRATCH_DIR,
  PDBSTAT_DEBUG, PDBSTAT_SERVER_HOST, PDBSTAT_SERVER_PORT,
  PDBSTAT_DATABASE_PATH, PDBSTAT_BLEVE_INDEX_PATH (also read from ./.env)

Examples:
  pdbstat server
  pdbstat validate 1abc.pdb
  pdbstat analyze --format json 1abc.pdb
  pdbstat compare --format xlsx --out diff.xlsx 1abc.pdb 2xyz.pdb
  pdbstat ingest ./structures
  pdbstat search 1abc
  pdbstat history --limit 5
  pdbstat watch add /path/to/inbox`)
}

func humanBytes(n int64) string {
	return humanize.IBytes(uint64(n))
}
