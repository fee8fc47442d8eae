// Package main is the otoshimono CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/otoshimono/internal/archive"
	"github.com/hyperjump/otoshimono/internal/cli"
	"github.com/hyperjump/otoshimono/internal/config"
	"github.com/hyperjump/otoshimono/internal/intake"
	"github.com/hyperjump/otoshimono/internal/keyword"
	"github.com/hyperjump/otoshimono/internal/mail"
	"github.com/hyperjump/otoshimono/internal/matching"
	"github.com/hyperjump/otoshimono/internal/server"
	"github.com/hyperjump/otoshimono/internal/storage"
	"github.com/hyperjump/otoshimono/internal/watcher"
	"github.com/hyperjump/otoshimono/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/otoshimono/config.yaml"

// loadConfig loads config from path. When path is the default and config.yaml
// exists in the current directory, that file is used instead (development).
// Returns the config and the path that was actually loaded.
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
	case "match":
		runMatch()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("otoshimono version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds the wired services shared by all commands.
type Components struct {
	Storage  *storage.SQLiteStorage
	Index    *keyword.BleveIndex
	Engine   *matching.Engine
	Importer *intake.Importer
}

// Close waits for background matching runs, then releases storage and index.
func (c *Components) Close() {
	if c.Engine != nil {
		c.Engine.Wait()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	index, err := keyword.NewBleveIndex(cfg.Storage.SearchIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize search index: %w", err)
	}

	engine := matching.NewEngine(matching.Collaborators{
		Items:         store,
		Users:         store,
		Notifications: store,
		Mailer:        mail.New(&cfg.Email, logger),
	}, &cfg.Matching, logger)

	importer := intake.NewImporter(store, index, engine, intake.Defaults{
		CampusID: cfg.Intake.DefaultCampusID,
		PostedBy: cfg.Intake.PostedBy,
	}, logger)

	return &Components{
		Storage:  store,
		Index:    index,
		Engine:   engine,
		Importer: importer,
	}, nil
}

func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, *Components) {
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
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.Intake.Directories) > 0 {
		w := watcher.New(cfg.Intake.Directories, cfg.Intake.Extensions, func(path string) {
			if _, err := components.Importer.ImportFile(ctx, path); err != nil {
				logger.Warn("intake import failed", zap.String("path", path), zap.Error(err))
			}
		}, watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start intake watcher", zap.Error(err))
		}
		defer w.Stop()
		go w.SyncExisting()
	}

	if !cfg.Archive.Disabled {
		archiver := archive.NewArchiver(components.Storage, components.Index, cfg.Matching.MaxRecencyWindow(), logger)
		scheduler := archive.NewScheduler(archiver, cfg.Archive.Schedule, logger)
		if err := scheduler.Start(ctx); err != nil {
			logger.Fatal("Failed to start archive scheduler", zap.Error(err))
		}
		defer scheduler.Stop()
	}

	srv := server.NewServer(components.Storage, components.Index, components.Engine, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// argsReorder moves flags that follow the positional argument to the front so
// flag.Parse sees them ("match item-1 -dry-run").
func argsReorder(args []string) []string {
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

func runMatch() {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dryRun := fs.Bool("dry-run", false, "rank matches without sending notifications or emails")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: otoshimono match [flags] <item-id>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	item, err := components.Storage.GetItem(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load item: %v\n", err)
		os.Exit(1)
	}

	var matches []matching.MatchCandidate
	if *dryRun {
		matches = components.Engine.Preview(ctx, item, item.Type)
	} else {
		matches = components.Engine.RunMatching(ctx, item, item.Type)
	}
	report := &cli.MatchReport{Item: item, DryRun: *dryRun, Matches: matches}
	if err := cli.WriteMatches(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: otoshimono import [flags] <file>")
		os.Exit(1)
	}
	path, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid path: %v\n", err)
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	res, err := components.Importer.ImportFile(context.Background(), path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("imported: %d  skipped: %d  invalid: %d\n", res.Imported, res.Skipped, res.Invalid)
}

type statusResponse struct {
	Items          int64                  `json:"items"`
	Notifications  int64                  `json:"notifications"`
	IndexedItems   uint64                 `json:"indexed_items"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		status, err = statusDirect(context.Background(), cfg, components)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}

	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	writeStatusText(os.Stdout, &status)
}

func statusDirect(ctx context.Context, cfg *config.Config, c *Components) (statusResponse, error) {
	var status statusResponse
	var err error
	if status.Items, err = c.Storage.CountItems(ctx); err != nil {
		return status, fmt.Errorf("count items: %w", err)
	}
	if status.Notifications, err = c.Storage.CountNotifications(ctx); err != nil {
		return status, fmt.Errorf("count notifications: %w", err)
	}
	if status.IndexedItems, err = c.Index.DocCount(); err != nil {
		return status, fmt.Errorf("count indexed items: %w", err)
	}
	if n, err := storage.Footprint(cfg.Storage.DatabasePath, cfg.Storage.SearchIndexPath); err == nil {
		status.DiskUsageBytes = &n
	}
	status.Config = map[string]interface{}{
		"notify_threshold":  cfg.Matching.NotifyThreshold,
		"email_threshold":   cfg.Matching.EmailThreshold,
		"database_path":     cfg.Storage.DatabasePath,
		"search_index_path": cfg.Storage.SearchIndexPath,
	}
	return status, nil
}

func writeStatusText(w io.Writer, s *statusResponse) {
	fmt.Fprintf(w, "items:              %d   # lost and found reports\n", s.Items)
	fmt.Fprintf(w, "notifications:      %d   # match notifications created\n", s.Notifications)
	fmt.Fprintf(w, "indexed_items:      %d   # items in the search index\n", s.IndexedItems)
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database + index on disk\n", *s.DiskUsageBytes)
	}
	if v, ok := s.Config["notify_threshold"]; ok {
		fmt.Fprintf(w, "notify_threshold:   %v\n", v)
	}
	if v, ok := s.Config["email_threshold"]; ok {
		fmt.Fprintf(w, "email_threshold:    %v\n", v)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func printUsage() {
	fmt.Println(`otoshimono - campus lost & found matching service

Usage:
  otoshimono server [flags]             Start the HTTP server and intake watcher
  otoshimono match [flags] <item-id>    Run matching for a stored item
  otoshimono import [flags] <file>      Import a found-item log (.json, .yaml, .xlsx)
  otoshimono status [flags]             Show item, notification, and index counts
  otoshimono version                    Show version
  otoshimono help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/otoshimono/config.yaml)
  --debug            Enable debug logging

Match Flags:
  --config string    Config file path
  --dry-run          Rank matches without sending notifications or emails
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  otoshimono server
  otoshimono match --dry-run 3f1c2a9e-...
  otoshimono match --output json 3f1c2a9e-...
  otoshimono import ./desk/found-2026-10.xlsx
  otoshimono status --server ""`)
}
