// Package main is the ganitha CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ganitha/ganitha/internal/config"
	"github.com/ganitha/ganitha/internal/engine"
	"github.com/ganitha/ganitha/internal/keyword"
	"github.com/ganitha/ganitha/internal/models"
	"github.com/ganitha/ganitha/internal/server"
	"github.com/ganitha/ganitha/internal/storage"
	"github.com/ganitha/ganitha/internal/watcher"
	"github.com/ganitha/ganitha/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ganitha/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so running from the project dir
// picks up the project's config. Returns the config and the path actually used.
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
	case "ingest":
		runIngest()
	case "recommend":
		runRecommend()
	case "mastery":
		runMastery()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("ganitha version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ganitha - adaptive learning engine

Usage:
  ganitha server    [-config path] [-debug]        start the HTTP API server
  ganitha ingest    [-config path] <file-or-dir>   load curriculum JSON files
  ganitha recommend [-server url] -student id -topic id [-count n]
  ganitha mastery   [-server url] -student id -topic id
  ganitha status    [-server url] [-output text|json]
  ganitha version`)
}

// components holds the wired engine and its collaborators.
type components struct {
	Storage storage.Storage
	Catalog *keyword.Index
	Engine  *engine.Engine
}

func (c *components) Close() {
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{}

	if cfg.Storage.DatabasePath != "" {
		st, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		c.Storage = st
	}
	if cfg.Storage.BleveIndexPath != "" {
		catalog, err := keyword.NewIndex(cfg.Storage.BleveIndexPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("open catalog index: %w", err)
		}
		c.Catalog = catalog
	}

	eng, err := engine.New(cfg, c.Storage, c.Catalog, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	if err := eng.LoadFromStorage(context.Background()); err != nil {
		c.Close()
		return nil, err
	}
	c.Engine = eng
	return c, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	loader := watcher.NewLoader(comps.Engine, logger)
	watchSvc := watcher.New(
		cfg.Watch.Directories,
		func(path string) {
			if err := loader.LoadFile(context.Background(), path); err != nil {
				logger.Warn("curriculum load failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			loader.RemoveFile(context.Background(), path)
		},
		logger,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 {
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExisting()
	}

	srv := server.NewServer(comps.Engine, comps.Storage, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if cfg.Storage.VectorIndexPath != "" {
		if err := comps.Engine.SaveIndex(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	watchCancel()
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// collectCurriculumFiles returns path itself when it is a JSON file, or every
// JSON file under it when it is a directory.
func collectCurriculumFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil, fmt.Errorf("%s is not a .json curriculum file", path)
		}
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.EqualFold(filepath.Ext(p), ".json") {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: ganitha ingest [flags] <file-or-directory>")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer comps.Close()

	files, err := collectCurriculumFiles(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "No curriculum files found under %s\n", fs.Arg(0))
		os.Exit(1)
	}

	loader := watcher.NewLoader(comps.Engine, logger)
	failed := 0
	for _, f := range files {
		if err := loader.LoadFile(context.Background(), f); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", f, err)
			failed++
		}
	}
	status := comps.Engine.Status()
	fmt.Printf("Ingested %d file(s): %d contents, %d topics\n",
		len(files)-failed, status.Contents, status.Topics)
	if cfg.Storage.VectorIndexPath != "" {
		if err := comps.Engine.SaveIndex(cfg.Storage.VectorIndexPath); err != nil {
			fmt.Fprintf(os.Stderr, "Vector index save failed: %v\n", err)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

type recommendResponse struct {
	StudentID       string                  `json:"student_id"`
	TopicID         string                  `json:"topic_id"`
	Recommendations []models.Recommendation `json:"recommendations"`
}

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local storage directly)")
	studentID := fs.String("student", "", "student ID")
	topicID := fs.String("topic", "", "topic ID")
	count := fs.Int("count", 5, "number of recommendations")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *studentID == "" || *topicID == "" {
		fmt.Println("Usage: ganitha recommend -student <id> -topic <id> [-count n]")
		os.Exit(1)
	}

	var resp recommendResponse
	if *serverURL != "" {
		path := fmt.Sprintf("/api/v1/students/%s/recommendations?topic=%s&count=%d",
			url.PathEscape(*studentID), url.QueryEscape(*topicID), *count)
		if err := getJSON(*serverURL+path, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		comps, logger := mustInitialize(*configPath)
		defer logger.Sync()
		defer comps.Close()
		recs, err := comps.Engine.Recommend(context.Background(), *studentID, *topicID, *count)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
			os.Exit(1)
		}
		resp = recommendResponse{StudentID: *studentID, TopicID: *topicID, Recommendations: recs}
	}

	switch *outputFormat {
	case "json":
		writeJSON(resp)
	case "text":
		fmt.Printf("Recommendations for %s in %s:\n", resp.StudentID, resp.TopicID)
		for i, r := range resp.Recommendations {
			fmt.Printf("%2d. %-24s score=%.3f  distance=%.3f  type=%-11s level=%d\n",
				i+1, r.ContentID, r.Score, r.Distance, r.Type, r.Difficulty)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runMastery() {
	fs := flag.NewFlagSet("mastery", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local storage directly)")
	studentID := fs.String("student", "", "student ID")
	topicID := fs.String("topic", "", "topic ID")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *studentID == "" || *topicID == "" {
		fmt.Println("Usage: ganitha mastery -student <id> -topic <id>")
		os.Exit(1)
	}

	var state models.MasteryState
	if *serverURL != "" {
		path := fmt.Sprintf("/api/v1/students/%s/mastery/%s",
			url.PathEscape(*studentID), url.PathEscape(*topicID))
		if err := getJSON(*serverURL+path, &state); err != nil {
			fmt.Fprintf(os.Stderr, "Mastery lookup failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		comps, logger := mustInitialize(*configPath)
		defer logger.Sync()
		defer comps.Close()
		state = comps.Engine.Mastery(*studentID, *topicID)
		state.StudentID = *studentID
		state.TopicID = *topicID
	}

	switch *outputFormat {
	case "json":
		writeJSON(state)
	case "text":
		fmt.Printf("student:     %s\n", *studentID)
		fmt.Printf("topic:       %s\n", *topicID)
		fmt.Printf("estimate:    %.4f\n", state.Estimate)
		fmt.Printf("confidence:  %d\n", state.Confidence)
		fmt.Printf("difficulty:  %d\n", state.Difficulty)
		fmt.Printf("streak:      %d\n", state.Streak)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status engine.Status
	if *serverURL != "" {
		var resp struct {
			Engine engine.Status `json:"engine"`
		}
		if err := getJSON(*serverURL+"/status", &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = resp.Engine
	} else {
		comps, logger := mustInitialize(*configPath)
		defer logger.Sync()
		defer comps.Close()
		status = comps.Engine.Status()
	}

	switch *outputFormat {
	case "json":
		writeJSON(status)
	case "text":
		fmt.Printf("contents:        %d\n", status.Contents)
		fmt.Printf("index_size:      %d\n", status.IndexSize)
		fmt.Printf("topics:          %d\n", status.Topics)
		fmt.Printf("mastery_states:  %d\n", status.MasteryStates)
		fmt.Printf("style_profiles:  %d\n", status.StyleProfiles)
		fmt.Printf("embedding_dims:  %d\n", status.EmbeddingDims)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// mustInitialize loads config, builds the logger, and wires components,
// exiting on any failure. Used by subcommands running without a server.
func mustInitialize(configPath string) (*components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return comps, logger
}

func getJSON(rawURL string, out interface{}) error {
	resp, err := http.Get(rawURL)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func writeJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}
