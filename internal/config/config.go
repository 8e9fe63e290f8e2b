// Package config provides configuration loading and structs for the Ganitha server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Mastery   MasteryConfig   `yaml:"mastery"`
	Style     StyleConfig     `yaml:"style"`
	Recommend RecommendConfig `yaml:"recommend"`
	Topic     TopicConfig     `yaml:"topic"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and on-disk indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// EmbeddingConfig fixes the dimensionality of content embeddings.
// Embeddings themselves come from the curriculum-ingestion collaborator.
type EmbeddingConfig struct {
	Dimensions int `yaml:"dimensions"`
}

// MasteryConfig holds the mastery update rule and hysteresis thresholds.
// The update shape (bounded, monotone-stabilizing, hysteresis-gated) is the
// contract; the constants are tunable.
type MasteryConfig struct {
	Alpha0        float64 `yaml:"alpha_0"`        // initial learning rate
	AlphaMin      float64 `yaml:"alpha_min"`      // learning rate floor
	ConfidenceCap int     `yaml:"confidence_cap"` // observation count saturation
	PromoteStreak int     `yaml:"promote_streak"` // consecutive correct needed
	PromoteCutoff float64 `yaml:"promote_cutoff"` // minimum estimate to promote
	DemoteStreak  int     `yaml:"demote_streak"`  // consecutive incorrect needed
	DemoteCutoff  float64 `yaml:"demote_cutoff"`  // maximum estimate to demote
}

// StyleConfig holds the learning-style classifier settings.
type StyleConfig struct {
	TimePenalty float64 `yaml:"time_penalty"` // weight of normalized response time in the score
	Blend       float64 `yaml:"blend"`        // EMA weight on the fresh distribution
	MinEvents   int     `yaml:"min_events"`   // below this the update is a no-op
	WindowSize  int     `yaml:"window_size"`  // rolling event window per student
}

// RecommendConfig holds recommendation band and ranking weights.
type RecommendConfig struct {
	BandWidth           int     `yaml:"band_width"`           // difficulty band half-width around current
	SeedHistory         int     `yaml:"seed_history"`         // recent correct answers forming the seed centroid
	CandidateMultiplier int     `yaml:"candidate_multiplier"` // k = count * multiplier for the index query
	SimilarityWeight    float64 `yaml:"similarity_weight"`    // w1
	StyleWeight         float64 `yaml:"style_weight"`         // w2
}

// TopicConfig provides the difficulty range used for unregistered topics.
type TopicConfig struct {
	DefaultMin   int `yaml:"default_min"`
	DefaultMax   int `yaml:"default_max"`
	DefaultStart int `yaml:"default_start"`
}

// WatchConfig holds curriculum drop-directory settings. Content JSON files
// written into these directories are ingested automatically.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
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
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
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
