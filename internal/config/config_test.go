package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Embedding.Dimensions != 64 {
		t.Errorf("Dimensions = %d, want 64", cfg.Embedding.Dimensions)
	}
	if cfg.Mastery.Alpha0 != 0.2 || cfg.Mastery.AlphaMin != 0.05 {
		t.Errorf("alpha defaults = (%v, %v)", cfg.Mastery.Alpha0, cfg.Mastery.AlphaMin)
	}
	if cfg.Mastery.PromoteStreak != 3 || cfg.Mastery.DemoteStreak != 2 {
		t.Errorf("streak thresholds = (%d, %d)", cfg.Mastery.PromoteStreak, cfg.Mastery.DemoteStreak)
	}
	if cfg.Recommend.SimilarityWeight+cfg.Recommend.StyleWeight != 1.0 {
		t.Errorf("default rank weights should sum to 1, got %v + %v",
			cfg.Recommend.SimilarityWeight, cfg.Recommend.StyleWeight)
	}
	if cfg.Topic.DefaultMin != 1 || cfg.Topic.DefaultMax != 10 || cfg.Topic.DefaultStart != 3 {
		t.Errorf("topic defaults = %+v", cfg.Topic)
	}
}

func TestApplyDefaults_PreservesExisting(t *testing.T) {
	cfg := Config{}
	cfg.Server.Port = 9999
	cfg.Mastery.PromoteCutoff = 0.9
	ApplyDefaults(&cfg)

	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Mastery.PromoteCutoff != 0.9 {
		t.Errorf("PromoteCutoff = %v, want 0.9", cfg.Mastery.PromoteCutoff)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  port: 7700
storage:
  database_path: ./data/engine.db
embedding:
  dimensions: 8
mastery:
  alpha_0: 0.3
  alpha_min: 0.3
watch:
  directories:
    - ./curriculum
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
	if cfg.Server.Port != 7700 {
		t.Errorf("Port = %d, want 7700", cfg.Server.Port)
	}
	if cfg.Embedding.Dimensions != 8 {
		t.Errorf("Dimensions = %d, want 8", cfg.Embedding.Dimensions)
	}
	if cfg.Mastery.Alpha0 != 0.3 || cfg.Mastery.AlphaMin != 0.3 {
		t.Errorf("alpha = (%v, %v), want (0.3, 0.3)", cfg.Mastery.Alpha0, cfg.Mastery.AlphaMin)
	}
	// relative ./ paths expand against the config dir
	want := filepath.Join(dir, "data/engine.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("DatabasePath = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	if len(cfg.Watch.Directories) != 1 || cfg.Watch.Directories[0] != filepath.Join(dir, "curriculum") {
		t.Errorf("Watch.Directories = %v", cfg.Watch.Directories)
	}
	// defaults fill the rest
	if cfg.Style.MinEvents != 5 {
		t.Errorf("MinEvents = %d, want 5", cfg.Style.MinEvents)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
