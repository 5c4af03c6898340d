package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.AllowAutoCreateCategories {
		t.Fatalf("default allow auto create should be true")
	}
	if cfg.DefaultCategoryName != "default" {
		t.Fatalf("default category name")
	}
	if cfg.CategoryDefaults.Partitions != 16 {
		t.Fatalf("partitions default")
	}
	if cfg.Stream.ReplayBuffer != 256 {
		t.Fatalf("replay buffer default")
	}
	if cfg.Stream.LiveBuffer != 0 {
		t.Fatalf("live buffer should default to unbounded (0), got %d", cfg.Stream.LiveBuffer)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "seqflow.json")
	data := []byte(`{"allowAutoCreateCategories":false,"defaultCategoryName":"prod","categoryDefaults":{"partitions":32,"payloadMaxBytes":2048,"headersMaxBytes":1024}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AllowAutoCreateCategories {
		t.Fatalf("expected false")
	}
	if cfg.DefaultCategoryName != "prod" {
		t.Fatalf("expected prod")
	}
	if cfg.CategoryDefaults.Partitions != 32 {
		t.Fatalf("expected 32")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	os.Setenv("SEQFLOW_ALLOW_AUTO_CREATE_CATEGORIES", "false")
	os.Setenv("SEQFLOW_DEFAULT_CATEGORY_NAME", "staging")
	os.Setenv("SEQFLOW_CATEGORY_DEFAULTS_PARTITIONS", "24")
	os.Setenv("SEQFLOW_STREAM_WORKERS", "8")
	os.Setenv("SEQFLOW_STREAM_GAP_REPLAY_DELAY", "500ms")
	t.Cleanup(func() {
		os.Unsetenv("SEQFLOW_ALLOW_AUTO_CREATE_CATEGORIES")
		os.Unsetenv("SEQFLOW_DEFAULT_CATEGORY_NAME")
		os.Unsetenv("SEQFLOW_CATEGORY_DEFAULTS_PARTITIONS")
		os.Unsetenv("SEQFLOW_STREAM_WORKERS")
		os.Unsetenv("SEQFLOW_STREAM_GAP_REPLAY_DELAY")
	})
	FromEnv(&cfg)
	if cfg.AllowAutoCreateCategories {
		t.Fatalf("env override bool")
	}
	if cfg.DefaultCategoryName != "staging" {
		t.Fatalf("env override name")
	}
	if cfg.CategoryDefaults.Partitions != 24 {
		t.Fatalf("env override partitions")
	}
	if cfg.Stream.Workers != 8 {
		t.Fatalf("env override workers")
	}
	if cfg.Stream.GapReplayDelay.String() != "500ms" {
		t.Fatalf("env override gap replay delay, got %v", cfg.Stream.GapReplayDelay)
	}
}

func TestFsyncMode(t *testing.T) {
	cfg := Default()
	cfg.Fsync = "always"
	always := cfg.FsyncMode()
	cfg.Fsync = "never"
	never := cfg.FsyncMode()
	if always == never {
		t.Fatalf("expected distinct FsyncMode values for 'always' and 'never'")
	}
}
