package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Fsync != "always" {
		t.Fatalf("default fsync should be always")
	}
	if cfg.DedupWindow != 100 {
		t.Fatalf("default dedup window should be 100")
	}
	if cfg.GCBatchLimit != 1024 {
		t.Fatalf("default gc batch limit")
	}
}

func TestLoadJSON(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bridgeq.json")
	data := []byte(`{"dataDir":"/custom/data","fsync":"interval","dedupWindow":32,"log":{"level":"debug","format":"json"}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/custom/data" || cfg.Fsync != "interval" {
		t.Fatalf("json fields not applied: %+v", cfg)
	}
	if cfg.DedupWindow != 32 {
		t.Fatalf("expected 32")
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log config not applied: %+v", cfg.Log)
	}
	// unset fields keep defaults
	if cfg.ChannelBuffer != 64 {
		t.Fatalf("defaults should survive partial files")
	}
}

func TestLoadYAML(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bridgeq.yaml")
	data := []byte("dataDir: /tmp/bq\nfsync: never\ndedupWindow: 16\nlog:\n  level: warn\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/tmp/bq" || cfg.Fsync != "never" || cfg.DedupWindow != 16 {
		t.Fatalf("yaml fields not applied: %+v", cfg)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("nested yaml not applied: %+v", cfg.Log)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/non/existent/path/bridgeq.json"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("BRIDGEQ_DATA_DIR", "/env/data")
	t.Setenv("BRIDGEQ_FSYNC", "interval")
	t.Setenv("BRIDGEQ_DEDUP_WINDOW", "7")
	t.Setenv("BRIDGEQ_LOG_LEVEL", "error")
	FromEnv(&cfg)
	if cfg.DataDir != "/env/data" {
		t.Fatalf("env data dir")
	}
	if cfg.Fsync != "interval" {
		t.Fatalf("env fsync")
	}
	if cfg.DedupWindow != 7 {
		t.Fatalf("env dedup window")
	}
	if cfg.Log.Level != "error" {
		t.Fatalf("env log level")
	}
}

func TestDefaultDataDirNeverEmpty(t *testing.T) {
	if DefaultDataDir() == "" {
		t.Fatalf("default data dir must not be empty")
	}
}
