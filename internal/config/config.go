package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataDir is the Pebble data directory. Empty selects DefaultDataDir().
	DataDir string `json:"dataDir" yaml:"dataDir"`
	// Fsync is the WAL sync policy: always|interval|never.
	Fsync string `json:"fsync" yaml:"fsync"`
	// FsyncIntervalMs is the group-commit window when Fsync=interval.
	FsyncIntervalMs int `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	// DedupWindow is the per-channel deduplication window capacity.
	DedupWindow int `json:"dedupWindow" yaml:"dedupWindow"`
	// ChannelBuffer is the observer stream buffer per channel.
	ChannelBuffer int `json:"channelBuffer" yaml:"channelBuffer"`
	// GCBatchLimit bounds keys per garbage-collection batch commit.
	GCBatchLimit int `json:"gcBatchLimit" yaml:"gcBatchLimit"`
	// Log configures the structured logger.
	Log LogConfig `json:"log" yaml:"log"`
}

// LogConfig captures logger settings.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug|info|warn|error
	Format string `json:"format" yaml:"format"` // text|json
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Fsync:           "always",
		FsyncIntervalMs: 5,
		DedupWindow:     100,
		ChannelBuffer:   64,
		GCBatchLimit:    1024,
		Log:             LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}
