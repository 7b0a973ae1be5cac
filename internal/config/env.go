package config

import (
	"os"
	"strconv"
)

// FromEnv overlays BRIDGEQ_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("BRIDGEQ_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("BRIDGEQ_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("BRIDGEQ_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("BRIDGEQ_DEDUP_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DedupWindow = n
		}
	}
	if v := os.Getenv("BRIDGEQ_CHANNEL_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ChannelBuffer = n
		}
	}
	if v := os.Getenv("BRIDGEQ_GC_BATCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GCBatchLimit = n
		}
	}
	if v := os.Getenv("BRIDGEQ_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("BRIDGEQ_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
