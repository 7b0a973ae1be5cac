// Package config loads bridgeq configuration from JSON or YAML files with a
// BRIDGEQ_* environment overlay. Defaults are safe for embedding: durable
// fsync on every commit, a 100-entry deduplication window, and an
// OS-appropriate data directory.
package config
