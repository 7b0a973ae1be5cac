package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flutterjanus/bridgeq/internal/config"
	"github.com/flutterjanus/bridgeq/internal/kv"
	"github.com/flutterjanus/bridgeq/internal/metrics"
	"github.com/flutterjanus/bridgeq/internal/notify"
	"github.com/flutterjanus/bridgeq/internal/registry"
	pebblestore "github.com/flutterjanus/bridgeq/internal/storage/pebble"
	"github.com/flutterjanus/bridgeq/pkg/log"
)

// Runtime wires storage, the notification hub, the channel registry,
// logging and metrics for a single-node instance.
type Runtime struct {
	cfg      config.Config
	logger   log.Logger
	promReg  *prometheus.Registry
	metrics  *metrics.Metrics
	db       *pebblestore.DB
	store    *kv.PebbleStore
	hub      *notify.Hub
	registry *registry.Registry
}

// Open builds a Runtime from configuration: it opens the Pebble-backed
// store under cfg.DataDir and assembles the hub and registry on top.
func Open(cfg config.Config) (*Runtime, error) {
	logger, err := buildLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	fsync, err := pebblestore.ParseFsyncMode(cfg.Fsync)
	if err != nil {
		return nil, err
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}

	promReg := prometheus.NewRegistry()
	mets := metrics.New(promReg)

	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       dataDir,
		Fsync:         fsync,
		FsyncInterval: time.Duration(cfg.FsyncIntervalMs) * time.Millisecond,
		Metrics:       mets.Storage(),
	})
	if err != nil {
		return nil, fmt.Errorf("runtime: open store: %w", err)
	}
	store := kv.NewPebbleStore(db)
	hub := notify.NewHub()
	reg := registry.New(store, hub, registry.Options{
		Logger:       logger,
		Metrics:      mets,
		Window:       cfg.DedupWindow,
		Buffer:       cfg.ChannelBuffer,
		GCBatchLimit: cfg.GCBatchLimit,
	})

	logger.Info("runtime opened",
		log.Str("data_dir", dataDir),
		log.Str("fsync", cfg.Fsync),
		log.Int("dedup_window", cfg.DedupWindow))

	return &Runtime{
		cfg:      cfg,
		logger:   logger,
		promReg:  promReg,
		metrics:  mets,
		db:       db,
		store:    store,
		hub:      hub,
		registry: reg,
	}, nil
}

func buildLogger(lc config.LogConfig) (log.Logger, error) {
	level, err := log.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	opts := []log.LoggerOption{log.WithLevel(level)}
	switch lc.Format {
	case "", "text":
		opts = append(opts, log.WithFormatter(&log.TextFormatter{}))
	case "json":
		opts = append(opts, log.WithFormatter(&log.JSONFormatter{}))
	default:
		return nil, fmt.Errorf("runtime: unknown log format %q", lc.Format)
	}
	return log.NewLogger(opts...), nil
}

// Registry returns the channel registry.
func (r *Runtime) Registry() *registry.Registry { return r.registry }

// Store returns the durable store shared by all channels.
func (r *Runtime) Store() kv.Store { return r.store }

// Hub returns the in-process notification hub.
func (r *Runtime) Hub() *notify.Hub { return r.hub }

// Logger returns the root logger.
func (r *Runtime) Logger() log.Logger { return r.logger }

// Metrics returns the runtime metric set.
func (r *Runtime) Metrics() *metrics.Metrics { return r.metrics }

// Gatherer exposes the Prometheus registry for scraping or dumping.
func (r *Runtime) Gatherer() prometheus.Gatherer { return r.promReg }

// Config returns the configuration the runtime was opened with.
func (r *Runtime) Config() config.Config { return r.cfg }

// CheckHealth verifies the store is readable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("runtime: store not open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Close disposes every channel engine and closes the store.
func (r *Runtime) Close() error {
	r.registry.Close()
	return r.store.Close()
}
