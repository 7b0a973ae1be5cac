package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/flutterjanus/bridgeq/internal/config"
	"github.com/flutterjanus/bridgeq/internal/queue"
	"github.com/flutterjanus/bridgeq/internal/registry"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Fsync = "never" // keep tests fast
	cfg.Log.Level = "error"
	return cfg
}

func TestOpenCloseHealth(t *testing.T) {
	rt, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fsync = "sometimes"
	if _, err := Open(cfg); err == nil {
		t.Fatalf("expected error for bad fsync mode")
	}
	cfg = testConfig(t)
	cfg.Log.Format = "xml"
	if _, err := Open(cfg); err == nil {
		t.Fatalf("expected error for bad log format")
	}
}

func TestMessagesSurviveRuntimeRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	rt, err := Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	q, err := registry.GetOrCreate[queue.Record](rt.Registry(), "jobs", queue.RecordCodec{}, queue.Options{})
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	mid, err := q.Enqueue(ctx, queue.Record{"n": "persisted"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rt2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer rt2.Close()
	q2, err := registry.GetOrCreate[queue.Record](rt2.Registry(), "jobs", queue.RecordCodec{}, queue.Options{})
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if err := q2.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	select {
	case d := <-q2.Messages():
		if d.ID != mid || !d.Replayed {
			t.Fatalf("unexpected delivery: %+v", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("message lost across restart")
	}
}

func TestMetricsGathererExposesEngineCounters(t *testing.T) {
	ctx := context.Background()
	rt, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	q, err := registry.GetOrCreate[queue.Record](rt.Registry(), "jobs", queue.RecordCodec{}, queue.Options{})
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if _, err := q.Enqueue(ctx, queue.Record{"n": 1.0}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	families, err := rt.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "bridgeq_messages_enqueued_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("enqueued counter not exported")
	}
}
