// Package runtime wires the store, notification hub, channel registry,
// logging and metrics into a single-node bridgeq instance. It exposes
// Open/Close and a basic health check.
//
// Example:
//
//	cfg := config.Default()
//	cfg.DataDir = "./data"
//	rt, _ := runtime.Open(cfg)
//	defer rt.Close()
//	q, _ := registry.GetOrCreate[queue.Record](rt.Registry(), "jobs", queue.RecordCodec{}, queue.Options{})
//	_ = q.Initialize(context.Background())
package runtime
