// Package pebblestore wraps Pebble with an fsync policy, batched writes and
// a minimal metrics hook. It is the durable substrate underneath the channel
// keyspace; higher layers never touch Pebble directly except through the
// kv adapter.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	_ = db.Set([]byte("k"), []byte("v"))
//	v, _ := db.Get([]byte("k"))
package pebblestore
