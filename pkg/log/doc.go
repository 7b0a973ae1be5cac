// Package log provides bridgeq's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Internally it is backed by the standard
// library slog via a custom handler that routes records through the
// formatter/output pipeline, so slog-aware libraries can interoperate while
// the codebase keeps one consistent API.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("queue"), log.Str("channel", "orders"))
//	l.Info("replay complete", log.Int("emitted", 12))
//
// # Interop
//
// To integrate with libraries expecting *log.Logger (Pebble does), use
// RedirectStdLog. Tests that want silence use NewNopLogger.
package log
