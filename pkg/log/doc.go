// Package log provides this service's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. BaseLogger formats and writes
// each entry through its own formatter/output pipeline. Each logger also
// builds an internal slog handler that routes slog records through that same
// pipeline; it is not exposed, so callers never depend on slog directly.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("eventstream"), log.Str("category", "orders"))
//	l.Info("subscribed", log.Int("workers", 8))
package log
