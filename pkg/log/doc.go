// Package log provides the structured logging facade used across livesense.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. It is backed by the standard library's
// slog through a bridge handler that routes records into our own
// formatter/output pipeline, so every component prints the same shape of
// line regardless of whether it logs through the facade or through a
// *log.Logger handed to a third-party library.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("sensor"), log.Str("plot", "chirp"))
//	l.Info("producer started", log.Dur("delay", 15*time.Millisecond))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config: level, text or JSON
// formatting, one or more outputs (console, file, null), redacted keys and
// per-message sampling. Sampling matters for the sample producers, which can
// emit hundreds of debug lines per second.
//
// # Interop
//
// RedirectStdLog points the standard library logger (used by Pebble) at a
// Logger so its output is formatted consistently.
package log
