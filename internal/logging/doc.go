// Package logging assembles structured slog loggers and formatting helpers used
// across the gazette machine.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code can tag log lines
// with document IDs, stages, and correlation IDs. The package also provides a
// no-op logger for tests and wiring code that cannot fail, plus log retention
// pruning for the daemon.
package logging
