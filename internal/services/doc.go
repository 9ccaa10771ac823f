// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp document IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     as input problems (validation, configuration) or environment problems
//     (external tools, stores, networks).
//   - The Runner abstraction that makes external command execution testable.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
