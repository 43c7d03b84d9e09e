// Package logging assembles structured slog loggers and formatting helpers used
// across edaplot.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with run IDs, pipeline modes and layer keys. The package also provides
// a no-op logger for tests and wiring code that cannot fail.
//
// Loggers never write to stdout: the CLI reserves stdout for the JSON
// document it emits.
package logging
