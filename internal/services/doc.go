// Package services defines shared utilities consumed by the render and
// collection pipelines and their external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, pipeline modes and layer
//     keys for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     (load, render, post-process, tool invocation, io) so callers can decide
//     which ones are fatal and which exit status to report.
//   - A thin Executor abstraction that makes subprocess execution of external
//     tools testable and turns non-zero exits into ToolError values.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, exit codes) stays uniform.
package services
