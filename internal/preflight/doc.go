// Package preflight provides readiness checks for the filesystem paths and
// external tools edaplot depends on.
//
// These checks run in two contexts:
//   - `edaplot serve` calls RunAll at startup and refuses to listen when a
//     required check fails.
//   - The CLI "edaplot status" command renders every result for operators.
//
// Checks for optional features are gated by their config toggle.
package preflight
