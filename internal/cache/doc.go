// Package cache persists encoded board documents in SQLite so repeated
// renders of an unchanged board skip the engine entirely.
//
// Entries are keyed by the SHA-256 of the board bytes combined with the
// renderer signature. Any change to the engine binary, export parameters or
// post-processor availability therefore produces a new key.
package cache
