// Package pipeline wires the render, post-processing and collection
// components into the two end-to-end operations exposed by the CLI and the
// HTTP service: rendering a board and collecting a schematic diff.
//
// Both operations return the encoded JSON document. Nothing is written to
// stdout here; callers emit the bytes with a single write once the whole
// document exists, so a failed run never leaves partial output behind.
package pipeline
