// Package api exposes the board and schematic pipelines over HTTP.
//
// # Routes
//
//	GET  /healthz        liveness probe
//	GET  /v1/layers      layer catalog
//	POST /v1/board       raw .kicad_pcb body, responds with the board document
//	POST /v1/schematic   {"repo","a","b"}, responds with the schematic document
//
// Successful renders return the exact bytes the CLI would print. Failures
// return {"error","requestId"} with a status derived from the error marker
// (see statusFor).
//
// Schematic requests only reach repositories below server.repo_root; the
// endpoint is disabled when repo_root is empty.
package api
