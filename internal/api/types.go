package api

import "edaplot/internal/layers"

// SchematicRequest is the body accepted by POST /v1/schematic.
type SchematicRequest struct {
	Repo string `json:"repo"`
	A    string `json:"a"`
	B    string `json:"b"`
}

// LayersResponse lists the layer catalog in render order.
type LayersResponse struct {
	Layers []layers.Spec `json:"layers"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status      string `json:"status"`
	PostProcess bool   `json:"postProcess"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}
