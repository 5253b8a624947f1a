package api

import (
	"github.com/rmax-ai/bookgraph/pkg/engine"
	"github.com/rmax-ai/bookgraph/pkg/graph"
)

// SearchRequest matches the POST /v1/search body schema
type SearchRequest struct {
	Query      string `json:"query" validate:"required"`
	MaxResults int    `json:"max_results" validate:"omitempty,min=1,max=40"`
}

// DescriptionRequest matches the PUT /v1/nodes/{id}/description body schema
type DescriptionRequest struct {
	Description string `json:"description"`
}

// NodeRequest matches the POST /v1/nodes body schema
type NodeRequest struct {
	Label      string           `json:"label" validate:"required"`
	Properties graph.Properties `json:"properties"`
}

// EdgeRequest matches the POST /v1/edges body schema
type EdgeRequest struct {
	Source string  `json:"source" validate:"required"`
	Target string  `json:"target" validate:"required,nefield=Source"`
	Weight float64 `json:"weight" validate:"gte=0"`
}

// ProgressRequest matches the PUT /v1/library/{id}/progress body schema
type ProgressRequest struct {
	Progress *int `json:"progress" validate:"required,min=0,max=100"`
}

// ActiveRequest matches the PUT /v1/library/active body schema
type ActiveRequest struct {
	ID string `json:"id" validate:"required"`
}

// HealthResponse is returned by GET /v1/health.
type HealthResponse struct {
	Status  string             `json:"status"`
	Phase   engine.Phase       `json:"phase"`
	Backend engine.HealthState `json:"backend"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Status  int    `json:"remote_status,omitempty"`
}
