package gateway

import (
	"github.com/rmax-ai/bookgraph/pkg/graph"
)

// BookSearchItem is one result of the remote book search.
type BookSearchItem struct {
	// Code is the catalogue id of the book. It becomes the Book identity.
	Code   string `json:"code" validate:"required"`
	Title  string `json:"title" validate:"required"`
	Author string `json:"author"`
	// Published is a free-form date; its leading component is the year.
	Published   string   `json:"published,omitempty"`
	ISBN        string   `json:"isbn,omitempty"`
	Subjects    []string `json:"subjects"`
	Description string   `json:"description,omitempty"`
	Cover       string   `json:"cover,omitempty"`
}

type searchRequest struct {
	Query      string `json:"query" validate:"required"`
	MaxResults int    `json:"max_results" validate:"min=1,max=40"`
}

type searchResponse struct {
	Items []BookSearchItem `json:"items"`
}

type nodeRequest struct {
	Label      string           `json:"label" validate:"required"`
	Properties graph.Properties `json:"properties"`
}

type edgeRequest struct {
	Source string  `json:"source" validate:"required"`
	Target string  `json:"target" validate:"required,nefield=Source"`
	Weight float64 `json:"weight" validate:"gte=0"`
}

// RawRecommendation is a recommendation as received from the remote service.
type RawRecommendation struct {
	BookID   string         `json:"book_id,omitempty"`
	Title    string         `json:"title"`
	Author   *string        `json:"author"`
	Reason   string         `json:"reason"`
	Score    float64        `json:"score" validate:"gte=0,lte=1"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type recommendationsRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Limit  int    `json:"limit" validate:"min=1,max=100"`
}

// RecommendationsResponse is the envelope of both recommendation endpoints.
type RecommendationsResponse struct {
	UserID          string              `json:"user_id"`
	Recommendations []RawRecommendation `json:"recommendations" validate:"dive"`
}

// MessageResponse acknowledges a mutation.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthStatus is the body of the health check endpoint.
type HealthStatus struct {
	Status string `json:"status"`
}
