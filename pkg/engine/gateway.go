package engine

import (
	"context"

	"github.com/rmax-ai/bookgraph/pkg/gateway"
	"github.com/rmax-ai/bookgraph/pkg/graph"
)

// GraphGateway is the part of the remote backend the Reconciler uses.
type GraphGateway interface {
	FetchGraph(ctx context.Context) (graph.Graph, error)
	AddBookToGraph(ctx context.Context, item gateway.BookSearchItem) (graph.Node, error)
	AddNode(ctx context.Context, label string, props graph.Properties) (graph.Node, error)
	UpdateNode(ctx context.Context, id, label string, props graph.Properties) (gateway.MessageResponse, error)
	RemoveNode(ctx context.Context, id string) (gateway.MessageResponse, error)
	AddEdge(ctx context.Context, source, target string, weight float64) (graph.Edge, error)
	RemoveEdge(ctx context.Context, source, target string) (gateway.MessageResponse, error)
}

// RecommendationGateway is the part of the remote backend the
// RecommendationService uses.
type RecommendationGateway interface {
	RequestRecommendations(ctx context.Context, userID string, limit int) ([]gateway.RawRecommendation, error)
	FetchSavedRecommendations(ctx context.Context) ([]gateway.RawRecommendation, error)
}

// HealthGateway checks backend liveness.
type HealthGateway interface {
	Health(ctx context.Context) (gateway.HealthStatus, error)
}

// Gateway is the full remote backend as seen by the Controller.
// *gateway.Client implements it.
type Gateway interface {
	GraphGateway
	RecommendationGateway
	HealthGateway
	SearchBooks(ctx context.Context, query string, maxResults int) ([]gateway.BookSearchItem, error)
}

var _ Gateway = (*gateway.Client)(nil)
