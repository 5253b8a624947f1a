package engine

import "github.com/rmax-ai/bookgraph/pkg/graph"

// Phase is the controller lifecycle state.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseReady         Phase = "ready"
	PhaseDisposed      Phase = "disposed"
)

// View is everything a presentation layer renders, captured at one point in
// time.
type View struct {
	Phase           Phase               `json:"phase"`
	Graph           graph.View          `json:"graph"`
	GraphStatus     GraphStatus         `json:"graph_status"`
	Books           []graph.Book        `json:"books"`
	ActiveBook      *graph.Book         `json:"active_book,omitempty"`
	Recommendations RecommendationState `json:"recommendations"`
	Health          HealthState         `json:"health"`
}
