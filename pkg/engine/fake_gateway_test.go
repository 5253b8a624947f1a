package engine

import (
	"context"
	"sync"

	"github.com/rmax-ai/bookgraph/pkg/gateway"
	"github.com/rmax-ai/bookgraph/pkg/graph"
)

type updateCall struct {
	ID         string
	Label      string
	Properties graph.Properties
}

// fakeGateway is an in-memory remote backend. Fields ending in Err make the
// matching operation fail.
type fakeGateway struct {
	mu sync.Mutex

	nodes []graph.Node
	edges []graph.Edge

	fetchErr   error
	updateErr  error
	addErr     error
	removeErr  error
	recsErr    error
	savedErr   error
	healthErr  error
	fetchCalls int
	updates    []updateCall
	removed    []string

	// fetchGate, when set, blocks FetchGraph until it is closed.
	fetchGate chan struct{}
	// fetchStarted receives once per FetchGraph call.
	fetchStarted chan struct{}

	recs      []gateway.RawRecommendation
	saved     []gateway.RawRecommendation
	recsCalls int
	search    []gateway.BookSearchItem
}

var _ Gateway = (*fakeGateway)(nil)

func newFakeGateway(nodes ...graph.Node) *fakeGateway {
	return &fakeGateway{nodes: nodes}
}

func (f *fakeGateway) setFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

func (f *fakeGateway) FetchGraph(ctx context.Context) (graph.Graph, error) {
	f.mu.Lock()
	f.fetchCalls++
	gate, started := f.fetchGate, f.fetchStarted
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return graph.Graph{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return graph.Graph{}, f.fetchErr
	}
	return graph.NewGraph(f.nodes, f.edges), nil
}

func (f *fakeGateway) AddBookToGraph(_ context.Context, item gateway.BookSearchItem) (graph.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return graph.Node{}, f.addErr
	}
	n := graph.Node{
		ID:    "node-" + item.Code,
		Label: graph.BookLabel,
		Properties: graph.Properties{
			Code:      item.Code,
			Title:     item.Title,
			Author:    item.Author,
			Published: item.Published,
			Subjects:  item.Subjects,
		},
	}
	f.nodes = append(f.nodes, n)
	return n, nil
}

func (f *fakeGateway) AddNode(_ context.Context, label string, props graph.Properties) (graph.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return graph.Node{}, f.addErr
	}
	n := graph.Node{ID: "theme-" + label, Label: label, Properties: props}
	f.nodes = append(f.nodes, n)
	return n, nil
}

func (f *fakeGateway) UpdateNode(_ context.Context, id, label string, props graph.Properties) (gateway.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{ID: id, Label: label, Properties: props})
	if f.updateErr != nil {
		return gateway.MessageResponse{}, f.updateErr
	}
	for i := range f.nodes {
		if f.nodes[i].ID == id {
			f.nodes[i].Label = label
			f.nodes[i].Properties = props
		}
	}
	return gateway.MessageResponse{Message: "updated"}, nil
}

func (f *fakeGateway) RemoveNode(_ context.Context, id string) (gateway.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	if f.removeErr != nil {
		return gateway.MessageResponse{}, f.removeErr
	}
	kept := f.nodes[:0]
	for _, n := range f.nodes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	f.nodes = kept
	return gateway.MessageResponse{Message: "removed"}, nil
}

func (f *fakeGateway) AddEdge(_ context.Context, source, target string, weight float64) (graph.Edge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return graph.Edge{}, f.addErr
	}
	e := graph.Edge{Source: source, Target: target, Weight: weight}
	f.edges = append(f.edges, e)
	return e, nil
}

func (f *fakeGateway) RemoveEdge(_ context.Context, source, target string) (gateway.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return gateway.MessageResponse{}, f.removeErr
	}
	kept := f.edges[:0]
	for _, e := range f.edges {
		if e.Source != source || e.Target != target {
			kept = append(kept, e)
		}
	}
	f.edges = kept
	return gateway.MessageResponse{Message: "removed"}, nil
}

func (f *fakeGateway) RequestRecommendations(_ context.Context, _ string, _ int) ([]gateway.RawRecommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recsCalls++
	if f.recsErr != nil {
		return nil, f.recsErr
	}
	return f.recs, nil
}

func (f *fakeGateway) FetchSavedRecommendations(context.Context) ([]gateway.RawRecommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.savedErr != nil {
		return nil, f.savedErr
	}
	return f.saved, nil
}

func (f *fakeGateway) Health(context.Context) (gateway.HealthStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.healthErr != nil {
		return gateway.HealthStatus{}, f.healthErr
	}
	return gateway.HealthStatus{Status: "ok"}, nil
}

func (f *fakeGateway) SearchBooks(_ context.Context, _ string, _ int) ([]gateway.BookSearchItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.search, nil
}

func bookNode(id, code, title string) graph.Node {
	return graph.Node{
		ID:         id,
		Label:      title,
		Properties: graph.Properties{Code: code, Title: title, Author: "Author " + code},
	}
}

func themeNode(id, label string) graph.Node {
	return graph.Node{ID: id, Label: label}
}

var errUnavailable = &gateway.RemoteError{StatusCode: 0, Message: "connection refused", Operation: "fetch_graph"}
