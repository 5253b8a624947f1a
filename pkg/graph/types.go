package graph

import (
	"strings"

	"github.com/goccy/go-json"
)

// Kind is the semantic type of a node. It is derived from the node's
// properties and never sent over the wire.
type Kind string

const (
	KindBook  Kind = "book"
	KindTheme Kind = "theme"
)

// BookLabel is the generic label the remote store puts on book nodes.
const BookLabel = "book"

// Node represents a vertex in the user's book graph.
type Node struct {
	ID         string     `json:"id" validate:"required"`
	Label      string     `json:"label"`
	Properties Properties `json:"properties"`
}

// Kind reports whether the node is a book (non-empty code) or a theme.
func (n Node) Kind() Kind {
	if strings.TrimSpace(n.Properties.Code) != "" {
		return KindBook
	}
	return KindTheme
}

// DisplayLabel is the label shown to users. Book nodes created from search
// results carry the generic "book" label, so their title property wins.
func (n Node) DisplayLabel() string {
	if n.Kind() == KindBook && (n.Label == "" || n.Label == BookLabel) {
		if n.Properties.Title != "" {
			return n.Properties.Title
		}
	}
	if n.Label == "" {
		return n.ID
	}
	return n.Label
}

// Edge represents a connection between two nodes of the same snapshot.
type Edge struct {
	Source string  `json:"source" validate:"required"`
	Target string  `json:"target" validate:"required"`
	Weight float64 `json:"weight"`
}

// Graph is an immutable snapshot of the remote graph. It is replaced wholesale
// on every successful fetch and never patched in place.
type Graph struct {
	nodes []Node
	edges []Edge
	index map[string]int
}

// NewGraph builds a snapshot from the given nodes and edges. The slices are
// copied. When two nodes share an id the first one is indexed; Check reports
// the duplicate.
func NewGraph(nodes []Node, edges []Edge) Graph {
	g := Graph{
		nodes: make([]Node, len(nodes)),
		edges: make([]Edge, len(edges)),
		index: make(map[string]int, len(nodes)),
	}
	for i, n := range nodes {
		n.Properties = n.Properties.Clone()
		g.nodes[i] = n
		if _, exists := g.index[n.ID]; !exists {
			g.index[n.ID] = i
		}
	}
	copy(g.edges, edges)
	return g
}

// Nodes returns a copy of the snapshot's nodes in wire order.
func (g Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	for i, n := range g.nodes {
		n.Properties = n.Properties.Clone()
		out[i] = n
	}
	return out
}

// Edges returns a copy of the snapshot's edges in wire order.
func (g Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Node looks up a node by id.
func (g Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	n := g.nodes[i]
	n.Properties = n.Properties.Clone()
	return n, true
}

// NodeIDs returns the ids of all nodes in wire order.
func (g Graph) NodeIDs() []string {
	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID
	}
	return ids
}

// Len returns the number of nodes.
func (g Graph) Len() int {
	return len(g.nodes)
}

// IsEmpty reports whether the snapshot has neither nodes nor edges.
func (g Graph) IsEmpty() bool {
	return len(g.nodes) == 0 && len(g.edges) == 0
}

type wireGraph struct {
	Nodes []Node `json:"nodes" validate:"dive"`
	Edges []Edge `json:"edges" validate:"dive"`
}

// MarshalJSON encodes the snapshot in the remote store's {nodes, edges} shape.
func (g Graph) MarshalJSON() ([]byte, error) {
	w := wireGraph{Nodes: g.nodes, Edges: g.edges}
	if w.Nodes == nil {
		w.Nodes = []Node{}
	}
	if w.Edges == nil {
		w.Edges = []Edge{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the {nodes, edges} shape. A missing or null nodes
// array is an error so that malformed cache content is never mistaken for an
// empty graph.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	rawNodes, ok := probe["nodes"]
	if !ok || string(rawNodes) == "null" {
		return errMissingNodes
	}
	var w wireGraph
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*g = NewGraph(w.Nodes, w.Edges)
	return nil
}
