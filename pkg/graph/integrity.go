package graph

import (
	"errors"
	"fmt"
)

var errMissingNodes = errors.New("graph: payload has no nodes array")

// Integrity violation kinds.
const (
	IntegrityDanglingEdge  = "dangling_edge"
	IntegrityDuplicateNode = "duplicate_node"
	IntegrityDuplicateBook = "duplicate_book"
)

// DataIntegrityError reports remote data that breaks a structural assumption.
// Offending entities are skipped by derived views; the snapshot itself keeps
// the raw data.
type DataIntegrityError struct {
	Kind   string
	ID     string
	Detail string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("graph integrity: %s %q: %s", e.Kind, e.ID, e.Detail)
}

// Check validates node id uniqueness and edge endpoints.
func (g Graph) Check() []error {
	var errs []error
	seen := make(map[string]struct{}, len(g.nodes))
	for _, n := range g.nodes {
		if _, dup := seen[n.ID]; dup {
			errs = append(errs, &DataIntegrityError{
				Kind:   IntegrityDuplicateNode,
				ID:     n.ID,
				Detail: "node id appears more than once",
			})
			continue
		}
		seen[n.ID] = struct{}{}
	}
	for _, e := range g.edges {
		if !g.edgeResolves(e) {
			errs = append(errs, &DataIntegrityError{
				Kind:   IntegrityDanglingEdge,
				ID:     e.Source + "->" + e.Target,
				Detail: "edge endpoint is not a node of this snapshot",
			})
		}
	}
	return errs
}

func (g Graph) edgeResolves(e Edge) bool {
	_, src := g.index[e.Source]
	_, dst := g.index[e.Target]
	return src && dst
}
