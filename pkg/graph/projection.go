package graph

import (
	"sync"
	"time"
)

// Projection holds the current graph snapshot. Snapshots are applied in
// initiation order: a snapshot whose sequence number is not newer than the
// last applied one is discarded.
type Projection struct {
	mu       sync.RWMutex
	graph    Graph
	seq      uint64
	loadedAt time.Time
	source   string
}

// NewProjection creates a projection holding an empty graph.
func NewProjection() *Projection {
	return &Projection{graph: NewGraph(nil, nil)}
}

// Apply replaces the snapshot when seq is newer than the last applied one.
// It reports whether the snapshot was accepted.
func (p *Projection) Apply(seq uint64, g Graph, source string, at time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq <= p.seq {
		return false
	}
	p.seq = seq
	p.graph = g
	p.source = source
	p.loadedAt = at
	return true
}

// Snapshot returns the current graph. Graph values are immutable, so the
// result can be shared.
func (p *Projection) Snapshot() Graph {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.graph
}

// Seq returns the sequence number of the applied snapshot.
func (p *Projection) Seq() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.seq
}

// LoadedAt returns when the current snapshot was applied and where it came
// from ("remote" or "cache").
func (p *Projection) LoadedAt() (time.Time, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loadedAt, p.source
}
