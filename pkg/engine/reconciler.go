package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rmax-ai/bookgraph/pkg/cache"
	"github.com/rmax-ai/bookgraph/pkg/gateway"
	"github.com/rmax-ai/bookgraph/pkg/graph"
)

// Snapshot sources.
const (
	SourceRemote = "remote"
	SourceCache  = "cache"
	SourceNone   = "none"
)

// LoadResult describes how a LoadGraph call resolved.
type LoadResult struct {
	// Source is where the resolved snapshot came from.
	Source string
	// Degraded is set when the remote fetch failed and the cached snapshot
	// was substituted.
	Degraded bool
	// Applied is false when a newer snapshot was already in place and this
	// one was discarded.
	Applied bool
}

// GraphStatus summarizes the current snapshot.
type GraphStatus struct {
	Nodes    int       `json:"nodes"`
	Edges    int       `json:"edges"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
	Degraded bool      `json:"degraded"`
	Error    string    `json:"error,omitempty"`
}

// Reconciler owns the canonical graph snapshot. Reloads are single-flight:
// concurrent callers share one fetch. Every fetch takes a sequence number
// when it starts and its result is applied only if no later-started fetch
// has been applied already.
type Reconciler struct {
	gw       GraphGateway
	cache    *cache.PersistentCache
	graphTTL time.Duration
	proj     *graph.Projection
	logger   *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool

	group    singleflight.Group
	seq      atomic.Uint64
	writeGen atomic.Uint64

	// applyMu orders snapshot application, cache writes and listeners.
	applyMu   sync.Mutex
	listeners []func(graph.Graph)

	mu       sync.RWMutex
	lastErr  error
	degraded bool
}

// NewReconciler creates a reconciler. persistent may be nil to disable the
// cache fallback. graphTTL of zero keeps the cached snapshot valid forever.
func NewReconciler(gw GraphGateway, persistent *cache.PersistentCache, graphTTL time.Duration, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		gw:       gw,
		cache:    persistent,
		graphTTL: graphTTL,
		proj:     graph.NewProjection(),
		logger:   logger,
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Subscribe registers fn to run after every applied snapshot, in apply
// order. It must be called before the first load.
func (r *Reconciler) Subscribe(fn func(graph.Graph)) {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Graph returns the current snapshot.
func (r *Reconciler) Graph() graph.Graph {
	return r.proj.Snapshot()
}

// LastError returns the error of the last load that had no fallback, or nil.
func (r *Reconciler) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Status summarizes the current snapshot.
func (r *Reconciler) Status() GraphStatus {
	g := r.proj.Snapshot()
	loadedAt, source := r.proj.LoadedAt()
	if source == "" {
		source = SourceNone
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := GraphStatus{
		Nodes:    g.Len(),
		Edges:    len(g.Edges()),
		Source:   source,
		LoadedAt: loadedAt,
		Degraded: r.degraded,
	}
	if r.lastErr != nil {
		st.Error = r.lastErr.Error()
	}
	return st
}

// Restore applies the cached snapshot, if any, so that state is populated
// before the first network round trip. It reports whether one was found.
func (r *Reconciler) Restore(ctx context.Context) bool {
	if r.cache == nil {
		return false
	}
	g, ts, ok := r.cache.LoadGraph(ctx, r.graphTTL)
	if !ok {
		return false
	}
	seq := r.seq.Add(1)
	r.applyMu.Lock()
	defer r.applyMu.Unlock()
	if !r.proj.Apply(seq, g, SourceCache, ts) {
		return false
	}
	r.notifyLocked(g)
	r.logger.Info("graph_restored_from_cache", zap.Int("nodes", g.Len()), zap.Time("cached_at", ts))
	return true
}

// LoadGraph fetches a fresh snapshot. If a load is already in flight and no
// write has completed since it started, the call waits for it instead of
// issuing a second fetch. When the fetch fails the cached snapshot is used
// and no error is returned; the error is returned only when no cached
// snapshot exists, in which case the current snapshot is left untouched.
func (r *Reconciler) LoadGraph(ctx context.Context) (LoadResult, error) {
	if r.closed.Load() {
		return LoadResult{}, ErrDisposed
	}
	key := fmt.Sprintf("graph@%d", r.writeGen.Load())
	ch := r.group.DoChan(key, func() (any, error) {
		return r.reload()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return LoadResult{Source: SourceNone}, res.Err
		}
		return res.Val.(LoadResult), nil
	case <-ctx.Done():
		return LoadResult{}, ctx.Err()
	}
}

func (r *Reconciler) reload() (LoadResult, error) {
	seq := r.seq.Add(1)
	g, err := r.gw.FetchGraph(r.baseCtx)
	if err == nil {
		applied := r.apply(seq, g, SourceRemote, time.Now(), true)
		if applied {
			GraphLoads.WithLabelValues(SourceRemote).Inc()
			r.setState(nil, false)
			r.logger.Info("graph_loaded", zap.Int("nodes", g.Len()), zap.Int("edges", len(g.Edges())))
		} else {
			r.logger.Debug("graph_load_superseded", zap.Uint64("seq", seq))
		}
		return LoadResult{Source: SourceRemote, Applied: applied}, nil
	}

	if errors.Is(err, context.Canceled) && r.closed.Load() {
		return LoadResult{}, ErrDisposed
	}

	if r.cache != nil {
		if cached, ts, ok := r.cache.LoadGraph(r.baseCtx, r.graphTTL); ok {
			applied := r.apply(seq, cached, SourceCache, ts, false)
			if applied {
				r.setState(nil, true)
			}
			GraphLoads.WithLabelValues(SourceCache).Inc()
			r.logger.Warn("graph_fetch_failed_using_cache", zap.Error(err), zap.Time("cached_at", ts))
			return LoadResult{Source: SourceCache, Degraded: true, Applied: applied}, nil
		}
	}

	GraphLoads.WithLabelValues(SourceNone).Inc()
	r.setState(err, false)
	r.logger.Error("graph_fetch_failed", zap.Error(err))
	return LoadResult{}, err
}

// apply installs g if seq is the newest so far. Remote snapshots are
// checked for integrity and written to the cache.
func (r *Reconciler) apply(seq uint64, g graph.Graph, source string, at time.Time, fromRemote bool) bool {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	if !r.proj.Apply(seq, g, source, at) {
		return false
	}
	GraphNodes.Set(float64(g.Len()))
	if fromRemote {
		_, bookErrs := g.DeriveBooks()
		reportIntegrity(r.logger, append(g.Check(), bookErrs...))
		if r.cache != nil {
			r.cache.SaveGraph(r.baseCtx, g)
		}
	}
	r.notifyLocked(g)
	return true
}

func (r *Reconciler) notifyLocked(g graph.Graph) {
	for _, fn := range r.listeners {
		fn(g)
	}
}

func (r *Reconciler) setState(err error, degraded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = err
	r.degraded = degraded
}

// EditNode merges description into the node's properties, keeping every
// other property, and reloads the graph. A failed update changes nothing
// locally. Once the update succeeds the edit is committed even if the
// reload fails.
func (r *Reconciler) EditNode(ctx context.Context, nodeID, description string) error {
	if r.closed.Load() {
		return ErrDisposed
	}
	node, ok := r.proj.Snapshot().Node(nodeID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	props := node.Properties.WithDescription(description)
	if _, err := r.gw.UpdateNode(ctx, nodeID, node.Label, props); err != nil {
		return err
	}
	r.afterWrite(ctx, "edit_node")
	return nil
}

// AddBook adds a search result to the graph and reloads.
func (r *Reconciler) AddBook(ctx context.Context, item gateway.BookSearchItem) (graph.Node, error) {
	if r.closed.Load() {
		return graph.Node{}, ErrDisposed
	}
	node, err := r.gw.AddBookToGraph(ctx, item)
	if err != nil {
		return graph.Node{}, err
	}
	r.afterWrite(ctx, "add_book")
	return node, nil
}

// AddNode creates a node and reloads.
func (r *Reconciler) AddNode(ctx context.Context, label string, props graph.Properties) (graph.Node, error) {
	if r.closed.Load() {
		return graph.Node{}, ErrDisposed
	}
	node, err := r.gw.AddNode(ctx, label, props)
	if err != nil {
		return graph.Node{}, err
	}
	r.afterWrite(ctx, "add_node")
	return node, nil
}

// RemoveNode deletes a node remotely and reloads.
func (r *Reconciler) RemoveNode(ctx context.Context, nodeID string) error {
	if r.closed.Load() {
		return ErrDisposed
	}
	if _, err := r.gw.RemoveNode(ctx, nodeID); err != nil {
		return err
	}
	r.afterWrite(ctx, "remove_node")
	return nil
}

// AddEdge connects two nodes and reloads.
func (r *Reconciler) AddEdge(ctx context.Context, source, target string, weight float64) (graph.Edge, error) {
	if r.closed.Load() {
		return graph.Edge{}, ErrDisposed
	}
	edge, err := r.gw.AddEdge(ctx, source, target, weight)
	if err != nil {
		return graph.Edge{}, err
	}
	r.afterWrite(ctx, "add_edge")
	return edge, nil
}

// RemoveEdge deletes an edge and reloads.
func (r *Reconciler) RemoveEdge(ctx context.Context, source, target string) error {
	if r.closed.Load() {
		return ErrDisposed
	}
	if _, err := r.gw.RemoveEdge(ctx, source, target); err != nil {
		return err
	}
	r.afterWrite(ctx, "remove_edge")
	return nil
}

// afterWrite bumps the write generation so the following reload cannot join
// a fetch that started before the write, then reloads. Reload failures are
// logged only: the write itself is committed remotely.
func (r *Reconciler) afterWrite(ctx context.Context, op string) {
	r.writeGen.Add(1)
	if _, err := r.LoadGraph(ctx); err != nil {
		r.logger.Warn("reload_after_write_failed", zap.String("operation", op), zap.Error(err))
	}
}

// Close stops in-flight fetches and rejects further operations.
func (r *Reconciler) Close() {
	if r.closed.CompareAndSwap(false, true) {
		r.cancel()
	}
}
