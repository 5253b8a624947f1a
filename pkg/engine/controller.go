package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rmax-ai/bookgraph/pkg/cache"
	"github.com/rmax-ai/bookgraph/pkg/gateway"
	"github.com/rmax-ai/bookgraph/pkg/graph"
	"github.com/rmax-ai/bookgraph/pkg/recommend"
)

// Options wires the controller's collaborators. Zero values disable the
// corresponding feature.
type Options struct {
	// Persistent enables the graph and recommendation fallbacks.
	Persistent *cache.PersistentCache
	// Memory caches processed recommendation batches per graph.
	Memory   *cache.RecommendationCache
	Pipeline *recommend.Pipeline

	Recommendations RecommendationConfig
	GraphTTL        time.Duration

	RefreshInterval time.Duration
	HealthInterval  time.Duration
	Retention       RetentionConfig

	Logger *zap.Logger
}

// Controller is the single owner of client state. It moves from
// Uninitialized to Ready exactly once in Init and to Disposed in Dispose;
// actions are rejected outside the Ready phase.
type Controller struct {
	gw       Gateway
	opts     Options
	logger   *zap.Logger
	graph    *Reconciler
	library  *Library
	recs     *RecommendationService
	health   *HealthMonitor
	pruner   *PruneWorker
	sched    *Scheduler
	baseCtx  context.Context
	stopBase context.CancelFunc
	workers  sync.WaitGroup

	mu    sync.RWMutex
	phase Phase
}

// NewController assembles a controller around gw.
func NewController(gw Gateway, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rec := NewReconciler(gw, opts.Persistent, opts.GraphTTL, logger.Named("graph"))
	lib := NewLibrary(logger.Named("library"))
	rec.Subscribe(func(g graph.Graph) { lib.Sync(g) })

	svc := NewRecommendationService(gw, opts.Pipeline, opts.Memory, opts.Persistent, rec.Graph, opts.Recommendations, logger.Named("recommendations"))

	var pruner *PruneWorker
	if opts.Persistent != nil {
		if p, ok := opts.Persistent.Backend().(cache.Pruner); ok {
			pruner = NewPruneWorker(p, opts.Retention, logger.Named("prune"))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		gw:       gw,
		opts:     opts,
		logger:   logger,
		graph:    rec,
		library:  lib,
		recs:     svc,
		health:   NewHealthMonitor(gw, logger.Named("health")),
		pruner:   pruner,
		sched:    NewScheduler(ctx, logger.Named("scheduler")),
		baseCtx:  ctx,
		stopBase: cancel,
		phase:    PhaseUninitialized,
	}
}

// Init restores cached state, starts background tasks and performs the
// first graph load. The controller is Ready even when that load fails; the
// error is returned so the caller can report it.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	switch c.phase {
	case PhaseReady:
		c.mu.Unlock()
		return ErrAlreadyInitialized
	case PhaseDisposed:
		c.mu.Unlock()
		return ErrDisposed
	}
	c.graph.Restore(ctx)
	c.recs.Restore(ctx)
	c.phase = PhaseReady
	c.startBackground()
	c.mu.Unlock()

	c.logger.Info("controller_ready")
	if _, err := c.graph.LoadGraph(ctx); err != nil {
		return fmt.Errorf("initial graph load: %w", err)
	}
	return nil
}

func (c *Controller) startBackground() {
	if c.opts.HealthInterval > 0 {
		c.sched.Every("health", c.opts.HealthInterval, c.health.Check)
	}
	if c.opts.RefreshInterval > 0 {
		c.sched.After("graph_refresh", c.opts.RefreshInterval, c.opts.RefreshInterval, func(ctx context.Context) error {
			_, err := c.graph.LoadGraph(ctx)
			return err
		})
	}
	if c.pruner != nil && c.opts.Retention.Retention > 0 {
		c.workers.Add(1)
		go func() {
			defer c.workers.Done()
			c.pruner.Run(c.baseCtx)
		}()
	}
}

// Dispose stops background work and rejects further actions. It is safe to
// call more than once.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.phase == PhaseDisposed {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseDisposed
	c.mu.Unlock()

	c.sched.Stop()
	c.stopBase()
	c.graph.Close()
	c.workers.Wait()
	c.logger.Info("controller_disposed")
}

// Phase returns the lifecycle state.
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

func (c *Controller) ready() error {
	switch c.Phase() {
	case PhaseUninitialized:
		return ErrNotReady
	case PhaseDisposed:
		return ErrDisposed
	}
	return nil
}

// View captures the current presentation state.
func (c *Controller) View() View {
	g := c.graph.Graph()
	v := View{
		Phase:           c.Phase(),
		Graph:           g.Render(),
		GraphStatus:     c.graph.Status(),
		Books:           c.library.Books(),
		Recommendations: c.recs.State(),
		Health:          c.health.State(),
	}
	if b, ok := c.library.Active(); ok {
		v.ActiveBook = &b
	}
	return v
}

// Graph returns the current snapshot.
func (c *Controller) Graph() graph.Graph {
	return c.graph.Graph()
}

// Books returns the library.
func (c *Controller) Books() []graph.Book {
	return c.library.Books()
}

// Recommendations returns the recommendation state.
func (c *Controller) Recommendations() RecommendationState {
	return c.recs.State()
}

// RawRecommendations returns the last raw batch from the backend.
func (c *Controller) RawRecommendations() []gateway.RawRecommendation {
	return c.recs.Raw()
}

// Health returns the backend health state.
func (c *Controller) Health() HealthState {
	return c.health.State()
}

// CheckHealth runs a health check now.
func (c *Controller) CheckHealth(ctx context.Context) (HealthState, error) {
	if err := c.ready(); err != nil {
		return HealthState{}, err
	}
	err := c.health.Check(ctx)
	return c.health.State(), err
}

// RefreshGraph reloads the graph.
func (c *Controller) RefreshGraph(ctx context.Context) (LoadResult, error) {
	if err := c.ready(); err != nil {
		return LoadResult{}, err
	}
	return c.graph.LoadGraph(ctx)
}

// SearchBooks queries the book search service.
func (c *Controller) SearchBooks(ctx context.Context, query string, maxResults int) ([]gateway.BookSearchItem, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.gw.SearchBooks(ctx, query, maxResults)
}

// AddBook adds a search result to the graph.
func (c *Controller) AddBook(ctx context.Context, item gateway.BookSearchItem) (graph.Node, error) {
	if err := c.ready(); err != nil {
		return graph.Node{}, err
	}
	return c.graph.AddBook(ctx, item)
}

// EditNodeDescription replaces a node's description.
func (c *Controller) EditNodeDescription(ctx context.Context, nodeID, text string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.graph.EditNode(ctx, nodeID, text)
}

// AddNode creates a node, typically a theme.
func (c *Controller) AddNode(ctx context.Context, label string, props graph.Properties) (graph.Node, error) {
	if err := c.ready(); err != nil {
		return graph.Node{}, err
	}
	return c.graph.AddNode(ctx, label, props)
}

// RemoveNode deletes a node from the remote graph. A book removed this way
// stays in the library until RemoveBook is called.
func (c *Controller) RemoveNode(ctx context.Context, nodeID string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.graph.RemoveNode(ctx, nodeID)
}

// AddEdge connects two nodes.
func (c *Controller) AddEdge(ctx context.Context, source, target string, weight float64) (graph.Edge, error) {
	if err := c.ready(); err != nil {
		return graph.Edge{}, err
	}
	return c.graph.AddEdge(ctx, source, target, weight)
}

// RemoveEdge disconnects two nodes.
func (c *Controller) RemoveEdge(ctx context.Context, source, target string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.graph.RemoveEdge(ctx, source, target)
}

// RemoveBook deletes the book's node remotely and then drops the book from
// the library. A node that is already gone remotely does not block the
// local removal.
func (c *Controller) RemoveBook(ctx context.Context, bookID string) error {
	if err := c.ready(); err != nil {
		return err
	}
	book, ok := c.library.Get(bookID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBookNotFound, bookID)
	}
	if err := c.graph.RemoveNode(ctx, book.NodeID); err != nil {
		if status, ok := gateway.StatusOf(err); !ok || status != http.StatusNotFound {
			return err
		}
		c.logger.Info("book_node_already_removed", zap.String("book", bookID), zap.String("node", book.NodeID))
	}
	c.library.Remove(bookID)
	return nil
}

// SetProgress records reading progress for a book.
func (c *Controller) SetProgress(bookID string, progress int) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.library.SetProgress(bookID, progress)
}

// SetActiveBook selects the book shown as current.
func (c *Controller) SetActiveBook(bookID string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.library.SetActive(bookID)
}

// FilterBooks returns library books matching query.
func (c *Controller) FilterBooks(query string) ([]graph.Book, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.library.Filter(query), nil
}

// FetchRecommendations resolves a recommendation batch.
func (c *Controller) FetchRecommendations(ctx context.Context) (RecommendationState, error) {
	if err := c.ready(); err != nil {
		return RecommendationState{}, err
	}
	return c.recs.Fetch(ctx)
}

// ClearRecommendations discards the current and cached recommendations.
func (c *Controller) ClearRecommendations(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	c.recs.Clear(ctx)
	return nil
}

// IsLifecycleError reports whether err comes from calling an action in the
// wrong phase.
func IsLifecycleError(err error) bool {
	return errors.Is(err, ErrNotReady) || errors.Is(err, ErrDisposed) || errors.Is(err, ErrAlreadyInitialized)
}
