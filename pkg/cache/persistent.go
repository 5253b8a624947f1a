package cache

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/rmax-ai/bookgraph/pkg/graph"
	"github.com/rmax-ai/bookgraph/pkg/recommend"
)

// Scope keys.
const (
	GraphScope                = "bookgraph:graph"
	recommendationScopePrefix = "bookgraph:recommendations:"
)

// RecommendationScope returns the scope key of a user's recommendations.
func RecommendationScope(userID string) string {
	return recommendationScopePrefix + userID
}

// Envelope is the stored form of a cache entry.
type Envelope struct {
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	ScopeKey  string          `json:"scope_key"`
}

// IsExpired reports whether the envelope is older than ttl. A ttl of zero or
// less never expires.
func (e Envelope) IsExpired(ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(e.Timestamp) > ttl
}

var errNotArray = errors.New("payload is not a JSON array")

// PersistentCache stores the last good graph and recommendation batches.
// It is best-effort: failures are logged as CacheError and reported to the
// caller only as a miss.
type PersistentCache struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
}

// NewPersistentCache wraps a backend.
func NewPersistentCache(backend Backend, logger *zap.Logger) *PersistentCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersistentCache{backend: backend, logger: logger, now: time.Now}
}

// Backend returns the underlying store.
func (c *PersistentCache) Backend() Backend {
	return c.backend
}

// Save stores payload under scope with the current time.
func (c *PersistentCache) Save(ctx context.Context, scope string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.fail("save", scope, err)
		return
	}
	data, err := json.Marshal(Envelope{Payload: raw, Timestamp: c.now().UTC(), ScopeKey: scope})
	if err != nil {
		c.fail("save", scope, err)
		return
	}
	if err := c.backend.Put(ctx, scope, data); err != nil {
		c.fail("save", scope, err)
		return
	}
	Operations.WithLabelValues("save", "ok").Inc()
}

// LoadIfValid decodes the payload stored under scope into out. Missing,
// malformed, undecodable or expired entries report false.
func (c *PersistentCache) LoadIfValid(ctx context.Context, scope string, out any, ttl time.Duration) (Envelope, bool) {
	data, ok, err := c.backend.Get(ctx, scope)
	if err != nil {
		c.fail("load", scope, err)
		return Envelope{}, false
	}
	if !ok {
		Operations.WithLabelValues("load", "miss").Inc()
		return Envelope{}, false
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || len(env.Payload) == 0 {
		c.malformed(scope, err)
		return Envelope{}, false
	}
	if env.IsExpired(ttl, c.now()) {
		Operations.WithLabelValues("load", "expired").Inc()
		return Envelope{}, false
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		c.malformed(scope, err)
		return Envelope{}, false
	}
	Operations.WithLabelValues("load", "hit").Inc()
	return env, true
}

// Clear removes the entry stored under scope.
func (c *PersistentCache) Clear(ctx context.Context, scope string) {
	if err := c.backend.Delete(ctx, scope); err != nil {
		c.fail("clear", scope, err)
		return
	}
	Operations.WithLabelValues("clear", "ok").Inc()
}

// SaveGraph stores a graph snapshot.
func (c *PersistentCache) SaveGraph(ctx context.Context, g graph.Graph) {
	c.Save(ctx, GraphScope, g)
}

// LoadGraph returns the cached graph snapshot when one exists and has at
// least one node.
func (c *PersistentCache) LoadGraph(ctx context.Context, ttl time.Duration) (graph.Graph, time.Time, bool) {
	var g graph.Graph
	env, ok := c.LoadIfValid(ctx, GraphScope, &g, ttl)
	if !ok || g.Len() == 0 {
		return graph.Graph{}, time.Time{}, false
	}
	return g, env.Timestamp, true
}

// SaveRecommendations stores a user's processed recommendation batch.
func (c *PersistentCache) SaveRecommendations(ctx context.Context, userID string, recs []recommend.Recommendation) {
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	c.Save(ctx, RecommendationScope(userID), recs)
}

// LoadRecommendations returns a user's cached batch when it is a non-empty
// array.
func (c *PersistentCache) LoadRecommendations(ctx context.Context, userID string, ttl time.Duration) ([]recommend.Recommendation, time.Time, bool) {
	scope := RecommendationScope(userID)
	var raw json.RawMessage
	env, ok := c.LoadIfValid(ctx, scope, &raw, ttl)
	if !ok {
		return nil, time.Time{}, false
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		c.malformed(scope, errNotArray)
		return nil, time.Time{}, false
	}
	var recs []recommend.Recommendation
	if err := json.Unmarshal(trimmed, &recs); err != nil {
		c.malformed(scope, err)
		return nil, time.Time{}, false
	}
	if len(recs) == 0 {
		return nil, time.Time{}, false
	}
	return recs, env.Timestamp, true
}

// ClearRecommendations removes a user's cached batch.
func (c *PersistentCache) ClearRecommendations(ctx context.Context, userID string) {
	c.Clear(ctx, RecommendationScope(userID))
}

func (c *PersistentCache) fail(op, scope string, err error) {
	Operations.WithLabelValues(op, "error").Inc()
	c.logger.Warn("cache_operation_failed", zap.Error(&CacheError{Op: op, Scope: scope, Err: err}))
}

func (c *PersistentCache) malformed(scope string, err error) {
	if err == nil {
		err = errors.New("empty payload")
	}
	Operations.WithLabelValues("load", "malformed").Inc()
	c.logger.Warn("cache_entry_malformed", zap.Error(&CacheError{Op: "load", Scope: scope, Err: err}))
}
