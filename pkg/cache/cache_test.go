package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/bookgraph/pkg/graph"
	"github.com/rmax-ai/bookgraph/pkg/recommend"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRecommendationCache_EvictsOldestOnInsert(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewRecommendationCache(20).WithClock(clock.Now)

	// Insert out of key order so the oldest entry is not the first key.
	order := []int{7, 3, 12, 0, 19, 5, 1, 2, 4, 6, 8, 9, 10, 11, 13, 14, 15, 16, 17, 18}
	for _, i := range order {
		c.Set(fmt.Sprintf("k%d", i), nil, "h")
		clock.Advance(time.Second)
	}
	require.Equal(t, 20, c.Len())

	c.Set("k20", nil, "h")
	assert.Equal(t, 20, c.Len())

	_, ok := c.Get("k7")
	assert.False(t, ok, "entry with the smallest timestamp must be evicted")
	for _, i := range order[1:] {
		_, ok := c.Get(fmt.Sprintf("k%d", i))
		assert.True(t, ok, "k%d should survive", i)
	}
}

func TestRecommendationCache_UpdateDoesNotEvict(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewRecommendationCache(2).WithClock(clock.Now)

	c.Set("a", nil, "h")
	clock.Advance(time.Second)
	c.Set("b", nil, "h")
	clock.Advance(time.Second)
	c.Set("a", []recommend.Recommendation{{Title: "x"}}, "h2")

	assert.Equal(t, 2, c.Len())
	e, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "h2", e.GraphHash)
	assert.Equal(t, clock.Now(), e.Timestamp)

	// "b" is now the oldest.
	c.Set("c", nil, "h")
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestRecommendationCache_IsExpiredBoundary(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewRecommendationCache(0).WithClock(clock.Now)
	c.Set("k", nil, "h")
	e, _ := c.Get("k")

	ttl := 5 * time.Minute
	clock.Advance(ttl)
	assert.False(t, c.IsExpired(e, ttl), "exactly at the boundary is not expired")

	clock.Advance(time.Millisecond)
	assert.True(t, c.IsExpired(e, ttl))
}

func TestRecommendationCache_ClearAndDelete(t *testing.T) {
	c := NewRecommendationCache(5)
	c.Set("a", nil, "h")
	c.Set("b", nil, "h")
	c.Delete("a")
	assert.Equal(t, 1, c.Len())
	c.Clear()
	assert.Zero(t, c.Len())
}

func TestGraphHash(t *testing.T) {
	a := GraphHash([]string{"n1", "n2", "n3"})
	assert.Equal(t, a, GraphHash([]string{"n3", "n1", "n2"}))
	assert.NotEqual(t, a, GraphHash([]string{"n1", "n2"}))
	assert.NotEqual(t, GraphHash([]string{"ab", "c"}), GraphHash([]string{"a", "bc"}))
}

func TestPersistentCache_GraphRoundTrip(t *testing.T) {
	ctx := context.Background()
	pc := NewPersistentCache(NewMemoryBackend(), nil)

	_, _, ok := pc.LoadGraph(ctx, 0)
	assert.False(t, ok)

	g := graph.NewGraph([]graph.Node{
		{ID: "n1", Label: "book", Properties: graph.Properties{Code: "ol123", Title: "Dune"}},
	}, []graph.Edge{})
	pc.SaveGraph(ctx, g)

	got, ts, ok := pc.LoadGraph(ctx, 0)
	require.True(t, ok)
	assert.False(t, ts.IsZero())
	want, err := json.Marshal(g)
	require.NoError(t, err)
	loaded, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(loaded))
}

func TestPersistentCache_EmptyGraphIsUnusable(t *testing.T) {
	ctx := context.Background()
	pc := NewPersistentCache(NewMemoryBackend(), nil)
	pc.SaveGraph(ctx, graph.NewGraph(nil, nil))

	_, _, ok := pc.LoadGraph(ctx, 0)
	assert.False(t, ok)
}

func TestPersistentCache_TTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	pc := NewPersistentCache(NewMemoryBackend(), nil)
	pc.now = clock.Now

	recs := []recommend.Recommendation{{ID: "ol1", Title: "Dune", MatchScore: 0.9}}
	pc.SaveRecommendations(ctx, "u1", recs)

	clock.Advance(time.Hour)
	_, _, ok := pc.LoadRecommendations(ctx, "u1", 0)
	assert.True(t, ok, "zero ttl never expires")
	_, _, ok = pc.LoadRecommendations(ctx, "u1", time.Hour)
	assert.True(t, ok)
	_, _, ok = pc.LoadRecommendations(ctx, "u1", time.Minute)
	assert.False(t, ok)

	_, _, ok = pc.LoadRecommendations(ctx, "someone-else", 0)
	assert.False(t, ok, "recommendations are scoped per user")
}

func TestPersistentCache_MalformedContentIsAbsent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	pc := NewPersistentCache(backend, nil)

	cases := map[string]string{
		"not json":       `{{{`,
		"no payload":     `{"timestamp":"2024-01-01T00:00:00Z"}`,
		"object payload": `{"payload":{"id":"x"},"timestamp":"2024-01-01T00:00:00Z"}`,
		"string payload": `{"payload":"oops","timestamp":"2024-01-01T00:00:00Z"}`,
		"empty array":    `{"payload":[],"timestamp":"2024-01-01T00:00:00Z"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, backend.Put(ctx, RecommendationScope("u"), []byte(raw)))
			recs, _, ok := pc.LoadRecommendations(ctx, "u", 0)
			assert.False(t, ok)
			assert.Nil(t, recs)

			require.NoError(t, backend.Put(ctx, GraphScope, []byte(raw)))
			_, _, ok = pc.LoadGraph(ctx, 0)
			assert.False(t, ok)
		})
	}
}

type failingBackend struct{}

var errQuota = errors.New("quota exceeded")

func (failingBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errQuota }
func (failingBackend) Put(context.Context, string, []byte) error         { return errQuota }
func (failingBackend) Delete(context.Context, string) error              { return errQuota }

func TestPersistentCache_SwallowsBackendErrors(t *testing.T) {
	ctx := context.Background()
	pc := NewPersistentCache(failingBackend{}, nil)

	assert.NotPanics(t, func() {
		pc.SaveGraph(ctx, graph.NewGraph([]graph.Node{{ID: "n"}}, nil))
		pc.ClearRecommendations(ctx, "u")
	})
	_, _, ok := pc.LoadGraph(ctx, 0)
	assert.False(t, ok)
}

func TestPersistentCache_Clear(t *testing.T) {
	ctx := context.Background()
	pc := NewPersistentCache(NewMemoryBackend(), nil)
	pc.SaveRecommendations(ctx, "u", []recommend.Recommendation{{ID: "a"}})
	pc.ClearRecommendations(ctx, "u")

	_, _, ok := pc.LoadRecommendations(ctx, "u", 0)
	assert.False(t, ok)
}

func TestCacheErrorUnwrap(t *testing.T) {
	err := &CacheError{Op: "save", Scope: GraphScope, Err: errQuota}
	assert.ErrorIs(t, err, errQuota)
	assert.Contains(t, err.Error(), "bookgraph:graph")
}
