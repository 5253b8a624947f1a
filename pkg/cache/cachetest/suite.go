// Package cachetest holds a conformance suite shared by cache.Backend
// implementations.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/bookgraph/pkg/cache"
)

// RunBackendTests exercises the Backend contract. If the backend also
// implements cache.Pruner, pruning is checked too.
func RunBackendTests(t *testing.T, b cache.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("MissingKey", func(t *testing.T) {
		v, ok, err := b.Get(ctx, "cachetest:missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("PutGetOverwrite", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "cachetest:a", []byte(`{"v":1}`)))
		v, ok, err := b.Get(ctx, "cachetest:a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, `{"v":1}`, string(v))

		require.NoError(t, b.Put(ctx, "cachetest:a", []byte(`{"v":2}`)))
		v, _, err = b.Get(ctx, "cachetest:a")
		require.NoError(t, err)
		assert.Equal(t, `{"v":2}`, string(v))
	})

	t.Run("KeysWithSeparators", func(t *testing.T) {
		key := "bookgraph:recommendations:user/with:odd chars"
		require.NoError(t, b.Put(ctx, key, []byte("[]")))
		v, ok, err := b.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "[]", string(v))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "cachetest:d", []byte("x")))
		require.NoError(t, b.Delete(ctx, "cachetest:d"))
		_, ok, err := b.Get(ctx, "cachetest:d")
		require.NoError(t, err)
		assert.False(t, ok)

		assert.NoError(t, b.Delete(ctx, "cachetest:never-written"))
	})

	t.Run("PersistentCacheRoundTrip", func(t *testing.T) {
		pc := cache.NewPersistentCache(b, nil)
		pc.Save(ctx, "cachetest:scope", map[string]int{"n": 3})

		var out map[string]int
		env, ok := pc.LoadIfValid(ctx, "cachetest:scope", &out, 0)
		require.True(t, ok)
		assert.Equal(t, 3, out["n"])
		assert.Equal(t, "cachetest:scope", env.ScopeKey)
	})

	pruner, ok := b.(cache.Pruner)
	if !ok {
		return
	}
	t.Run("Prune", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "cachetest:p", []byte("x")))

		n, err := pruner.Prune(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = pruner.Prune(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		_, found, err := b.Get(ctx, "cachetest:p")
		require.NoError(t, err)
		assert.False(t, found)
	})
}
