package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/bookgraph/pkg/config"
	"github.com/rmax-ai/bookgraph/pkg/engine"
)

func newBackendServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /graph/show_graph", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"nodes":[{"id":"n1","label":"book","properties":{"code":"ol1","title":"Dune"}}],"edges":[]}`))
	})
	mux.HandleFunc("GET /health/check", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_Backends(t *testing.T) {
	mr := miniredis.RunT(t)
	srv := newBackendServer(t)

	tests := []struct {
		backend string
		path    string
	}{
		{backend: config.BackendMemory},
		{backend: config.BackendSQLite, path: filepath.Join(t.TempDir(), "cache.db")},
		{backend: config.BackendFile, path: filepath.Join(t.TempDir(), "cache")},
		{backend: config.BackendRedis},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.API.URL = srv.URL
			cfg.Cache.Backend = tt.backend
			cfg.Cache.Path = tt.path
			cfg.Cache.RedisAddr = mr.Addr()
			cfg.Health.Interval = 0
			require.NoError(t, cfg.Validate())

			a, err := New(cfg, nil)
			require.NoError(t, err)
			t.Cleanup(func() { a.Close() })

			require.NoError(t, a.Controller.Init(context.Background()))
			assert.Equal(t, engine.PhaseReady, a.Controller.Phase())
			books := a.Controller.Books()
			require.Len(t, books, 1)
			assert.Equal(t, "Dune", books[0].Title)
		})
	}
}

func TestRefreshGraph_NonJSONSuccessKeepsSnapshot(t *testing.T) {
	var broken atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /graph/show_graph", func(w http.ResponseWriter, r *http.Request) {
		if broken.Load() {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>maintenance</html>"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"nodes":[{"id":"n1","label":"book","properties":{"code":"ol1","title":"Dune"}}],"edges":[]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.API.URL = srv.URL
	cfg.Cache.Backend = config.BackendSQLite
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")
	cfg.Health.Interval = 0
	require.NoError(t, cfg.Validate())

	a, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	require.NoError(t, a.Controller.Init(context.Background()))

	broken.Store(true)
	res, err := a.Controller.RefreshGraph(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.SourceCache, res.Source)
	assert.True(t, res.Degraded)
	assert.Equal(t, []string{"n1"}, a.Controller.Graph().NodeIDs())

	// A second failure still finds the persisted snapshot.
	res, err = a.Controller.RefreshGraph(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.SourceCache, res.Source)
}

func TestNew_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Cache.Backend = config.BackendRedis
	cfg.Cache.RedisAddr = addr

	_, err := New(cfg, nil)
	assert.ErrorContains(t, err, "failed to reach redis")
}

func TestClose_DisposesController(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Backend = config.BackendMemory

	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.Equal(t, engine.PhaseDisposed, a.Controller.Phase())
}
