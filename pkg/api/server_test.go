package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/bookgraph/pkg/engine"
	"github.com/rmax-ai/bookgraph/pkg/gateway"
	"github.com/rmax-ai/bookgraph/pkg/graph"
)

// remoteBackend is an in-memory stand-in for the remote graph service.
type remoteBackend struct {
	mu        sync.Mutex
	nodes     []graph.Node
	edges     []graph.Edge
	searchErr bool
	updates   []map[string]any
}

func (b *remoteBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/check", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /graph/show_graph", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeBody(w, http.StatusOK, graph.NewGraph(b.nodes, b.edges))
	})
	mux.HandleFunc("POST /books/search", func(w http.ResponseWriter, r *http.Request) {
		if b.searchErr {
			writeBody(w, http.StatusInternalServerError, map[string]string{"detail": "search backend down"})
			return
		}
		writeBody(w, http.StatusOK, map[string]any{"items": []gateway.BookSearchItem{
			{Code: "ol123", Title: "The Hobbit", Author: "Tolkien", Published: "1937", Subjects: []string{"fantasy"}},
		}})
	})
	mux.HandleFunc("POST /books/add_to_graph", func(w http.ResponseWriter, r *http.Request) {
		var item gateway.BookSearchItem
		_ = json.NewDecoder(r.Body).Decode(&item)
		n := graph.Node{ID: "node-" + item.Code, Label: graph.BookLabel, Properties: graph.Properties{
			Code: item.Code, Title: item.Title, Author: item.Author, Published: item.Published, Subjects: item.Subjects,
		}}
		b.mu.Lock()
		b.nodes = append(b.nodes, n)
		b.mu.Unlock()
		writeBody(w, http.StatusOK, n)
	})
	mux.HandleFunc("PUT /graph/change_node/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Label      string           `json:"label"`
			Properties graph.Properties `json:"properties"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.updates = append(b.updates, body.Properties.Map())
		for i := range b.nodes {
			if b.nodes[i].ID == r.PathValue("id") {
				b.nodes[i].Properties = body.Properties
				writeBody(w, http.StatusOK, map[string]string{"message": "Node updated"})
				return
			}
		}
		writeBody(w, http.StatusNotFound, map[string]string{"detail": "Node not found"})
	})
	mux.HandleFunc("DELETE /graph/remove_node/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		kept := b.nodes[:0]
		for _, n := range b.nodes {
			if n.ID != r.PathValue("id") {
				kept = append(kept, n)
			}
		}
		b.nodes = kept
		writeBody(w, http.StatusOK, map[string]string{"message": "Node removed"})
	})
	mux.HandleFunc("POST /graph/add_edge", func(w http.ResponseWriter, r *http.Request) {
		var e graph.Edge
		_ = json.NewDecoder(r.Body).Decode(&e)
		b.mu.Lock()
		b.edges = append(b.edges, e)
		b.mu.Unlock()
		writeBody(w, http.StatusOK, e)
	})
	mux.HandleFunc("POST /analytics/recommendations", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, map[string]any{
			"user_id": "u1",
			"recommendations": []map[string]any{
				{"book_id": "b1", "title": "Silmarillion", "author": nil, "reason": "same world", "score": 0.8},
				{"book_id": nil, "title": "Weak", "author": "X", "reason": "meh", "score": 0.1},
			},
		})
	})
	return mux
}

func writeBody(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type testEnv struct {
	backend *remoteBackend
	ctrl    *engine.Controller
	handler http.Handler
}

func newTestEnv(t *testing.T, initialize bool) *testEnv {
	t.Helper()
	backend := &remoteBackend{nodes: []graph.Node{
		{ID: "n1", Label: "Dune", Properties: graph.Properties{Code: "c1", Title: "Dune", Author: "Frank Herbert"}},
		{ID: "t1", Label: "Desert", Properties: graph.Properties{Author: "X"}},
	}}
	remote := httptest.NewServer(backend.handler())
	t.Cleanup(remote.Close)

	ctrl := engine.NewController(gateway.New(remote.URL), engine.Options{
		Recommendations: engine.RecommendationConfig{UserID: "u1"},
	})
	t.Cleanup(ctrl.Dispose)
	if initialize {
		require.NoError(t, ctrl.Init(context.Background()))
	}
	return &testEnv{backend: backend, ctrl: ctrl, handler: NewServer(ctrl, "", nil).Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestSecureHeaders(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	secureHandler := withSecureHeaders(handler)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	secureHandler.ServeHTTP(w, req)

	expectedHeaders := map[string]string{
		"Content-Security-Policy": "default-src 'none'",
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
	}
	for key, expected := range expectedHeaders {
		if got := w.Header().Get(key); got != expected {
			t.Errorf("Header %s: expected %q, got %q", key, expected, got)
		}
	}
}

func TestTraceID(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set("X-Trace-ID", "abc")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Trace-ID"))
}

func TestNotReady(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/v1/graph/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", decodeBody[ErrorResponse](t, rec).Error)

	health := decodeBody[HealthResponse](t, env.do(t, http.MethodGet, "/v1/health", nil))
	assert.Equal(t, engine.PhaseUninitialized, health.Phase)
}

func TestViewAndGraph(t *testing.T) {
	env := newTestEnv(t, true)

	view := decodeBody[engine.View](t, env.do(t, http.MethodGet, "/v1/view", nil))
	assert.Equal(t, engine.PhaseReady, view.Phase)
	assert.Len(t, view.Graph.Nodes, 2)
	require.Len(t, view.Books, 1)
	assert.Equal(t, "c1", view.Books[0].ID)

	rendered := decodeBody[graph.View](t, env.do(t, http.MethodGet, "/v1/graph", nil))
	assert.Len(t, rendered.Nodes, 2)
	assert.Equal(t, graph.KindBook, rendered.Nodes[0].Kind)

	raw := decodeBody[graph.Graph](t, env.do(t, http.MethodGet, "/v1/graph?raw=true", nil))
	assert.Equal(t, 2, raw.Len())
}

func TestAddSearchResult(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/v1/search", SearchRequest{Query: "hobbit", MaxResults: 5})
	require.Equal(t, http.StatusOK, rec.Code)
	found := decodeBody[struct {
		Items []gateway.BookSearchItem `json:"items"`
	}](t, rec)
	require.Len(t, found.Items, 1)

	rec = env.do(t, http.MethodPost, "/v1/books", found.Items[0])
	require.Equal(t, http.StatusCreated, rec.Code)

	lib := decodeBody[struct {
		Books []graph.Book `json:"books"`
	}](t, env.do(t, http.MethodGet, "/v1/library?q=hobbit", nil))
	require.Len(t, lib.Books, 1)
	assert.Equal(t, "ol123", lib.Books[0].ID)
	assert.Equal(t, "The Hobbit", lib.Books[0].Title)
}

func TestValidation(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"empty query", http.MethodPost, "/v1/search", SearchRequest{}},
		{"too many results", http.MethodPost, "/v1/search", SearchRequest{Query: "x", MaxResults: 41}},
		{"book without code", http.MethodPost, "/v1/books", gateway.BookSearchItem{Title: "x"}},
		{"self edge", http.MethodPost, "/v1/edges", EdgeRequest{Source: "a", Target: "a"}},
		{"missing progress", http.MethodPut, "/v1/library/c1/progress", map[string]any{}},
		{"progress too high", http.MethodPut, "/v1/library/c1/progress", map[string]any{"progress": 150}},
		{"missing active id", http.MethodPut, "/v1/library/active", ActiveRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json_body", decodeBody[ErrorResponse](t, rec).Error)
}

func TestEditDescription(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPut, "/v1/nodes/t1/description", DescriptionRequest{Description: "dry places"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, env.backend.updates, 1)
	assert.Equal(t, map[string]any{"author": "X", "description": "dry places"}, env.backend.updates[0])

	rec = env.do(t, http.MethodPut, "/v1/nodes/missing/description", DescriptionRequest{Description: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoteErrorMapping(t *testing.T) {
	env := newTestEnv(t, true)
	env.backend.searchErr = true

	rec := env.do(t, http.MethodPost, "/v1/search", SearchRequest{Query: "x"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "remote_error", body.Error)
	assert.Equal(t, "search backend down", body.Message)
	assert.Equal(t, 500, body.Status)
}

func TestLibraryActions(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPut, "/v1/library/c1/progress", map[string]any{"progress": 30})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodPut, "/v1/library/active", ActiveRequest{ID: "c1"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodPut, "/v1/library/zzz/progress", map[string]any{"progress": 30})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	view := decodeBody[engine.View](t, env.do(t, http.MethodGet, "/v1/view", nil))
	require.NotNil(t, view.ActiveBook)
	assert.Equal(t, 30, view.ActiveBook.Progress)

	rec = env.do(t, http.MethodDelete, "/v1/library/c1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.ctrl.Books())
}

func TestEdges(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/v1/edges", EdgeRequest{Source: "n1", Target: "t1", Weight: 0.5})
	require.Equal(t, http.StatusCreated, rec.Code)
	rendered := decodeBody[graph.View](t, env.do(t, http.MethodGet, "/v1/graph", nil))
	require.Len(t, rendered.Links, 1)
	assert.Equal(t, graph.LinkSimilarTheme, rendered.Links[0].Kind)
}

func TestRecommendationsAndReports(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/v1/recommendations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeBody[engine.RecommendationState](t, rec)
	require.Len(t, st.Recommendations, 2)
	assert.Equal(t, "Silmarillion", st.Recommendations[0].Title)
	assert.Nil(t, st.Recommendations[0].Author)
	assert.Equal(t, "rec-1", st.Recommendations[1].ID)

	rec = env.do(t, http.MethodGet, "/v1/reports?type=recommendations&min_score=0.5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 2)

	rec = env.do(t, http.MethodGet, "/v1/reports?type=library&format=json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = env.do(t, http.MethodGet, "/v1/reports?type=usage", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodGet, "/v1/reports", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/recommendations", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	st = decodeBody[engine.RecommendationState](t, env.do(t, http.MethodGet, "/v1/recommendations", nil))
	assert.True(t, st.Empty)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bookgraph_graph_loads_total")
}
