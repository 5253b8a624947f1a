package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rmax-ai/bookgraph/pkg/engine"
	"github.com/rmax-ai/bookgraph/pkg/gateway"
	"github.com/rmax-ai/bookgraph/pkg/graph"
	"github.com/rmax-ai/bookgraph/pkg/reports"
)

// Context keys
type contextKey string

const traceIDKey contextKey = "trace_id"

// DefaultAddr is the listen address used when none is given.
const DefaultAddr = "127.0.0.1:8091"

// ControllerInterface is the part of the engine the API drives.
type ControllerInterface interface {
	reports.ReportSource

	Phase() engine.Phase
	View() engine.View
	Graph() graph.Graph
	Books() []graph.Book
	Health() engine.HealthState
	CheckHealth(ctx context.Context) (engine.HealthState, error)

	RefreshGraph(ctx context.Context) (engine.LoadResult, error)
	SearchBooks(ctx context.Context, query string, maxResults int) ([]gateway.BookSearchItem, error)
	AddBook(ctx context.Context, item gateway.BookSearchItem) (graph.Node, error)
	EditNodeDescription(ctx context.Context, nodeID, text string) error
	AddNode(ctx context.Context, label string, props graph.Properties) (graph.Node, error)
	RemoveNode(ctx context.Context, nodeID string) error
	AddEdge(ctx context.Context, source, target string, weight float64) (graph.Edge, error)
	RemoveEdge(ctx context.Context, source, target string) error

	RemoveBook(ctx context.Context, bookID string) error
	SetProgress(bookID string, progress int) error
	SetActiveBook(bookID string) error

	FetchRecommendations(ctx context.Context) (engine.RecommendationState, error)
	ClearRecommendations(ctx context.Context) error
}

var _ ControllerInterface = (*engine.Controller)(nil)

// Server exposes the controller's presentation contract over local HTTP.
type Server struct {
	ctrl     ControllerInterface
	server   *http.Server
	logger   *zap.Logger
	validate *validator.Validate
}

// NewServer creates a new API server instance.
func NewServer(ctrl ControllerInterface, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		ctrl:     ctrl,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/view", s.handleView)
	mux.HandleFunc("GET /v1/graph", s.handleGraph)
	mux.HandleFunc("POST /v1/graph/refresh", s.handleRefresh)
	mux.HandleFunc("POST /v1/search", s.handleSearch)
	mux.HandleFunc("POST /v1/books", s.handleAddBook)
	mux.HandleFunc("POST /v1/nodes", s.handleAddNode)
	mux.HandleFunc("DELETE /v1/nodes/{id}", s.handleRemoveNode)
	mux.HandleFunc("PUT /v1/nodes/{id}/description", s.handleEditDescription)
	mux.HandleFunc("POST /v1/edges", s.handleAddEdge)
	mux.HandleFunc("DELETE /v1/edges/{source}/{target}", s.handleRemoveEdge)
	mux.HandleFunc("GET /v1/library", s.handleLibrary)
	mux.HandleFunc("PUT /v1/library/active", s.handleSetActive)
	mux.HandleFunc("PUT /v1/library/{id}/progress", s.handleSetProgress)
	mux.HandleFunc("DELETE /v1/library/{id}", s.handleRemoveBook)
	mux.HandleFunc("GET /v1/recommendations", s.handleRecommendations)
	mux.HandleFunc("POST /v1/recommendations", s.handleFetchRecommendations)
	mux.HandleFunc("DELETE /v1/recommendations", s.handleClearRecommendations)
	mux.HandleFunc("GET /v1/reports", s.handleReports)

	// Middleware: Logging, Panic Recovery, Security Headers
	handler := s.withLogging(s.withRecovery(withSecureHeaders(mux)))

	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	s.logger.Info("server_starting", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server_stopping")
	return s.server.Shutdown(ctx)
}

// Middleware: Panic Recovery
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic_recovered",
					zap.Any("error", err),
					zap.String("path", r.URL.Path),
					zap.String("trace_id", getTraceID(r.Context())))
				writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Request Logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		s.logger.Info("http_request",
			zap.String("trace_id", traceID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// statusWriter captures HTTP status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Middleware: Secure Headers
func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}
