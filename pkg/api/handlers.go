package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/rmax-ai/bookgraph/pkg/engine"
	"github.com/rmax-ai/bookgraph/pkg/gateway"
	"github.com/rmax-ai/bookgraph/pkg/reports"
)

const maxBodyBytes = 1 << 20

// handleHealth reports the daemon's own status plus the last backend check.
// Pass ?check=true to run a backend check first.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	backend := s.ctrl.Health()
	if r.URL.Query().Get("check") == "true" {
		backend, _ = s.ctrl.CheckHealth(r.Context())
	}
	s.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:  "ok",
		Phase:   s.ctrl.Phase(),
		Backend: backend,
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.ctrl.View())
}

// handleGraph returns the render view, or the raw {nodes, edges} snapshot
// with ?raw=true.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g := s.ctrl.Graph()
	if r.URL.Query().Get("raw") == "true" {
		s.writeJSON(w, r, http.StatusOK, g)
		return
	}
	s.writeJSON(w, r, http.StatusOK, g.Render())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.ctrl.RefreshGraph(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	items, err := s.ctrl.SearchBooks(r.Context(), req.Query, req.MaxResults)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []gateway.BookSearchItem{}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var item gateway.BookSearchItem
	if !s.decode(w, r, &item) {
		return
	}
	node, err := s.ctrl.AddBook(r.Context(), item)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, node)
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req NodeRequest
	if !s.decode(w, r, &req) {
		return
	}
	node, err := s.ctrl.AddNode(r.Context(), req.Label, req.Properties)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, node)
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.RemoveNode(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEditDescription(w http.ResponseWriter, r *http.Request) {
	var req DescriptionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ctrl.EditNodeDescription(r.Context(), r.PathValue("id"), req.Description); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	var req EdgeRequest
	if !s.decode(w, r, &req) {
		return
	}
	edge, err := s.ctrl.AddEdge(r.Context(), req.Source, req.Target, req.Weight)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, edge)
}

func (s *Server) handleRemoveEdge(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.RemoveEdge(r.Context(), r.PathValue("source"), r.PathValue("target")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	books, err := s.ctrl.FilterBooks(r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"books": books})
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req ActiveRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ctrl.SetActiveBook(req.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetProgress(w http.ResponseWriter, r *http.Request) {
	var req ProgressRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ctrl.SetProgress(r.PathValue("id"), *req.Progress); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveBook(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.RemoveBook(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.ctrl.Recommendations())
}

func (s *Server) handleFetchRecommendations(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.FetchRecommendations(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, st)
}

func (s *Server) handleClearRecommendations(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.ClearRecommendations(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReports generates and streams reports.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reportType := reports.ReportType(q.Get("type"))
	if reportType == "" {
		writeJSONError(w, http.StatusBadRequest, "missing_type", "")
		return
	}
	format := reports.ReportFormat(q.Get("format"))
	if format == "" {
		format = reports.ReportFormatCSV
	}

	params := reports.ReportParams{Query: q.Get("q")}
	if ms := q.Get("min_score"); ms != "" {
		v, err := strconv.ParseFloat(ms, 64)
		if err != nil || v < 0 || v > 1 {
			writeJSONError(w, http.StatusBadRequest, "invalid_min_score", "must be a number between 0 and 1")
			return
		}
		params.MinScore = v
	}

	gen, err := reports.NewReportGenerator(reportType, format, s.ctrl)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_report", err.Error())
		return
	}
	reader, err := gen.Generate(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	filename := fmt.Sprintf("bookgraph_%s_%d.%s", reportType, time.Now().Unix(), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("failed_to_stream_report", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
	}
}

// decode reads and validates a JSON body. It writes a 400 and returns false
// on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json_body", "")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed_to_encode_response", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
	}
}

// writeError maps engine and gateway errors onto HTTP statuses. A remote
// error keeps its status; transport failures become 502.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var re *gateway.RemoteError
	switch {
	case errors.Is(err, engine.ErrNotReady):
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", "")
	case errors.Is(err, engine.ErrDisposed):
		writeJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
	case errors.Is(err, engine.ErrNodeNotFound), errors.Is(err, engine.ErrBookNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, engine.ErrInvalidProgress):
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.As(err, &re):
		status := re.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "remote_error", Message: re.Message, Status: re.StatusCode})
	default:
		s.logger.Error("request_failed", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "")
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: code, Message: message})
}
