package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/rmax-ai/bookgraph/pkg/graph"
)

// DefaultBaseURL is the address of a locally running backend.
const DefaultBaseURL = "http://localhost:8000"

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxResults = 10
	maxBodyBytes      = 16 << 20
)

// Client talks to the remote book search, graph and recommendation services.
// It never retries; every failure is returned as a *RemoteError.
type Client struct {
	baseURL  string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*response]
	logger   *zap.Logger
	validate *validator.Validate
}

type options struct {
	timeout     time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
	maxFailures uint32
	openTimeout time.Duration
}

// Option configures a Client.
type Option func(*options)

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient replaces the HTTP client. WithTimeout is ignored then.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBreaker configures the circuit breaker.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(o *options) {
		o.maxFailures = maxFailures
		o.openTimeout = openTimeout
	}
}

// New creates a client for the backend at baseURL.
// baseURL defaults to DefaultBaseURL if empty.
func New(baseURL string, opts ...Option) *Client {
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: o.timeout}
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     hc,
		breaker:  newBreaker(o.maxFailures, o.openTimeout, o.logger),
		logger:   o.logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks that the backend is up.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var status HealthStatus
	err := c.do(ctx, "health", http.MethodGet, "/health/check", nil, &status)
	return status, err
}

// SearchBooks queries the book search service. maxResults of 0 means 10.
func (c *Client) SearchBooks(ctx context.Context, query string, maxResults int) ([]BookSearchItem, error) {
	if maxResults == 0 {
		maxResults = defaultMaxResults
	}
	req := searchRequest{Query: strings.TrimSpace(query), MaxResults: maxResults}
	var resp searchResponse
	if err := c.do(ctx, "search_books", http.MethodPost, "/books/search", &req, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return []BookSearchItem{}, nil
	}
	return resp.Items, nil
}

// AddBookToGraph creates a book node from a search result.
func (c *Client) AddBookToGraph(ctx context.Context, item BookSearchItem) (graph.Node, error) {
	if item.Subjects == nil {
		item.Subjects = []string{}
	}
	var node graph.Node
	err := c.do(ctx, "add_book", http.MethodPost, "/books/add_to_graph", &item, &node)
	return node, err
}

// FetchGraph downloads the full graph snapshot.
func (c *Client) FetchGraph(ctx context.Context) (graph.Graph, error) {
	var resp struct {
		Nodes []graph.Node `json:"nodes" validate:"required,dive"`
		Edges []graph.Edge `json:"edges" validate:"dive"`
	}
	if err := c.do(ctx, "fetch_graph", http.MethodGet, "/graph/show_graph", nil, &resp); err != nil {
		return graph.Graph{}, err
	}
	return graph.NewGraph(resp.Nodes, resp.Edges), nil
}

// AddNode creates a node.
func (c *Client) AddNode(ctx context.Context, label string, props graph.Properties) (graph.Node, error) {
	req := nodeRequest{Label: label, Properties: props}
	var node graph.Node
	err := c.do(ctx, "add_node", http.MethodPost, "/graph/add_node", &req, &node)
	return node, err
}

// UpdateNode replaces a node's label and properties.
func (c *Client) UpdateNode(ctx context.Context, id, label string, props graph.Properties) (MessageResponse, error) {
	if id == "" {
		return MessageResponse{}, invalid("update_node", "node id is required")
	}
	req := nodeRequest{Label: label, Properties: props}
	var resp MessageResponse
	err := c.do(ctx, "update_node", http.MethodPut, "/graph/change_node/"+url.PathEscape(id), &req, &resp)
	return resp, err
}

// RemoveNode deletes a node and its edges.
func (c *Client) RemoveNode(ctx context.Context, id string) (MessageResponse, error) {
	if id == "" {
		return MessageResponse{}, invalid("remove_node", "node id is required")
	}
	var resp MessageResponse
	err := c.do(ctx, "remove_node", http.MethodDelete, "/graph/remove_node/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// AddEdge connects two nodes. A weight of 0 means 1.0.
func (c *Client) AddEdge(ctx context.Context, source, target string, weight float64) (graph.Edge, error) {
	if weight == 0 {
		weight = 1.0
	}
	req := edgeRequest{Source: source, Target: target, Weight: weight}
	var edge graph.Edge
	err := c.do(ctx, "add_edge", http.MethodPost, "/graph/add_edge", &req, &edge)
	return edge, err
}

// RemoveEdge deletes the edge between two nodes.
func (c *Client) RemoveEdge(ctx context.Context, source, target string) (MessageResponse, error) {
	if source == "" || target == "" {
		return MessageResponse{}, invalid("remove_edge", "source and target are required")
	}
	var resp MessageResponse
	path := "/graph/remove_edge/" + url.PathEscape(source) + "/" + url.PathEscape(target)
	err := c.do(ctx, "remove_edge", http.MethodDelete, path, nil, &resp)
	return resp, err
}

// RequestRecommendations asks the backend to compute fresh recommendations.
func (c *Client) RequestRecommendations(ctx context.Context, userID string, limit int) ([]RawRecommendation, error) {
	req := recommendationsRequest{UserID: userID, Limit: limit}
	var resp RecommendationsResponse
	if err := c.do(ctx, "request_recommendations", http.MethodPost, "/analytics/recommendations", &req, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Recommendations), nil
}

// FetchSavedRecommendations returns the recommendations computed last.
func (c *Client) FetchSavedRecommendations(ctx context.Context) ([]RawRecommendation, error) {
	var resp RecommendationsResponse
	if err := c.do(ctx, "fetch_saved_recommendations", http.MethodGet, "/analytics/recommendations", nil, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Recommendations), nil
}

func nonNil(recs []RawRecommendation) []RawRecommendation {
	if recs == nil {
		return []RawRecommendation{}
	}
	return recs
}

type response struct {
	status      int
	contentType string
	body        []byte
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(op, outcome(err)).Inc()
		if err != nil {
			c.logger.Debug("remote_request_failed", zap.String("operation", op), zap.Error(err))
		}
	}()

	var body []byte
	if in != nil {
		if verr := c.validate.Struct(in); verr != nil {
			return invalid(op, verr.Error())
		}
		body, err = json.Marshal(in)
		if err != nil {
			return &RemoteError{StatusCode: StatusInvalid, Message: "failed to encode request", Operation: op, Err: err}
		}
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.roundTrip(ctx, op, method, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &RemoteError{StatusCode: StatusUnavailable, Message: "backend unavailable (circuit open)", Operation: op, Err: err}
		}
		return err
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(resp.body)) == 0 || !strings.Contains(resp.contentType, "application/json") {
		// Acknowledgements may come back as plain text; payloads may not.
		if _, ack := out.(*MessageResponse); ack {
			return nil
		}
		return &RemoteError{
			StatusCode: StatusBadResponse,
			Message:    fmt.Sprintf("expected a JSON body, got %q", resp.contentType),
			Operation:  op,
		}
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &RemoteError{StatusCode: StatusBadResponse, Message: "failed to decode response", Operation: op, Err: err}
	}
	if verr := c.validate.Struct(out); verr != nil {
		return &RemoteError{StatusCode: StatusBadResponse, Message: "invalid response: " + verr.Error(), Operation: op, Err: verr}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body []byte) (*response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &RemoteError{StatusCode: StatusTransport, Message: err.Error(), Operation: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, &RemoteError{StatusCode: StatusTransport, Message: err.Error(), Operation: op, Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, &RemoteError{StatusCode: StatusTransport, Message: "failed to read response: " + err.Error(), Operation: op, Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &RemoteError{
			StatusCode: httpResp.StatusCode,
			Message:    detailMessage(httpResp.StatusCode, data),
			Operation:  op,
		}
	}
	return &response{
		status:      httpResp.StatusCode,
		contentType: httpResp.Header.Get("Content-Type"),
		body:        data,
	}, nil
}

// detailMessage extracts the "detail" field of an error body. Structured
// details (such as validation error lists) are returned as JSON text.
func detailMessage(status int, body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 || string(payload.Detail) == "null" {
		return httpErrorMessage(status)
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		if s == "" {
			return httpErrorMessage(status)
		}
		return s
	}
	return string(payload.Detail)
}

func invalid(op, msg string) *RemoteError {
	return &RemoteError{StatusCode: StatusInvalid, Message: msg, Operation: op}
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if status, ok := StatusOf(err); ok {
		switch {
		case status == StatusTransport:
			return "transport_error"
		case status == StatusUnavailable:
			return "unavailable"
		case status >= 500:
			return "server_error"
		default:
			return fmt.Sprintf("client_error_%d", status/100*100)
		}
	}
	return "error"
}
