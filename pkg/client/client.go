package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rmax-ai/bookgraph/pkg/api"
	"github.com/rmax-ai/bookgraph/pkg/engine"
	"github.com/rmax-ai/bookgraph/pkg/gateway"
	"github.com/rmax-ai/bookgraph/pkg/graph"
	"github.com/rmax-ai/bookgraph/pkg/reports"
)

// DefaultEndpoint is where bookgraph-d listens unless configured otherwise.
const DefaultEndpoint = "http://" + api.DefaultAddr

// Client is the bookgraph-d SDK client.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a new bookgraph-d client.
// endpoint defaults to DefaultEndpoint if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Endpoint returns the daemon base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Ping checks the health of the daemon. With check set, the daemon probes
// the remote backend before answering.
func (c *Client) Ping(ctx context.Context, check bool) (api.HealthResponse, error) {
	var out api.HealthResponse
	path := "/v1/health"
	if check {
		path += "?check=true"
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// View fetches the full presentation view.
func (c *Client) View(ctx context.Context) (engine.View, error) {
	var out engine.View
	err := c.do(ctx, http.MethodGet, "/v1/view", nil, &out)
	return out, err
}

// RefreshGraph asks the daemon to reload the graph from the backend.
func (c *Client) RefreshGraph(ctx context.Context) (engine.LoadResult, error) {
	var out engine.LoadResult
	err := c.do(ctx, http.MethodPost, "/v1/graph/refresh", nil, &out)
	return out, err
}

// Search searches the book catalogue through the daemon.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]gateway.BookSearchItem, error) {
	var out searchResponse
	err := c.do(ctx, http.MethodPost, "/v1/search", api.SearchRequest{Query: query, MaxResults: maxResults}, &out)
	return out.Items, err
}

// AddBook adds a search result to the graph.
func (c *Client) AddBook(ctx context.Context, item gateway.BookSearchItem) (graph.Node, error) {
	var out graph.Node
	err := c.do(ctx, http.MethodPost, "/v1/books", item, &out)
	return out, err
}

// EditDescription replaces a node's description.
func (c *Client) EditDescription(ctx context.Context, nodeID, description string) error {
	path := "/v1/nodes/" + url.PathEscape(nodeID) + "/description"
	return c.do(ctx, http.MethodPut, path, api.DescriptionRequest{Description: description}, nil)
}

// Library lists books whose title or author matches query; empty lists all.
func (c *Client) Library(ctx context.Context, query string) ([]graph.Book, error) {
	path := "/v1/library"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var out libraryResponse
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Books, err
}

// SetProgress records reading progress (0-100) for a book.
func (c *Client) SetProgress(ctx context.Context, bookID string, progress int) error {
	path := "/v1/library/" + url.PathEscape(bookID) + "/progress"
	return c.do(ctx, http.MethodPut, path, api.ProgressRequest{Progress: &progress}, nil)
}

// SetActive selects the book being read.
func (c *Client) SetActive(ctx context.Context, bookID string) error {
	return c.do(ctx, http.MethodPut, "/v1/library/active", api.ActiveRequest{ID: bookID}, nil)
}

// RemoveBook deletes a book from the graph and the library.
func (c *Client) RemoveBook(ctx context.Context, bookID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/library/"+url.PathEscape(bookID), nil, nil)
}

// FetchRecommendations asks the daemon for a fresh batch.
func (c *Client) FetchRecommendations(ctx context.Context) (engine.RecommendationState, error) {
	var out engine.RecommendationState
	err := c.do(ctx, http.MethodPost, "/v1/recommendations", nil, &out)
	return out, err
}

// ClearRecommendations discards current and cached recommendations.
func (c *Client) ClearRecommendations(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/recommendations", nil, nil)
}

// Report downloads an export.
func (c *Client) Report(ctx context.Context, typ reports.ReportType, format reports.ReportFormat, params reports.ReportParams) ([]byte, error) {
	q := url.Values{}
	q.Set("type", string(typ))
	if format != "" {
		q.Set("format", string(format))
	}
	if params.Query != "" {
		q.Set("q", params.Query)
	}
	if params.MinScore > 0 {
		q.Set("min_score", fmt.Sprintf("%g", params.MinScore))
	}

	resp, err := c.send(ctx, http.MethodGet, "/v1/reports?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// send performs the request and turns non-2xx responses into *APIError.
// The caller closes the body of a successful response.
func (c *Client) send(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
			apiErr.Code = er.Error
			apiErr.Message = er.Message
			apiErr.RemoteStatus = er.Status
		}
		return nil, apiErr
	}
	return resp, nil
}
