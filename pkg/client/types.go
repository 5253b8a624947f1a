package client

import (
	"fmt"

	"github.com/rmax-ai/bookgraph/pkg/gateway"
	"github.com/rmax-ai/bookgraph/pkg/graph"
)

// APIError is returned for every non-2xx daemon response.
type APIError struct {
	// StatusCode is the daemon's HTTP status.
	StatusCode int
	// Code is the machine-readable error, e.g. "not_found".
	Code    string
	Message string
	// RemoteStatus is the backend status when the daemon relayed a
	// remote failure; zero otherwise.
	RemoteStatus int
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("daemon returned %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("daemon returned %d %s", e.StatusCode, e.Code)
}

type searchResponse struct {
	Items []gateway.BookSearchItem `json:"items"`
}

type libraryResponse struct {
	Books []graph.Book `json:"books"`
}
