package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Status codes used for failures that did not come from a remote response.
const (
	StatusTransport   = 0
	StatusInvalid     = http.StatusUnprocessableEntity
	StatusBadResponse = http.StatusBadGateway
	StatusUnavailable = http.StatusServiceUnavailable
)

// RemoteError is the single failure kind of the gateway. StatusCode is the
// HTTP status of the response, or one of the Status* constants above.
type RemoteError struct {
	StatusCode int
	Message    string
	Operation  string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("remote error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: remote error (status %d): %s", e.Operation, e.StatusCode, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemoteError reports whether err is, or wraps, a RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// StatusOf returns the status carried by a RemoteError in err's chain and
// whether one was found.
func StatusOf(err error) (int, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode, true
	}
	return 0, false
}

func httpErrorMessage(status int) string {
	return fmt.Sprintf("HTTP error, status %d", status)
}
