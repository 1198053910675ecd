package client

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// maxErrorDetail caps the raw error body carried for diagnostics.
const maxErrorDetail = 200

// ErrEmptyStream means the stream completed with zero deltas. It is distinct
// from a network error: the exchange succeeded but produced nothing.
var ErrEmptyStream = errors.New("the API returned an empty streaming response")

// ErrorClass buckets HTTP failures into user-facing categories.
type ErrorClass int

const (
	// ErrorClassOther covers statuses with no dedicated message.
	ErrorClassOther ErrorClass = iota
	// ErrorClassAuth is 401/403.
	ErrorClassAuth
	// ErrorClassRateLimit is 429.
	ErrorClassRateLimit
	// ErrorClassServer is any 5xx.
	ErrorClassServer
)

// HTTPError is a non-2xx chat-completion response.
type HTTPError struct {
	Status int
	// Detail is the (truncated) raw error body, for diagnostics.
	Detail string
}

// Error implements error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("API call failed (status %d): %s", e.Status, e.Detail)
}

// Class of the failure.
func (e *HTTPError) Class() ErrorClass {
	switch {
	case e.Status == 401 || e.Status == 403:
		return ErrorClassAuth
	case e.Status == 429:
		return ErrorClassRateLimit
	case e.Status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassOther
	}
}

// NetworkError is a transport-level failure: the request never produced an
// HTTP response at all.
type NetworkError struct {
	Err error
}

// Error implements error.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure: %v", e.Err)
}

// Unwrap exposes the transport error.
func (e *NetworkError) Unwrap() error { return e.Err }

func newHTTPError(status int, body io.Reader) *HTTPError {
	return &HTTPError{Status: status, Detail: drainDetail(body)}
}

// extractErrorMessage prefers the structured error message when the body is
// JSON of the shape {"error": {"message": ...}}; otherwise the raw body.
func extractErrorMessage(raw []byte) string {
	var structured struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &structured); err != nil || len(structured.Error) == 0 {
		return string(raw)
	}
	var inner struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(structured.Error, &inner); err == nil && inner.Message != "" {
		return inner.Message
	}
	return string(structured.Error)
}
