// Package client drives one streaming chat-completion exchange over HTTP.
package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/mwallis/sidekick/internal/configuration"
	"github.com/mwallis/sidekick/internal/debug"
	"github.com/mwallis/sidekick/internal/provider"
	"github.com/mwallis/sidekick/internal/session"
	"github.com/mwallis/sidekick/internal/sse"
)

// Client posts provider requests and hands back decoding streams.
type Client struct {
	http *http.Client
}

// New returns a client. The timeout bounds a whole exchange including the
// streamed body; zero means no bound.
func New(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Stream builds the provider request from history plus new input, posts it,
// and returns the delta stream. Request-build failures (ErrEmptyRequest,
// ErrInvalidImage) pass through untouched; transport failures come back as
// *NetworkError and non-2xx responses as *HTTPError.
func (c *Client) Stream(
	ctx context.Context,
	p provider.Provider,
	config *configuration.APIConfig,
	history []*session.Message,
	input provider.Input,
) (*sse.Stream, error) {
	payload, err := p.BuildRequest(history, input, config)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint(config), bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	p.Authorize(request, config)
	request.Header.Set("Accept", "text/event-stream")

	debug.GetLogger().Debug("posting chat completion", "provider", p.Kind(), "model", config.Model)
	response, err := c.http.Do(request)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		defer response.Body.Close()
		return nil, newHTTPError(response.StatusCode, response.Body)
	}
	return sse.New(response.Body, p), nil
}

// drainDetail reads an error body and truncates it for diagnostics.
func drainDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	detail := extractErrorMessage(raw)
	if len(detail) > maxErrorDetail {
		detail = detail[:maxErrorDetail] + "..."
	}
	return detail
}
