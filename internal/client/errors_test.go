package client

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPErrorClass(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{status: 401, want: ErrorClassAuth},
		{status: 403, want: ErrorClassAuth},
		{status: 429, want: ErrorClassRateLimit},
		{status: 500, want: ErrorClassServer},
		{status: 503, want: ErrorClassServer},
		{status: 404, want: ErrorClassOther},
		{status: 400, want: ErrorClassOther},
	}
	for _, tt := range tests {
		err := &HTTPError{Status: tt.status}
		assert.Equalf(t, tt.want, err.Class(), "status %d", tt.status)
	}
}

func TestNewHTTPErrorExtractsJSONMessage(t *testing.T) {
	t.Parallel()
	body := strings.NewReader(`{"error":{"code":429,"message":"quota exceeded"}}`)
	err := newHTTPError(429, body)
	assert.Equal(t, 429, err.Status)
	assert.Equal(t, "quota exceeded", err.Detail)
}

func TestNewHTTPErrorFallsBackToRawBody(t *testing.T) {
	t.Parallel()
	err := newHTTPError(502, strings.NewReader("bad gateway"))
	assert.Equal(t, "bad gateway", err.Detail)
}

func TestNewHTTPErrorTruncatesDetail(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 5000)
	err := newHTTPError(500, strings.NewReader(long))
	require.LessOrEqual(t, len(err.Detail), maxErrorDetail+len("..."))
	assert.True(t, strings.HasSuffix(err.Detail, "..."))
}

func TestNetworkErrorUnwraps(t *testing.T) {
	t.Parallel()
	inner := assert.AnError
	err := &NetworkError{Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), inner.Error())
}
