package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for MIME sniffing to report image/png.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestFetchImageFromURL(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngHeader)
	}))
	t.Cleanup(server.Close)

	image, err := FetchImage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", image.MimeType)
	assert.Equal(t, pngHeader, image.Data)
}

func TestFetchImageStripsContentTypeParameters(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png; charset=binary")
		w.Write(pngHeader)
	}))
	t.Cleanup(server.Close)

	image, err := FetchImage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", image.MimeType)
}

func TestFetchImageRejectsNonImage(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	t.Cleanup(server.Close)

	_, err := FetchImage(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrInvalidImage)
}

func TestFetchImageFromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "image.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o644))

	image, err := FetchImage(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", image.MimeType)
	assert.Equal(t, pngHeader, image.Data)
}

func TestFetchImageMissingFile(t *testing.T) {
	t.Parallel()
	_, err := FetchImage(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}
