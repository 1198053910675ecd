package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func servePage(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPageExtractsTitleAndText(t *testing.T) {
	t.Parallel()
	server := servePage(t, `<html>
		<head><title> The Page Title </title><style>p { color: red }</style></head>
		<body>
			<nav>skip me</nav>
			<script>var skipped = true;</script>
			<p>First   paragraph.</p>
			<p>Second paragraph.</p>
			<footer>skip me too</footer>
		</body>
	</html>`)

	result, err := Page(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "The Page Title", result.Title)
	assert.Contains(t, result.Content, "First paragraph.")
	assert.Contains(t, result.Content, "Second paragraph.")
	assert.NotContains(t, result.Content, "skip me")
	assert.NotContains(t, result.Content, "skipped")
	assert.NotContains(t, result.Content, "color")
	assert.Empty(t, result.Warning)
}

func TestPageEmptyBody(t *testing.T) {
	t.Parallel()
	server := servePage(t, `<html><head><script>only();</script></head><body></body></html>`)
	_, err := Page(context.Background(), server.URL)
	require.Error(t, err)
}

func TestPageHTTPErrorStatus(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	_, err := Page(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestPageTruncatesLongContent(t *testing.T) {
	t.Parallel()
	server := servePage(t, "<html><body><p>"+strings.Repeat("word ", maxContentRunes)+"</p></body></html>")

	result, err := Page(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, []rune(result.Content), maxContentRunes)
	assert.Equal(t, "content truncated", result.Warning)
}

func TestCollapseWhitespace(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a b c", collapseWhitespace("  a\n\n b\t\tc  "))
	assert.Equal(t, "", collapseWhitespace(" \n\t "))
}
