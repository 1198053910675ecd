// Package extract fetches a web page and reduces it to its readable text.
package extract

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// fetchTimeout bounds the whole page load; a page that has not finished by
// then is treated as failed and cleaned up.
const fetchTimeout = 20 * time.Second

// maxContentRunes caps the extracted text handed to the model.
const maxContentRunes = 50000

// Result of a page extraction.
type Result struct {
	Content string
	Title   string
	// Warning is set when the content was degraded (e.g. truncated) but still
	// usable.
	Warning string
}

// skippedElements never contribute readable text.
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"nav": true, "header": true, "footer": true, "aside": true,
	"iframe": true, "svg": true, "form": true, "button": true,
}

// Page fetches url and extracts its title and main text content.
func Page(ctx context.Context, url string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building page request")
	}
	request.Header.Set("Accept", "text/html")
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return nil, errors.Wrap(err, "fetching page")
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, errors.Errorf("fetching page: HTTP %d", response.StatusCode)
	}

	document, err := html.Parse(response.Body)
	if err != nil {
		return nil, errors.Wrap(err, "parsing page")
	}

	result := &Result{}
	var builder strings.Builder
	collectText(document, &builder, result)
	result.Content = collapseWhitespace(builder.String())
	if result.Content == "" {
		return nil, errors.New("no readable text found on the page")
	}
	if runes := []rune(result.Content); len(runes) > maxContentRunes {
		result.Content = string(runes[:maxContentRunes])
		result.Warning = "content truncated"
	}
	return result, nil
}

func collectText(node *html.Node, builder *strings.Builder, result *Result) {
	switch node.Type {
	case html.ElementNode:
		if skippedElements[node.Data] {
			return
		}
		if node.Data == "title" && result.Title == "" {
			if node.FirstChild != nil && node.FirstChild.Type == html.TextNode {
				result.Title = strings.TrimSpace(node.FirstChild.Data)
			}
			return
		}
	case html.TextNode:
		builder.WriteString(node.Data)
		builder.WriteString(" ")
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, builder, result)
	}
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
