package provider

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Fetching an image mirrors the extraction timeout: a stuck source is treated
// as failed and cleaned up.
const imageFetchTimeout = 20 * time.Second

const maxImageBytes = 20 << 20

// FetchImage loads an attachment from a local path or an http(s) URL and
// verifies it is an image. A non-image MIME type fails with ErrInvalidImage.
func FetchImage(ctx context.Context, source string) (*Image, error) {
	var data []byte
	var declaredType string

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		client := &http.Client{Timeout: imageFetchTimeout}
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, errors.Wrap(err, "building image request")
		}
		response, err := client.Do(request)
		if err != nil {
			return nil, errors.Wrap(err, "fetching image")
		}
		defer response.Body.Close()
		if response.StatusCode < 200 || response.StatusCode > 299 {
			return nil, errors.Errorf("fetching image: HTTP %d", response.StatusCode)
		}
		declaredType = response.Header.Get("Content-Type")
		data, err = io.ReadAll(io.LimitReader(response.Body, maxImageBytes))
		if err != nil {
			return nil, errors.Wrap(err, "reading image body")
		}
	} else {
		var err error
		data, err = os.ReadFile(source)
		if err != nil {
			return nil, errors.Wrap(err, "reading image file")
		}
	}

	mimeType := declaredType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, errors.Wrapf(ErrInvalidImage, "mime type %s", mimeType)
	}
	return &Image{MimeType: mimeType, Data: data}, nil
}
