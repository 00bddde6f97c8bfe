package gatelog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxReferenceBytes bounds reference image downloads.
const maxReferenceBytes = 10 << 20

// HTTPImageFetcher downloads reference images over HTTP, typically from
// the image CDN the card photos were uploaded to.
type HTTPImageFetcher struct {
	HTTP *http.Client
}

// NewHTTPImageFetcher creates a fetcher with a short timeout.
func NewHTTPImageFetcher() *HTTPImageFetcher {
	return &HTTPImageFetcher{HTTP: &http.Client{Timeout: 10 * time.Second}}
}

// Fetch downloads the image at url.
func (f *HTTPImageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch reference image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch reference image: %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxReferenceBytes))
}
