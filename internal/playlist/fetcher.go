package playlist

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/jmylchreest/hlsthumb/internal/httpclient"
)

// Fetcher retrieves a playlist body from a URL in a single attempt, with
// no internal retry: retry/backoff policy belongs to the Poller, which
// needs to special-case 404 and apply its own attempt budget.
type Fetcher interface {
	FetchOnce(ctx context.Context, url string) (status int, body []byte, err error)
}

// HTTPFetcher is the default Fetcher, backed by the resilient HTTP client.
type HTTPFetcher struct {
	client *httpclient.Client
}

// NewHTTPFetcher creates a Fetcher using the given HTTP client.
func NewHTTPFetcher(client *httpclient.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

// FetchOnce performs exactly one GET, returning the status code and body
// even on non-2xx responses so the caller can apply its own policy.
func (f *HTTPFetcher) FetchOnce(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.FetchOnce(ctx, req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading body: %w", err)
	}

	return resp.StatusCode, body, nil
}
