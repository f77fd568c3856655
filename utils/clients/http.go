package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/OldEphraim/prom-archiver/utils/common"
)

// SnippetLimit caps how much of a failed response body is kept for logs.
const SnippetLimit = 3000

// StatusError is a completed request whose status was outside 2xx.
type StatusError struct {
	StatusCode int
	Snippet    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d | response=%s", e.StatusCode, e.Snippet)
}

// HTTPClient wraps common HTTP request functionality
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPClient creates a new HTTP client with the specified timeout. The
// timeout covers connect, headers and body read of a single request.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Timeout is the per-request bound.
func (h *HTTPClient) Timeout() time.Duration { return h.timeout }

// Get performs a GET against rawURL with params merged into its query string
// and returns the body of a 2xx response.
func (h *HTTPClient) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, rerr := io.ReadAll(io.LimitReader(resp.Body, 4*SnippetLimit))
		snippet := "<unable to read response body>"
		if rerr == nil {
			snippet = common.Snippet(string(body), SnippetLimit)
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Snippet: snippet}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
