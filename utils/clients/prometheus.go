package clients

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// PromClient issues range queries against Prometheus-compatible endpoints.
// One call is one attempt; retrying is up to the caller.
type PromClient struct {
	http *HTTPClient
}

func NewPromClient(timeout time.Duration) *PromClient {
	return &PromClient{http: NewHTTPClient(timeout)}
}

// QueryParams builds the query/start/end/step parameter set.
func QueryParams(query string, start, end int64, step time.Duration) url.Values {
	return url.Values{
		"query": {query},
		"start": {strconv.FormatInt(start, 10)},
		"end":   {strconv.FormatInt(end, 10)},
		"step":  {strconv.FormatInt(int64(step/time.Second), 10)},
	}
}

// QueryRange returns the raw response body; it is not decoded.
func (c *PromClient) QueryRange(ctx context.Context, baseURL, query string, start, end int64, step time.Duration) ([]byte, error) {
	return c.http.Get(ctx, baseURL, QueryParams(query, start, end, step))
}
