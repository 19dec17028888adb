// internal/common/http/client.go
package http

import (
	"context"
	"net/http"
	"time"
)

// Doer is satisfied by *http.Client and by Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	// MaxRetries bounds extra attempts for idempotent requests (GET, HEAD)
	// that fail in transport or with 502, 503 or 504.
	MaxRetries int
	RetryDelay time.Duration
}

type Client struct {
	httpClient *http.Client
	userAgent  string
	maxRetries int
	retryDelay time.Duration
}

func New(opts Options) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
	}
	if c.userAgent == "" {
		c.userAgent = "docassembly-sdk/1"
	}
	if c.retryDelay == 0 {
		c.retryDelay = 200 * time.Millisecond
	}
	return c
}

func NewClient(timeout time.Duration) *Client {
	return New(Options{Timeout: timeout, MaxRetries: 2})
}

// Do sends req, setting the SDK user agent when the caller has not.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if !idempotent(req.Method) {
		return c.httpClient.Do(req)
	}

	delay := c.retryDelay
	for attempt := 0; ; attempt++ {
		resp, err := c.httpClient.Do(req)
		if attempt >= c.maxRetries || !shouldRetry(resp, err) {
			return resp, err
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.Do(req.WithContext(ctx))
}

func idempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
