// Package origin performs pass-through GETs against the remote Smooth-Streaming origin.
package origin

import (
	"context"
	"errors"
	"fmt"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"io"
	"net/http"
	"smoothstreamd/internal/logger"
	"time"
)

// ErrUpstream wraps transport failures: timeouts, refused connections, broken bodies.
// Non-2xx statuses are not errors; they are forwarded to the caller.
var ErrUpstream = errors.New("origin: upstream request failed")

// DefaultTimeout bounds one remote fetch, headers and body included.
const DefaultTimeout = 20 * time.Second

// maxLoggedBody caps how much of a failed upstream body is written to the log.
const maxLoggedBody = 512

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is the origin client responsible for all communication with the remote origin.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTransport replaces the traced default transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// NewClient creates a new origin client. Redirects are returned to the caller, not followed.
func NewClient(log logger.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport.(*http.Transport).Clone()),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: DefaultTimeout,
		logger:  log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-fetch timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Fetch issues a GET to target carrying every inbound header except Host.
// The upstream status, headers and body are returned as received.
func (c *Client) Fetch(ctx context.Context, target string, inbound http.Header) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request for %s: %v", ErrUpstream, target, err)
	}
	for name, values := range inbound {
		if http.CanonicalHeaderKey(name) == "Host" {
			continue
		}
		req.Header[name] = append([]string(nil), values...)
	}

	c.logger.Debugf("Fetching %s", target)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body of %s: %v", ErrUpstream, target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logged := body
		if len(logged) > maxLoggedBody {
			logged = logged[:maxLoggedBody]
		}
		c.logger.Warnf("Upstream %s answered %d: %s", target, resp.StatusCode, logged)
	} else {
		c.logger.Debugf("Fetched %s (%d bytes) in %s", target, len(body), time.Since(start))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}
