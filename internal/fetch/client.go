package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBodySize = 4 << 20 // 4MB

const defaultTimeout = 10 * time.Second

// connection pooling limits; a page render fans out to many resources on the
// same origin, so per-host limits are the ones that matter
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 20
	defaultMaxConnsPerHost     = 32
	defaultIdleConnTimeout     = 60 * time.Second
)

// Response holds the result of an HTTP request made by [Client].
type Response struct {
	// Body contains the HTTP response body, limited to 4MB.
	Body []byte

	// StatusCode is the HTTP status code.
	// Zero if the request failed before receiving a response.
	StatusCode int

	// ContentType is the response Content-Type header.
	ContentType string

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any transport error. A non-2xx status is not an error
	// at this level; see [Client.Get].
	Error error
}

// StatusError reports a completed request with a non-2xx status code.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// IsNotFound reports whether err wraps a [StatusError] with code 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client is an HTTP client wrapper used for every network access of a page
// render: page sources, fragments, stylesheets, JSON indexes and beacons.
//
// Client applies a per-request timeout via context rather than a global
// http.Client timeout, and caps response bodies.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a new [Client]. A zero timeout uses the 10s default.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		timeout: timeout,
	}
}

// Fetch performs an HTTP request and returns a structured [Response].
//
// If method is empty, GET is used. Fetch always returns a Response; errors
// are captured in the Error field.
func (c *Client) Fetch(ctx context.Context, method, url string, headers map[string]string, body []byte) Response {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	if method == "" {
		method = http.MethodGet
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:        data,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Latency:     time.Since(start),
	}
}

// Get fetches url and returns its body. Transport failures and non-2xx
// responses are returned as errors; the latter as *[StatusError].
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp := c.Fetch(ctx, http.MethodGet, url, nil, nil)
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	return resp.Body, nil
}

// Post sends body to url with the given content type. The response body is
// discarded; non-2xx responses are returned as *[StatusError].
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte) error {
	resp := c.Fetch(ctx, http.MethodPost, url, map[string]string{"Content-Type": contentType}, body)
	if resp.Error != nil {
		return resp.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{URL: url, Code: resp.StatusCode}
	}
	return nil
}

// Close closes all idle connections in the client's connection pool.
// Safe to call multiple times and on a nil receiver. The client remains
// usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
