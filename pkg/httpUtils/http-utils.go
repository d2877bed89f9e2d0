package http_utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrTransport marks a request that never produced an HTTP response
// (DNS, connection refused, TLS, timeout, unreadable body).
var ErrTransport = errors.New("http transport failure")

// Response is a fully read HTTP response. Any status code is a valid Response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is exactly 200.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode == http.StatusOK
}

// DoRequest makes a single attempt at an HTTP request and reads the whole body.
// Transport-level errors are wrapped with ErrTransport; non-2xx statuses are not errors.
// A nil body sends the request without one.
func DoRequest(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request for %s: %w", method, url, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrTransport, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
