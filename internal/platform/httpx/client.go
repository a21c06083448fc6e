// Package httpx is the single outbound transport helper shared by the three
// backend clients. Each client composes a Client by value with its own base
// URL; there is no shared mutable state and no inheritance-style layering.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every individual outbound call. The saga makes
// several sequential calls, each with its own ceiling; there is no shared
// request budget.
const DefaultTimeout = 30 * time.Second

// Client issues JSON (or form-encoded) requests against one base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client for the given base URL. A zero timeout falls back to
// DefaultTimeout.
func New(baseURL string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured base URL without a trailing slash.
func (c Client) BaseURL() string {
	return c.baseURL
}

// Request describes one outbound call. Path is joined to the base URL.
type Request struct {
	Method      string
	Path        string
	Body        any        // JSON-marshaled when non-nil
	Form        url.Values // form-encoded body; takes precedence over Body
	Token       string     // bearer credential, omitted when empty
	ContentType string     // defaults to application/json
}

// Response carries the raw upstream reply. Status interpretation belongs to
// the calling client, not the transport.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// Do performs the call. A non-nil error means the request never produced an
// HTTP response (network failure, timeout, cancellation).
func (c Client) Do(ctx context.Context, r Request) (*Response, error) {
	var body io.Reader
	contentType := r.ContentType
	switch {
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		if contentType == "" {
			contentType = "application/x-www-form-urlencoded"
		}
	case r.Body != nil:
		buf, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	if contentType == "" {
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, c.baseURL+r.Path, body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", r.Method, r.Path, err)
	}
	req.Header.Set("Content-Type", contentType)
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.Method, r.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", r.Method, r.Path, err)
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}
