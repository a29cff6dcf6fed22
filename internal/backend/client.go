package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TokenProvider supplies a bearer token for a single call. Tokens are
// fetched fresh per request rather than cached; the identity provider
// owns expiry. An empty token with a nil error means "call anonymously".
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Doer is the transport seam; *http.Client satisfies it. Tests swap in
// recording fakes to assert call order.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the uniform JSON client for the marketplace API. All pages
// of the storefront go through Request; nothing else talks HTTP.
type Client struct {
	base   string
	tokens TokenProvider
	http   Doer
}

type Option func(*Client)

// WithTransport replaces the underlying transport.
func WithTransport(d Doer) Option {
	return func(c *Client) { c.http = d }
}

func New(base string, tokens TokenProvider, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		tokens: tokens,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request performs an HTTP call against the backend and decodes the JSON
// response into out (when out is non-nil). body is JSON-serialized
// unless it is an io.Reader, which is sent as-is without a content type.
// Non-2xx responses come back as *ServerError, transport failures as
// *NetworkError. The legacy "/api" path prefix is stripped so call
// sites may keep the paths the frontend uses.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	path = strings.TrimPrefix(path, "/api")
	url := c.base + path

	var reader io.Reader
	contentType := ""
	if body != nil {
		if r, ok := body.(io.Reader); ok {
			reader = r
		} else {
			b, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("encoding request body: %w", err)
			}
			reader = bytes.NewReader(b)
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{URL: url, Err: err}
	}
	defer res.Body.Close()

	text, err := io.ReadAll(res.Body)
	if err != nil {
		return &NetworkError{URL: url, Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &ServerError{Status: res.StatusCode, Message: errorMessage(text, res.StatusCode)}
	}

	if out == nil || len(text) == 0 {
		return nil
	}
	if err := json.Unmarshal(text, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Request(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Request(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Request(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, body, out any) error {
	return c.Request(ctx, http.MethodDelete, path, body, out)
}

// errorMessage extracts the most useful message from an error response:
// the JSON "message" or "error" field when present, then the raw body,
// then a generic HTTP status line.
func errorMessage(text []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(text, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if trimmed := strings.TrimSpace(string(text)); trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
}
