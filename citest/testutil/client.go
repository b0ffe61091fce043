package testutil

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

// TestClient talks JSON to the command server.
type TestClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewTestClient creates a client for baseURL.
func NewTestClient(baseURL string) *TestClient {
	return &TestClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// RequestOption adjusts an outgoing request.
type RequestOption func(*http.Request)

// WithQuery sets query parameters.
func WithQuery(params map[string]string) RequestOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		r.URL.RawQuery = q.Encode()
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

func (r *Response) String() string {
	return string(r.Body)
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode/100 == 2
}

// Get performs a GET.
func (c *TestClient) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, opts...)
}

// Post sends body as JSON.
func (c *TestClient) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), opts...)
}

// PostRaw sends body untouched, for malformed-input checks.
func (c *TestClient) PostRaw(ctx context.Context, path, body string) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, strings.NewReader(body))
}

func (c *TestClient) do(ctx context.Context, method, path string, body io.Reader, opts ...RequestOption) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// ---- Command API helpers ----

// CommandInfo mirrors one catalog entry.
type CommandInfo struct {
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Category    string    `json:"category"`
	Plugin      string    `json:"plugin,omitempty"`
	Args        []ArgInfo `json:"args,omitempty"`
	Enabled     bool      `json:"enabled"`
	DisabledFor string    `json:"disabledReason,omitempty"`
}

// ArgInfo mirrors one command argument.
type ArgInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// InvokeResult is the body of a successful POST /command/{name}.
type InvokeResult struct {
	Command  string         `json:"command"`
	Reply    string         `json:"reply"`
	Title    string         `json:"title,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
	Shutdown bool           `json:"shutdown,omitempty"`
}

// APIError is the body of a non-2xx response.
type APIError struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

// ListCommands fetches GET /command.
func (c *TestClient) ListCommands(ctx context.Context) ([]CommandInfo, error) {
	resp, err := c.Get(ctx, "/command")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("list commands: status %d: %s", resp.StatusCode, resp.String())
	}
	var infos []CommandInfo
	if err := resp.JSON(&infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// Invoke posts args to /command/{name} and decodes a 200 reply.
func (c *TestClient) Invoke(ctx context.Context, name string, args map[string]any) (*InvokeResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	resp, err := c.Post(ctx, "/command/"+url.PathEscape(name), args)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("invoke %s: status %d: %s", name, resp.StatusCode, resp.String())
	}
	var result InvokeResult
	if err := resp.JSON(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Catalog fetches GET /catalog in the given format.
func (c *TestClient) Catalog(ctx context.Context, format string) (string, error) {
	resp, err := c.Get(ctx, "/catalog", WithQuery(map[string]string{"format": format}))
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("catalog: status %d: %s", resp.StatusCode, resp.String())
	}
	return resp.String(), nil
}
