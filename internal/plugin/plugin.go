// Package plugin holds what third-party integrations share: the allowlist
// and credential gate, and an HTTP client that retries throttled and failing
// requests with exponential backoff.
package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/pkg/types"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxRetries = 3
	maxResponseSize   = 5 * 1024 * 1024
	userAgent         = "agentcmd/1.0"
)

// Gate enables a plugin command only when the plugin is allowlisted and its
// credentials are present. missing names what to set when they are not.
func Gate(cfg *types.Config, name string, credentials bool, missing string) command.Gate {
	if cfg == nil || !cfg.PluginAllowed(name) {
		return command.Require(false, fmt.Sprintf("add %s to ALLOWLISTED_PLUGINS", name))
	}
	return command.Require(credentials, "set "+missing)
}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("request failed with status code: %d", e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// retryable reports whether a failed request may be sent again. 429 means
// the request was not processed. A 5xx may come after the server acted, so
// only idempotent methods retry it.
func retryable(method string, status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && idempotent(method)
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// Client is an HTTP client shared by plugins.
type Client struct {
	HTTP            *http.Client
	MaxRetries      uint64
	InitialInterval time.Duration
}

// NewClient wraps hc, or a client with a 30 second timeout when hc is nil.
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		HTTP:            hc,
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: 500 * time.Millisecond,
	}
}

// Do sends a request and returns the response body. body may be nil.
// 429 responses are retried, as are 5xx responses and transport errors for
// idempotent methods. Other failures return immediately.
func (c *Client) Do(ctx context.Context, method, url string, header http.Header, body []byte) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval

	var out []byte
	attempt := 0
	op := func() error {
		attempt++
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", userAgent)
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			err = fmt.Errorf("request failed: %w", err)
			if !idempotent(method) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			serr := &StatusError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
			if retryable(method, resp.StatusCode) {
				log.Debug().Int("status", resp.StatusCode).Int("attempt", attempt).Str("url", url).Msg("retrying plugin request")
				return serr
			}
			return backoff.Permanent(serr)
		}
		out = data
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, c.MaxRetries), ctx))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return out, nil
}

// JSON sends in (when non-nil) as a JSON body and decodes the response into
// out (when non-nil).
func (c *Client) JSON(ctx context.Context, method, url string, header http.Header, in, out any) error {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", "application/json")

	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		header.Set("Content-Type", "application/json")
	}

	data, err := c.Do(ctx, method, url, header, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
