package testutil

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// SSEEvent is one bus event as streamed by GET /event, unwrapped from its
// {"type", "data"} envelope.
type SSEEvent struct {
	Type string
	Data json.RawMessage
}

// Payload decodes the event data into v.
func (evt SSEEvent) Payload(v any) error {
	return json.Unmarshal(evt.Data, v)
}

// Events is a slice of received events with lookup helpers.
type Events []SSEEvent

// Has reports whether an event of the type was received.
func (es Events) Has(eventType string) bool {
	return len(es.Of(eventType)) > 0
}

// Of returns the events of one type in arrival order.
func (es Events) Of(eventType string) Events {
	var out Events
	for _, e := range es {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// CommandEventData is the payload of command.started and command.finished.
type CommandEventData struct {
	CallID     string `json:"callID"`
	Command    string `json:"command"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Error      string `json:"error,omitempty"`
}

// FileEventData is the payload of file.edited.
type FileEventData struct {
	File      string `json:"file"`
	Operation string `json:"operation"`
}

// SSEClient reads the server event stream in the background.
type SSEClient struct {
	BaseURL string

	events chan SSEEvent
	errs   chan error
	cancel context.CancelFunc
}

// NewSSEClient creates a client for baseURL.
func NewSSEClient(baseURL string) *SSEClient {
	return &SSEClient{
		BaseURL: baseURL,
		events:  make(chan SSEEvent, 100),
		errs:    make(chan error, 1),
	}
}

// Connect opens path and starts decoding events.
func (c *SSEClient) Connect(ctx context.Context, path string) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		cancel()
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("unexpected response: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	go c.read(ctx, resp)
	return nil
}

func (c *SSEClient) read(ctx context.Context, resp *http.Response) {
	defer resp.Body.Close()
	defer close(c.events)

	var data strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			env := gjson.Parse(data.String())
			data.Reset()
			evt := SSEEvent{
				Type: env.Get("type").String(),
				Data: json.RawMessage(env.Get("data").Raw),
			}
			select {
			case c.events <- evt:
			case <-ctx.Done():
				return
			}
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		// "event:" is always "message" and ":" lines are heartbeats.
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.errs <- err
	}
}

// WaitForEvent returns the next event of the type, skipping others.
func (c *SSEClient) WaitForEvent(eventType string, timeout time.Duration) (*SSEEvent, error) {
	deadline := time.After(timeout)
	for {
		select {
		case evt, ok := <-c.events:
			if !ok {
				return nil, fmt.Errorf("connection closed")
			}
			if evt.Type == eventType {
				return &evt, nil
			}
		case err := <-c.errs:
			return nil, err
		case <-deadline:
			return nil, fmt.Errorf("timeout waiting for event: %s", eventType)
		}
	}
}

// CollectEvents gathers everything received during d.
func (c *SSEClient) CollectEvents(d time.Duration) Events {
	var collected Events
	deadline := time.After(d)
	for {
		select {
		case evt, ok := <-c.events:
			if !ok {
				return collected
			}
			collected = append(collected, evt)
		case <-deadline:
			return collected
		}
	}
}

// Close ends the stream.
func (c *SSEClient) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}
