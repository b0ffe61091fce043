package event

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"
)

// EventType names an event.
type EventType string

const (
	CommandStarted   EventType = "command.started"
	CommandFinished  EventType = "command.finished"
	FileEdited       EventType = "file.edited"
	VcsBranchUpdated EventType = "vcs.branch.updated"
	AgentShutdown    EventType = "agent.shutdown"
)

const streamTopic = "agentcmd.events"

// Event is what gets published. Data is one of the *Data types in types.go.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Subscriber receives events.
type Subscriber func(event Event)

// anyType marks a subscription to every event type.
const anyType EventType = ""

type subscription struct {
	id    int
	topic EventType
	fn    Subscriber
}

// Bus fans events out to in-process subscribers and mirrors each one as a
// JSON message on a watermill gochannel for Stream consumers.
type Bus struct {
	stream *gochannel.GoChannel

	mu     sync.RWMutex
	subs   []subscription
	lastID int
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		stream: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 100}, watermill.NopLogger{}),
	}
}

var defaultBus = NewBus()

// Default returns the process-wide bus used when a component is given none.
func Default() *Bus {
	return defaultBus
}

// Subscribe calls fn for every event of type t. The returned func removes it.
func (b *Bus) Subscribe(t EventType, fn Subscriber) func() {
	return b.add(t, fn)
}

// SubscribeAll calls fn for every event.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	return b.add(anyType, fn)
}

func (b *Bus) add(t EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	b.lastID++
	id := b.lastID
	b.subs = append(b.subs, subscription{id: id, topic: t, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
	}
}

// Stream subscribes to the JSON feed. Every message carries
// {"type": ..., "data": ...} and must be acked. The channel closes with ctx
// or the bus.
func (b *Bus) Stream(ctx context.Context) (<-chan *message.Message, error) {
	return b.stream.Subscribe(ctx, streamTopic)
}

// matching snapshots the subscribers for t in registration order.
func (b *Bus) matching(t EventType) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	var out []Subscriber
	for _, s := range b.subs {
		if s.topic == anyType || s.topic == t {
			out = append(out, s.fn)
		}
	}
	return out
}

func (b *Bus) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

func (b *Bus) mirror(e Event) {
	if b.isClosed() {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		log.Debug().Err(err).Str("type", string(e.Type)).Msg("event not encodable")
		return
	}
	if err := b.stream.Publish(streamTopic, message.NewMessage(watermill.NewULID(), payload)); err != nil {
		log.Debug().Err(err).Msg("event stream publish")
	}
}

// Publish runs each subscriber in its own goroutine.
func (b *Bus) Publish(e Event) {
	for _, fn := range b.matching(e.Type) {
		go fn(e)
	}
	b.mirror(e)
}

// PublishSync runs the subscribers one after another before returning.
func (b *Bus) PublishSync(e Event) {
	for _, fn := range b.matching(e.Type) {
		fn(e)
	}
	b.mirror(e)
}

// Close drops all subscribers and closes the stream. Later publishes are
// ignored.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subs = nil
	b.mu.Unlock()
	return b.stream.Close()
}
