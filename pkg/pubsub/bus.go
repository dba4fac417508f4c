package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ritzau/rag-pipeline-designer/pkg/logging"
)

// ErrClosed is returned when publishing to or subscribing on a closed bus
var ErrClosed = errors.New("pubsub: publisher is closed")

// subscriberBuffer is the per-subscriber channel size. A full channel drops events
// rather than blocking the publisher.
const subscriberBuffer = 256

// TopicConfig configures buffering behavior for a topic
type TopicConfig struct {
	BufferSize int  // Number of events to buffer (0 = no buffering)
	ReplayAll  bool // If true, replay all buffered events; if false, only replay last event
}

// Bus implements Publisher in-process. Events are JSON encoded once so they can be
// streamed to HTTP clients with WriteSSE unchanged.
type Bus struct {
	mu            sync.Mutex
	subscriptions map[string]map[*subscription]bool // topic -> set of subscriptions
	version       map[string]int                    // topic -> version counter
	eventBuffer   map[string][]Event                // topic -> ring buffer of events
	topicConfig   map[string]TopicConfig            // topic -> configuration
	closed        bool
}

// NewBus creates a new in-process publisher
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string]map[*subscription]bool),
		version:       make(map[string]int),
		eventBuffer:   make(map[string][]Event),
		topicConfig:   make(map[string]TopicConfig),
	}
}

// ConfigureTopic sets buffering configuration for a topic
func (b *Bus) ConfigureTopic(topic string, config TopicConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topicConfig[topic] = config
}

// Subscribe creates a new subscription to a topic.
// Buffered events are replayed before any new event can be delivered.
func (b *Bus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	sub := &subscription{
		topic:  topic,
		events: make(chan Event, subscriberBuffer),
		bus:    b,
	}
	if b.subscriptions[topic] == nil {
		b.subscriptions[topic] = make(map[*subscription]bool)
	}
	b.subscriptions[topic][sub] = true

	replay := b.eventBuffer[topic]
	if !b.topicConfig[topic].ReplayAll && len(replay) > 0 {
		replay = replay[len(replay)-1:]
	}
	for _, event := range replay {
		sub.events <- event // fits: replay never exceeds the subscriber buffer
	}
	if len(replay) > 0 {
		logging.Debug("replayed buffered events", "topic", topic, "count", len(replay))
	}

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			sub.Close()
		}()
	}

	return sub, nil
}

// Publish sends an event to all subscribers of a topic
func (b *Bus) Publish(topic string, eventType string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.version[topic]++
	event := Event{
		Topic:   topic,
		Type:    eventType,
		Data:    jsonData,
		Version: b.version[topic],
	}

	if config := b.topicConfig[topic]; config.BufferSize > 0 {
		size := min(config.BufferSize, subscriberBuffer)
		buffer := append(b.eventBuffer[topic], event)
		if len(buffer) > size {
			buffer = buffer[len(buffer)-size:]
		}
		b.eventBuffer[topic] = buffer
	}

	for sub := range b.subscriptions[topic] {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscription channel full, dropping event", "topic", topic, "type", eventType)
		}
	}

	return nil
}

// Close shuts down the bus and closes every subscription channel
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subscriptions {
		for sub := range subs {
			sub.closed = true
			close(sub.events)
		}
	}
	b.subscriptions = make(map[string]map[*subscription]bool)

	return nil
}

// subscription implements Subscription. Its closed flag is guarded by the bus mutex.
type subscription struct {
	topic  string
	events chan Event
	bus    *Bus
	closed bool
}

func (s *subscription) Topic() string {
	return s.topic
}

func (s *subscription) Events() <-chan Event {
	return s.events
}

// Close unsubscribes and closes the event channel
func (s *subscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if subs := s.bus.subscriptions[s.topic]; subs != nil {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.bus.subscriptions, s.topic)
		}
	}
	close(s.events)

	return nil
}

// WriteSSE writes an event to an SSE response writer
// Format: "event: <type>\ndata: {json}\n\n"
func WriteSSE(w io.Writer, event Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, jsonData)
	return err
}
