package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the designer core
const (
	TopicPipeline   = "pipeline"   // graph changes (mutations, undo, redo)
	TopicSimulation = "simulation" // simulation progress
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "pipeline", "simulation")
	Type    string          `json:"type"`    // Event type (e.g., "node_added", "node_active", "finished")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Decode unmarshals the event payload into v
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// Discard is a Publisher that drops every event. Useful when nobody observes the core.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	return nil, ErrClosed
}

func (discard) Publish(topic string, eventType string, data interface{}) error {
	return nil
}

func (discard) Close() error {
	return nil
}
