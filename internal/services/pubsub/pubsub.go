// Package pubsub distributes document change events to in-process subscribers.
package pubsub

import (
	"sync"
	"time"

	"github.com/lucsky/cuid"
)

// Topic represents a subscription topic.
type Topic string

const (
	TopicParameterUpdated Topic = "PARAMETER_UPDATED"
	TopicPanelCreated     Topic = "PANEL_CREATED"
	TopicPanelUpdated     Topic = "PANEL_UPDATED"
	TopicPanelDeleted     Topic = "PANEL_DELETED"

	// TopicAll subscribers receive every event regardless of topic.
	TopicAll Topic = "*"
)

// Event describes one applied mutation.
type Event struct {
	ID        string    `json:"id"`
	Topic     Topic     `json:"topic"`
	Key       string    `json:"key"`             // Parameter name or panel ID
	Value     any       `json:"value,omitempty"` // New value, omitted on delete
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event with a fresh ID.
func NewEvent(topic Topic, key string, value any) Event {
	return Event{
		ID:        cuid.New(),
		Topic:     topic,
		Key:       key,
		Value:     value,
		Timestamp: time.Now().UTC(),
	}
}

// Subscriber represents a subscription channel.
type Subscriber struct {
	ID      string
	Topic   Topic
	Filter  string // Optional key filter (parameter name or panel ID)
	Channel chan Event
}

// PubSub manages subscriptions and message distribution.
type PubSub struct {
	mu          sync.RWMutex
	subscribers map[Topic][]*Subscriber
}

// New creates a new PubSub instance.
func New() *PubSub {
	return &PubSub{
		subscribers: make(map[Topic][]*Subscriber),
	}
}

// Subscribe creates a new subscription for a topic.
func (ps *PubSub) Subscribe(topic Topic, filter string, bufferSize int) *Subscriber {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	sub := &Subscriber{
		ID:      cuid.New(),
		Topic:   topic,
		Filter:  filter,
		Channel: make(chan Event, bufferSize),
	}

	ps.subscribers[topic] = append(ps.subscribers[topic], sub)
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (ps *PubSub) Unsubscribe(sub *Subscriber) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	subs := ps.subscribers[sub.Topic]
	for i, s := range subs {
		if s.ID == sub.ID {
			close(s.Channel)
			ps.subscribers[sub.Topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish sends an event to the subscribers of its topic and to TopicAll subscribers.
// Subscribers with a filter only receive events whose key matches it.
// Delivery is non-blocking: a subscriber with a full buffer misses the event.
// Returns the number of subscribers that received it.
func (ps *PubSub) Publish(event Event) int {
	// Read lock is held while sending so Unsubscribe cannot close a channel mid-send
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	delivered := 0
	for _, topic := range []Topic{event.Topic, TopicAll} {
		for _, sub := range ps.subscribers[topic] {
			if sub.Filter != "" && sub.Filter != event.Key {
				continue
			}
			select {
			case sub.Channel <- event:
				delivered++
			default:
				// Channel full, skip (non-blocking)
			}
		}
	}
	return delivered
}

// SubscriberCount returns the number of subscribers for a topic.
func (ps *PubSub) SubscriberCount(topic Topic) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers[topic])
}
