// Package bus is an in-process, synchronous publish/subscribe hub for domain
// events raised by the state machines.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Topic names a domain event
type Topic string

const (
	// TopicMembershipApproved is published after a join request is approved
	TopicMembershipApproved Topic = "membership.approved"
)

// Event is a domain event payload
type Event interface {
	Topic() Topic
}

// MembershipApproved records that a user became an approved member of a club
type MembershipApproved struct {
	UserID string
	ClubID string
}

// Topic implements Event
func (MembershipApproved) Topic() Topic { return TopicMembershipApproved }

// Handler consumes an event
type Handler func(ctx context.Context, event Event) error

// Publisher publishes events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Bus dispatches each event to its topic's handlers in subscription order
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
}

// New creates an empty bus
func New() *Bus {
	return &Bus{handlers: make(map[Topic][]Handler)}
}

// Subscribe registers a handler for a topic
func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish runs every handler for the event's topic. All handlers run even if
// one fails; the failures are joined.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Topic()]...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler: %w", event.Topic(), err))
		}
	}
	return errors.Join(errs...)
}
