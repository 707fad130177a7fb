package ports

import (
	"context"

	"github.com/bft-labs/feedrelay/internal/domain"
)

// Link is the outbound half of the device transport.
// Delivery is at-most-once per call and carries no retry of its own.
type Link interface {
	// Send transmits one message. done is invoked exactly once with nil on
	// confirmed delivery or the failure reason otherwise.
	// done is never invoked before Send returns, and may run on any goroutine.
	Send(ctx context.Context, fields domain.Fields, done func(error))
}

// Dispatcher receives inbound device events.
// Implementations must not block for long; the relay queues events.
type Dispatcher interface {
	Dispatch(ev domain.Event)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ev domain.Event)

// Dispatch calls f(ev).
func (f DispatcherFunc) Dispatch(ev domain.Event) { f(ev) }
