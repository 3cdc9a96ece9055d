package stream

import (
	"context"
	"sync"
)

// Bus is a bounded FIFO queue of events for a single execution: nodes
// enqueue via Emit, back-pressure blocks the producer briefly but never
// drops, and a single consumer drains in order via Next until a terminal
// event or Close.
type Bus struct {
	events chan Event
	closed chan struct{}
	once   sync.Once
}

// NewBus constructs a Bus with the given queue capacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bus{
		events: make(chan Event, capacity),
		closed: make(chan struct{}),
	}
}

// Emit enqueues event, blocking while the queue is full unless ctx is done
// or the bus has been closed. Events emitted after Close are discarded.
func (b *Bus) Emit(ctx context.Context, event Event) error {
	select {
	case <-b.closed:
		return nil
	default:
	}
	// Prefer immediate delivery so terminal events emitted under an
	// already-cancelled context still reach the consumer.
	select {
	case b.events <- event:
		return nil
	default:
	}
	select {
	case b.events <- event:
		return nil
	case <-b.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next blocks until an event is available, the bus is closed, or ctx is
// done. ok is false once the queue is drained and closed.
func (b *Bus) Next(ctx context.Context) (event Event, ok bool, err error) {
	select {
	case e := <-b.events:
		return e, true, nil
	case <-b.closed:
		// Buffered events remain deliverable after Close.
		select {
		case e := <-b.events:
			return e, true, nil
		default:
			return nil, false, nil
		}
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Close stops accepting new events; buffered events remain deliverable via
// Next until the queue empties. Idempotent.
func (b *Bus) Close(context.Context) error {
	b.once.Do(func() { close(b.closed) })
	return nil
}
