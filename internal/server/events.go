package server

import (
	"context"
	"time"

	"github.com/luciancaetano/tickws"
)

// eventQueueSize bounds the server→host queue. Producers block when the host
// falls behind, which backpressures peers instead of growing memory.
const eventQueueSize = 4096

// eventQueue is the multi-producer/single-consumer bridge between connection
// actors and the host's poll loop.
type eventQueue struct {
	ch chan tickws.Event
}

func newEventQueue() *eventQueue {
	return &eventQueue{ch: make(chan tickws.Event, eventQueueSize)}
}

// tryPop dequeues at most one event without blocking.
func (q *eventQueue) tryPop() (tickws.Event, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	default:
		return tickws.Event{}, false
	}
}

// push enqueues ev, giving up when ctx is cancelled. Returns false when the
// event was dropped.
func (q *eventQueue) push(ctx context.Context, ev tickws.Event) bool {
	select {
	case q.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// pushTerminal enqueues a lifecycle event (connects, disconnects, shutdown
// errors)
// regardless of cancellation, bounded by grace so shutdown can never deadlock
// on a host that stopped polling. Returns false when the event was dropped.
func (q *eventQueue) pushTerminal(ev tickws.Event, grace time.Duration) bool {
	select {
	case q.ch <- ev:
		return true
	default:
	}
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case q.ch <- ev:
		return true
	case <-t.C:
		return false
	}
}
