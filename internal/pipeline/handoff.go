package pipeline

import (
	"context"
	"sync"

	"github.com/killfeedsc/killfeed-go/pkg/killfeed/event"
)

// DefaultQueueSize is the handoff capacity used when none is configured.
const DefaultQueueSize = 256

// Handoff is a fixed-capacity FIFO of events between the ingest and
// broadcast stages. Push never blocks: when full, the oldest queued event
// is evicted.
type Handoff struct {
	mu      sync.Mutex
	buf     []event.Event
	head    int
	n       int
	dropped uint64
	ready   chan struct{}
}

// NewHandoff creates a Handoff holding up to capacity events.
func NewHandoff(capacity int) *Handoff {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &Handoff{
		buf:   make([]event.Event, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push appends ev and reports whether an older event was evicted to make room.
func (h *Handoff) Push(ev event.Event) bool {
	h.mu.Lock()
	evicted := false
	if h.n == len(h.buf) {
		h.buf[h.head] = event.Event{}
		h.head = (h.head + 1) % len(h.buf)
		h.n--
		h.dropped++
		evicted = true
	}
	h.buf[(h.head+h.n)%len(h.buf)] = ev
	h.n++
	h.mu.Unlock()

	select {
	case h.ready <- struct{}{}:
	default:
	}
	return evicted
}

// TryPop removes and returns the oldest event, if any.
func (h *Handoff) TryPop() (event.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.n == 0 {
		return event.Event{}, false
	}
	ev := h.buf[h.head]
	h.buf[h.head] = event.Event{}
	h.head = (h.head + 1) % len(h.buf)
	h.n--
	return ev, true
}

// Pop blocks until an event is available or ctx is done.
func (h *Handoff) Pop(ctx context.Context) (event.Event, error) {
	for {
		if ev, ok := h.TryPop(); ok {
			return ev, nil
		}
		select {
		case <-h.ready:
		case <-ctx.Done():
			return event.Event{}, ctx.Err()
		}
	}
}

// Len returns the number of queued events.
func (h *Handoff) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

// Cap returns the capacity.
func (h *Handoff) Cap() int {
	return len(h.buf)
}

// Dropped returns the number of evicted events.
func (h *Handoff) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}
