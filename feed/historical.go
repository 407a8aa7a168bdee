package feed

import (
	"fmt"
	"slices"
	"time"

	"github.com/tradeloop/tradeloop/common"
	"github.com/tradeloop/tradeloop/event"
)

// Sort orders events by event time, then received time, keeping the input
// order of equal events
func Sort(events []event.Event) {
	slices.SortStableFunc(events, event.Compare)
}

// NewHistorical returns a finite feed over events, which must already be in
// non-decreasing event time order
func NewHistorical(name string, events []event.Event) (*Historical, error) {
	for x := range events {
		if events[x].IsZero() {
			return nil, fmt.Errorf("%s: %w at index %d", name, common.ErrNilEvent, x)
		}
		if x > 0 && events[x].EventTime().Before(events[x-1].EventTime()) {
			return nil, fmt.Errorf("%s: %w: %v at index %d precedes %v", name, ErrOutOfOrder, events[x].EventTime(), x, events[x-1].EventTime())
		}
	}
	return &Historical{name: name, stream: slices.Clone(events)}, nil
}

// Name returns the feed name
func (h *Historical) Name() string {
	return h.name
}

// Peek implements EventFeed
func (h *Historical) Peek() (event.Event, bool) {
	h.m.Lock()
	defer h.m.Unlock()
	if h.closed || h.offset >= len(h.stream) {
		return event.Event{}, false
	}
	return h.stream[h.offset], true
}

// Pop implements EventFeed
func (h *Historical) Pop() (event.Event, bool) {
	h.m.Lock()
	defer h.m.Unlock()
	if h.closed || h.offset >= len(h.stream) {
		return event.Event{}, false
	}
	e := h.stream[h.offset]
	h.offset++
	h.latest = e
	return e, true
}

// IsFinished implements EventFeed. A historical feed finishes once every
// event has been consumed
func (h *Historical) IsFinished() bool {
	h.m.Lock()
	defer h.m.Unlock()
	return h.closed || h.offset >= len(h.stream)
}

// Close implements EventFeed
func (h *Historical) Close() error {
	h.m.Lock()
	defer h.m.Unlock()
	h.closed = true
	return nil
}

// RemoveEventsBefore implements EventFeed by skipping ahead
func (h *Historical) RemoveEventsBefore(cutoff time.Time) {
	h.m.Lock()
	defer h.m.Unlock()
	for h.offset < len(h.stream) && h.stream[h.offset].EventTime().Before(cutoff) {
		h.offset++
	}
}

// Latest returns the last consumed event
func (h *Historical) Latest() (event.Event, bool) {
	h.m.Lock()
	defer h.m.Unlock()
	return h.latest, !h.latest.IsZero()
}

// History returns every consumed event, including skipped ones
func (h *Historical) History() []event.Event {
	h.m.Lock()
	defer h.m.Unlock()
	return slices.Clone(h.stream[:h.offset])
}

// Len returns the number of events not yet consumed
func (h *Historical) Len() int {
	h.m.Lock()
	defer h.m.Unlock()
	return len(h.stream) - h.offset
}
