package engine

import "github.com/tradeloop/tradeloop/event"

// Reset empties the queue
func (h *Holder) Reset() {
	h.Queue = nil
}

// AppendEvent adds events to the end of the queue
func (h *Holder) AppendEvent(e ...event.Event) {
	for i := range e {
		if e[i].IsZero() {
			continue
		}
		h.Queue = append(h.Queue, e[i])
	}
}

// NextEvent removes and returns the first queued event
func (h *Holder) NextEvent() (event.Event, bool) {
	if len(h.Queue) == 0 {
		return event.Event{}, false
	}
	e := h.Queue[0]
	h.Queue[0] = event.Event{}
	h.Queue = h.Queue[1:]
	return e, true
}

// Len returns the number of queued events
func (h *Holder) Len() int {
	return len(h.Queue)
}
