package feed

import (
	"fmt"
	"slices"
	"time"

	"github.com/tradeloop/tradeloop/common"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/log"
)

// NewLive returns an open live feed buffering up to capacity events
func NewLive(name string, capacity int) *Live {
	if capacity <= 0 {
		capacity = DefaultLiveCapacity
	}
	return &Live{name: name, capacity: capacity}
}

// Name returns the feed name
func (l *Live) Name() string {
	return l.name
}

// Push appends an event. It never blocks: a full buffer returns
// ErrBufferFull and the event is dropped
func (l *Live) Push(e event.Event) error {
	if e.IsZero() {
		return fmt.Errorf("%s: %w", l.name, common.ErrNilEvent)
	}
	l.m.Lock()
	defer l.m.Unlock()
	if l.closed {
		return fmt.Errorf("%s: %w", l.name, ErrFeedClosed)
	}
	if e.EventTime().Before(l.last) {
		return fmt.Errorf("%s: %w: %v precedes %v", l.name, ErrOutOfOrder, e.EventTime(), l.last)
	}
	if len(l.buf) >= l.capacity {
		l.dropped++
		if l.dropped == 1 || l.dropped%1000 == 0 {
			log.Warnf(log.Feed, "%s buffer full, %d events dropped", l.name, l.dropped)
		}
		return fmt.Errorf("%s: %w", l.name, ErrBufferFull)
	}
	l.buf = append(l.buf, e)
	l.last = e.EventTime()
	return nil
}

// Peek implements EventFeed
func (l *Live) Peek() (event.Event, bool) {
	l.m.Lock()
	defer l.m.Unlock()
	if len(l.buf) == 0 {
		return event.Event{}, false
	}
	return l.buf[0], true
}

// Pop implements EventFeed
func (l *Live) Pop() (event.Event, bool) {
	l.m.Lock()
	defer l.m.Unlock()
	if len(l.buf) == 0 {
		return event.Event{}, false
	}
	e := l.buf[0]
	l.buf[0] = event.Event{}
	l.buf = l.buf[1:]
	return e, true
}

// IsFinished implements EventFeed. An open live feed is never finished
func (l *Live) IsFinished() bool {
	l.m.Lock()
	defer l.m.Unlock()
	return l.closed && len(l.buf) == 0
}

// Close stops the feed accepting events. Buffered events remain available
func (l *Live) Close() error {
	l.m.Lock()
	defer l.m.Unlock()
	l.closed = true
	return nil
}

// RemoveEventsBefore implements EventFeed
func (l *Live) RemoveEventsBefore(cutoff time.Time) {
	l.m.Lock()
	defer l.m.Unlock()
	l.buf = slices.DeleteFunc(l.buf, func(e event.Event) bool {
		return e.EventTime().Before(cutoff)
	})
}

// Len returns the number of buffered events
func (l *Live) Len() int {
	l.m.Lock()
	defer l.m.Unlock()
	return len(l.buf)
}

// Dropped returns how many events were refused because the buffer was full
func (l *Live) Dropped() int64 {
	l.m.Lock()
	defer l.m.Unlock()
	return l.dropped
}
