package feed

import (
	"fmt"
	"time"

	"github.com/tradeloop/tradeloop/event"
)

// NewTimer returns a feed firing once at at
func NewTimer(name string, at time.Time) (*Timer, error) {
	if name == "" || at.IsZero() {
		return nil, fmt.Errorf("%w: a name and time are required", errInvalidTimer)
	}
	return &Timer{name: name, next: at, end: at}, nil
}

// NewPeriodicTimer returns a feed firing every interval from start until
// end inclusive
func NewPeriodicTimer(name string, start time.Time, interval time.Duration, end time.Time) (*Timer, error) {
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name unset", errInvalidTimer)
	case start.IsZero(), end.IsZero():
		return nil, fmt.Errorf("%w %s: periodic timers need a start and an end", errInvalidTimer, name)
	case interval <= 0:
		return nil, fmt.Errorf("%w %s: interval %v must be positive", errInvalidTimer, name, interval)
	case end.Before(start):
		return nil, fmt.Errorf("%w %s: end %v before start %v", errInvalidTimer, name, end, start)
	}
	return &Timer{name: name, periodic: true, next: start, interval: interval, end: end}, nil
}

// Name returns the timer name
func (t *Timer) Name() string {
	return t.name
}

func (t *Timer) current() (event.Event, bool) {
	if t.done {
		return event.Event{}, false
	}
	e, err := event.New(event.Timer{Name: t.name, Periodic: t.periodic, Sequence: t.seq}, t.next, t.next)
	if err != nil {
		return event.Event{}, false
	}
	return e, true
}

func (t *Timer) advance() {
	if !t.periodic {
		t.done = true
		return
	}
	t.seq++
	t.next = t.next.Add(t.interval)
	if t.next.After(t.end) {
		t.done = true
	}
}

// Peek implements EventFeed
func (t *Timer) Peek() (event.Event, bool) {
	t.m.Lock()
	defer t.m.Unlock()
	return t.current()
}

// Pop implements EventFeed
func (t *Timer) Pop() (event.Event, bool) {
	t.m.Lock()
	defer t.m.Unlock()
	e, ok := t.current()
	if ok {
		t.advance()
	}
	return e, ok
}

// IsFinished implements EventFeed
func (t *Timer) IsFinished() bool {
	t.m.Lock()
	defer t.m.Unlock()
	return t.done
}

// Close implements EventFeed
func (t *Timer) Close() error {
	t.m.Lock()
	defer t.m.Unlock()
	t.done = true
	return nil
}

// RemoveEventsBefore skips firings before cutoff
func (t *Timer) RemoveEventsBefore(cutoff time.Time) {
	t.m.Lock()
	defer t.m.Unlock()
	for !t.done && t.next.Before(cutoff) {
		t.advance()
	}
}
