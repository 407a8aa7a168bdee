package feed

import (
	"errors"
	"sync"
	"time"

	"github.com/tradeloop/tradeloop/event"
)

var (
	// ErrOutOfOrder is returned when events are not in non-decreasing
	// event time order
	ErrOutOfOrder = errors.New("event out of order")
	// ErrBufferFull is returned when a live feed cannot accept more events
	ErrBufferFull = errors.New("feed buffer full")
	// ErrFeedClosed is returned when pushing to a closed feed
	ErrFeedClosed = errors.New("feed closed")

	errInvalidTimer = errors.New("invalid timer")
)

// DefaultLiveCapacity is used when a live feed is created without a capacity
const DefaultLiveCapacity = 4096

// EventFeed is a pull based source of events in non-decreasing event time
// order. Peek and Pop never block; they report false when no event is
// currently available
type EventFeed interface {
	// Peek returns the next event without consuming it
	Peek() (event.Event, bool)
	// Pop consumes and returns the next event. It returns the event the
	// last Peek returned when nothing changed in between
	Pop() (event.Event, bool)
	// IsFinished reports whether the feed will never produce another event
	IsFinished() bool
	// Close releases the feed's resources
	Close() error
	// RemoveEventsBefore discards buffered events whose event time is
	// before cutoff
	RemoveEventsBefore(cutoff time.Time)
}

// Historical is a finite feed over a pre-sorted slice of events
type Historical struct {
	m      sync.Mutex
	name   string
	stream []event.Event
	offset int
	latest event.Event
	closed bool
}

// Live is a bounded, unbounded-in-time feed filled by a producer through
// Push. It only finishes after Close once its buffer is drained
type Live struct {
	m        sync.Mutex
	name     string
	buf      []event.Event
	capacity int
	last     time.Time
	closed   bool
	dropped  int64
}

// Timer produces one-time or periodic timer events
type Timer struct {
	m        sync.Mutex
	name     string
	periodic bool
	next     time.Time
	interval time.Duration
	end      time.Time
	seq      int64
	done     bool
}
