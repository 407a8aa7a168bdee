package event

import (
	"fmt"
	"strings"
	"time"
)

var kindNames = map[Kind]string{
	BarKind:         "bar",
	TradeKind:       "trade",
	QuoteKind:       "quote",
	OrderBookKind:   "orderbook",
	TimerKind:       "timer",
	OrderUpdateKind: "order",
	FillKind:        "fill",
}

// String returns the topic segment used for the kind
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// KindFromString converts a topic segment back into a Kind
func KindFromString(s string) (Kind, error) {
	s = strings.ToLower(s)
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return UnknownKind, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// New wraps a payload. A zero receivedTime defaults to eventTime
func New(p Payload, eventTime, receivedTime time.Time) (Event, error) {
	if p == nil {
		return Event{}, ErrNilPayload
	}
	if eventTime.IsZero() {
		return Event{}, ErrZeroTime
	}
	if receivedTime.IsZero() {
		receivedTime = eventTime
	}
	return Event{eventTime: eventTime, receivedTime: receivedTime, payload: p}, nil
}

// EventTime returns when the event occurred in the market
func (e Event) EventTime() time.Time {
	return e.eventTime
}

// ReceivedTime returns when the event entered the system
func (e Event) ReceivedTime() time.Time {
	return e.receivedTime
}

// Payload returns the wrapped payload
func (e Event) Payload() Payload {
	return e.payload
}

// Kind returns the kind of the wrapped payload
func (e Event) Kind() Kind {
	if e.payload == nil {
		return UnknownKind
	}
	return e.payload.Kind()
}

// IsZero reports whether the event was never constructed
func (e Event) IsZero() bool {
	return e.payload == nil
}

// Topic returns the routing key {kind}::{instrument}::{granularity}::{variant}
func (e Event) Topic() string {
	if e.payload == nil {
		return ""
	}
	inst, gran, variant := e.payload.TopicSegments()
	return strings.Join([]string{
		e.payload.Kind().String(),
		orNone(inst),
		orNone(gran),
		orNone(variant),
	}, TopicSeparator)
}

// String implements the stringer interface
func (e Event) String() string {
	return fmt.Sprintf("%s@%s", e.Topic(), e.eventTime.Format(time.RFC3339Nano))
}

func orNone(s string) string {
	if s == "" {
		return NoSegment
	}
	return s
}

// Compare orders events by event time, then received time
func Compare(a, b Event) int {
	if c := a.eventTime.Compare(b.eventTime); c != 0 {
		return c
	}
	return a.receivedTime.Compare(b.receivedTime)
}

// Less reports whether a sorts before b
func Less(a, b Event) bool {
	return Compare(a, b) < 0
}

// Kind implements Payload
func (Timer) Kind() Kind {
	return TimerKind
}

// TopicSegments implements Payload
func (t Timer) TopicSegments() (instrument, granularity, variant string) {
	if t.Periodic {
		return NoSegment, "PERIODIC", t.Name
	}
	return NoSegment, "ONCE", t.Name
}
