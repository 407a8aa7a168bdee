package event

import (
	"errors"
	"time"
)

// TopicSeparator joins topic segments
const TopicSeparator = "::"

// NoSegment fills topic segments a payload has no value for
const NoSegment = "NONE"

var (
	// ErrUnknownKind is returned when a payload kind is not recognised
	ErrUnknownKind = errors.New("unknown event kind")
	// ErrNilPayload is returned when an event carries no payload
	ErrNilPayload = errors.New("event has no payload")
	// ErrZeroTime is returned when an event has no event time
	ErrZeroTime = errors.New("event time is unset")
)

// Kind identifies the payload variant an event carries
type Kind uint8

// Payload kinds
const (
	UnknownKind Kind = iota
	BarKind
	TradeKind
	QuoteKind
	OrderBookKind
	TimerKind
	OrderUpdateKind
	FillKind
)

// Payload is implemented by every value an Event can carry. The set of
// implementations is closed: market bars, trades, quotes and order books,
// timers, order updates and fills
type Payload interface {
	Kind() Kind
	// TopicSegments returns the instrument, granularity and variant
	// segments of the payload's topic
	TopicSegments() (instrument, granularity, variant string)
}

// Event is an immutable timestamped envelope around one payload
type Event struct {
	eventTime    time.Time
	receivedTime time.Time
	payload      Payload
}

// Timer is the payload emitted by one-time and periodic timer feeds
type Timer struct {
	Name     string
	Periodic bool
	// Sequence counts firings of a periodic timer, starting at zero
	Sequence int64
}
