package dispatch

import (
	"errors"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/tradeloop/tradeloop/event"
)

// Wildcard matches any single topic segment
const Wildcard = "*"

// All matches every four segment topic
const All = "*::*::*::*"

var (
	// ErrInvalidTopic is returned for empty topics or topics with empty segments
	ErrInvalidTopic = errors.New("invalid topic")

	errRouterNil     = errors.New("router is nil")
	errNilHandler    = errors.New("handler is nil")
	errIDNotSet      = errors.New("id not set")
	errWildcardTopic = errors.New("published topics cannot contain wildcards")
)

// Handler receives published events
type Handler func(event.Event) error

// Topic is a parsed topic or subscription pattern
type Topic []string

// Router fans published events out to subscribers whose pattern matches
// the event topic. Subscribers are invoked in descending priority, then in
// registration order
type Router struct {
	m       sync.RWMutex
	subs    map[uuid.UUID]*subscription
	ordered []*subscription
	seq     uint64
	// cache maps a topic to its matching subscribers and is reset whenever
	// subscriptions change
	cache map[string][]*subscription
}

type subscription struct {
	id       uuid.UUID
	pattern  Topic
	handler  Handler
	priority int
	seq      uint64
	active   bool
}
