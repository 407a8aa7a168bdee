package simbroker

import (
	"errors"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
	"github.com/tradeloop/tradeloop/simbroker/account"
	"github.com/tradeloop/tradeloop/simbroker/fee"
	"github.com/tradeloop/tradeloop/simbroker/slippage"
)

var (
	// ErrNotConnected is returned when operating on a disconnected broker
	ErrNotConnected = errors.New("broker is not connected")
	// ErrDuplicateOrder is returned when an order id has already been submitted
	ErrDuplicateOrder = errors.New("order already submitted")
	// ErrOrderNotFound is returned when an order id is unknown to the broker
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotActive is returned when operating on an order in a terminal state.
	// The order is left untouched
	ErrOrderNotActive = errors.New("order is not active")
	// ErrModifyRejected is returned when a modification cannot be applied.
	// The order is left untouched
	ErrModifyRejected = errors.New("order modification rejected")
	// ErrTimeMovedBackward is returned when the broker clock would move into the past
	ErrTimeMovedBackward = errors.New("timeline cannot move backward")
	// ErrUnsupportedInstrument is returned for instruments the broker does not trade
	ErrUnsupportedInstrument = errors.New("instrument not supported")
	// ErrOrderNotNew is returned when submitting an order that has already left NEW
	ErrOrderNotNew = errors.New("order must be in NEW state to submit")

	errNameNotSet = errors.New("broker name not set")
)

// Settings configures one simulated broker
type Settings struct {
	Name        string
	Instruments []*market.Instrument
	InitialCash map[string]decimal.Decimal
	Fee         fee.Model
	Slippage    slippage.Model
	// DayBoundary is the offset from midnight in Location at which DAY
	// orders expire
	DayBoundary time.Duration
	Location    *time.Location
}

// SimBroker simulates one venue account: it owns the order lifecycle,
// matches working orders against order book snapshots and settles fills
// into its own account
type SimBroker struct {
	m           sync.Mutex
	name        string
	instruments map[string]*market.Instrument
	fees        fee.Model
	slip        slippage.Model
	dayBoundary time.Duration
	location    *time.Location

	connected bool
	now       time.Time
	account   *account.Account
	// orders holds every order ever submitted, terminal ones included
	orders  map[uuid.UUID]*order.Order
	history []uuid.UUID
	books   map[string]*book
	// evaluated marks orders that have been checked against at least one
	// snapshot since becoming active
	evaluated  map[uuid.UUID]bool
	lastPrice  map[string]decimal.Decimal
	marginCall bool
	seq        uint64
	pending    []pendingEvent
}

type pendingEvent struct {
	payload event.Payload
	at      time.Time
}

// entry is an order resting in a book. Fields used for ordering never
// change while the entry is in a tree
type entry struct {
	seq   uint64
	order *order.Order
}

// book holds the working orders of one instrument
type book struct {
	buys  *btree.BTreeG[*entry]
	sells *btree.BTreeG[*entry]
	// stops holds untriggered stop and stop limit orders in time priority
	stops *btree.BTreeG[*entry]
	index map[uuid.UUID]*entry
}

// depth is a mutable copy of one side of a snapshot shared by every
// order matched against it
type depth struct {
	levels []market.Level
	used   []decimal.Decimal
}
