package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/tradeloop/tradeloop/dispatch"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/feed"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
	"github.com/tradeloop/tradeloop/strategies"
)

// State is the engine lifecycle state
type State uint32

// Engine states
const (
	New State = iota
	Running
	Stopped
	Error
)

const (
	defaultIdlePollInterval = 10 * time.Millisecond
	// maxDrainRounds bounds how often broker events are drained after one
	// market event
	maxDrainRounds = 1000
)

var (
	// ErrNotRunning is returned when stepping an engine that is not running
	ErrNotRunning = errors.New("engine is not running")
	// ErrAlreadyStarted is returned when starting an engine twice
	ErrAlreadyStarted = errors.New("engine already started")
	// ErrClockMovedBackward is returned when an event would move the clock back
	ErrClockMovedBackward = errors.New("clock moved backward")
	// ErrLookAhead is returned when a strategy would observe an event older
	// than one it has already seen
	ErrLookAhead = errors.New("strategy received an event older than one already delivered")
	// ErrOrderNotOwned is returned when a strategy cancels or modifies an
	// order another strategy submitted
	ErrOrderNotOwned = errors.New("order belongs to another strategy")

	errNameNotSet        = errors.New("name not set")
	errDuplicateName     = errors.New("name already registered")
	errBrokerNotFound    = errors.New("broker not found")
	errRegistrationState = errors.New("brokers and strategies can only be added before the engine starts")
)

// Broker is a matching engine the orchestrator feeds market snapshots to
type Broker interface {
	Name() string
	Connect() error
	Disconnect() error
	IsConnected() bool
	SupportsInstrument(*market.Instrument) bool
	SubmitOrder(*order.Order) error
	CancelOrder(*order.Order) error
	ModifyOrder(*order.Order) error
	ListActiveOrders() []*order.Order
	ProcessOrderBook(*market.OrderBook) error
	SetTimelineDT(time.Time) error
	// DrainEvents returns the order updates and fills generated since the
	// last call
	DrainEvents() []event.Event
}

// Producer fills a live feed from an outside source until ctx ends
type Producer interface {
	Run(ctx context.Context) error
}

// Settings configures an engine
type Settings struct {
	Name string
	// IdlePollInterval is how long Run waits when every active feed reports
	// nothing available
	IdlePollInterval time.Duration
	Metrics          *Metrics
}

// FeedSettings describes how events from one feed are used
type FeedSettings struct {
	// DrivesFills converts the feed's market events into order book
	// snapshots for every broker trading the instrument
	DrivesFills   bool
	BarConversion market.BarConversion
}

// TradingEngine merges feeds into one timeline and drives brokers and
// strategies along it
type TradingEngine struct {
	id       uuid.UUID
	name     string
	idle     time.Duration
	metrics  *Metrics
	router   *dispatch.Router
	holder   Holder
	stepping sync.Mutex

	m          sync.RWMutex
	state      State
	clock      time.Time
	feeds      []*feedState
	feedSeq    int
	brokers    []Broker
	brokerIdx  map[string]Broker
	strats     []*strategyState
	producers  []Producer
	dispatched uint64
	stopping   atomic.Bool
	finished   chan struct{}
	finish     sync.Once
}

type feedState struct {
	name     string
	index    int
	feed     feed.EventFeed
	settings FeedSettings
	last     time.Time
}

type strategyState struct {
	id        string
	handler   strategies.Handler
	ctx       *strategyContext
	subs      []uuid.UUID
	last      time.Time
	lastSeq   uint64
	errors    int64
	delivered int64
}

// Holder is the queue of events awaiting dispatch
type Holder struct {
	Queue []event.Event
}

// Summary describes an engine for listings
type Summary struct {
	ID         uuid.UUID
	Name       string
	State      State
	Clock      time.Time
	Feeds      int
	Brokers    []string
	Strategies []string
	Dispatched uint64
}
