package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/tradeloop/tradeloop/common"
	"github.com/tradeloop/tradeloop/dispatch"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/feed"
	"github.com/tradeloop/tradeloop/log"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
	"github.com/tradeloop/tradeloop/strategies"
)

// String implements the stringer interface
func (s State) String() string {
	switch s {
	case New:
		return "NEW"
	case Running:
		return "RUNNING"
	case Stopped:
		return "STOPPED"
	case Error:
		return "ERROR"
	}
	return fmt.Sprintf("STATE(%d)", uint32(s))
}

// NewTradingEngine returns an engine in the NEW state
func NewTradingEngine(s *Settings) (*TradingEngine, error) {
	if s == nil {
		return nil, fmt.Errorf("%w Settings", common.ErrNilPointer)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	name := s.Name
	if name == "" {
		name = id.String()
	}
	idle := s.IdlePollInterval
	if idle <= 0 {
		idle = defaultIdlePollInterval
	}
	metrics := s.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &TradingEngine{
		id:        id,
		name:      name,
		idle:      idle,
		metrics:   metrics,
		router:    dispatch.NewRouter(),
		brokerIdx: make(map[string]Broker),
		finished:  make(chan struct{}),
	}, nil
}

// ID returns the engine's unique id
func (e *TradingEngine) ID() uuid.UUID {
	return e.id
}

// Name returns the engine name
func (e *TradingEngine) Name() string {
	return e.name
}

// State returns the lifecycle state
func (e *TradingEngine) State() State {
	e.m.RLock()
	defer e.m.RUnlock()
	return e.state
}

// Now returns the timeline clock, the event time of the last event popped
func (e *TradingEngine) Now() time.Time {
	e.m.RLock()
	defer e.m.RUnlock()
	return e.clock
}

// Router returns the topic router strategies are subscribed through
func (e *TradingEngine) Router() *dispatch.Router {
	return e.router
}

// Metrics returns the engine metrics
func (e *TradingEngine) Metrics() *Metrics {
	return e.metrics
}

// Broker returns a registered broker by name
func (e *TradingEngine) Broker(name string) (Broker, error) {
	e.m.RLock()
	defer e.m.RUnlock()
	b, ok := e.brokerIdx[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errBrokerNotFound, name)
	}
	return b, nil
}

// Instrument looks up an instrument traded by any registered broker
func (e *TradingEngine) Instrument(id string) (*market.Instrument, bool) {
	e.m.RLock()
	defer e.m.RUnlock()
	for _, b := range e.brokers {
		lister, ok := b.(interface{ Instruments() []*market.Instrument })
		if !ok {
			continue
		}
		for _, inst := range lister.Instruments() {
			if inst.ID() == id {
				return inst, true
			}
		}
	}
	return nil, false
}

// AddFeed registers a feed. Feeds added while running are first
// resynchronised onto the current clock
func (e *TradingEngine) AddFeed(name string, f feed.EventFeed, s FeedSettings) error {
	if f == nil {
		return fmt.Errorf("%w feed", common.ErrNilPointer)
	}
	if name == "" {
		return fmt.Errorf("feed %w", errNameNotSet)
	}
	e.m.Lock()
	defer e.m.Unlock()
	switch e.state {
	case Stopped, Error:
		return ErrNotRunning
	case Running:
		f.RemoveEventsBefore(e.clock)
	}
	for _, fs := range e.feeds {
		if fs.name == name {
			return fmt.Errorf("feed %q %w", name, errDuplicateName)
		}
	}
	e.feeds = append(e.feeds, &feedState{name: name, index: e.feedSeq, feed: f, settings: s})
	e.feedSeq++
	e.metrics.activeFeeds.Set(float64(len(e.feeds)))
	log.Debugf(log.Engine, "%s added feed %s, drives fills: %v", e.name, name, s.DrivesFills)
	return nil
}

// AddBroker registers a broker under its name
func (e *TradingEngine) AddBroker(b Broker) error {
	if b == nil {
		return fmt.Errorf("%w broker", common.ErrNilPointer)
	}
	if b.Name() == "" {
		return fmt.Errorf("broker %w", errNameNotSet)
	}
	e.m.Lock()
	defer e.m.Unlock()
	if e.state != New {
		return errRegistrationState
	}
	if _, ok := e.brokerIdx[b.Name()]; ok {
		return fmt.Errorf("broker %q %w", b.Name(), errDuplicateName)
	}
	e.brokers = append(e.brokers, b)
	e.brokerIdx[b.Name()] = b
	return nil
}

// AddStrategy registers a strategy under id and subscribes it to its
// topics, plus order updates and fills for its own orders
func (e *TradingEngine) AddStrategy(id string, h strategies.Handler) error {
	if h == nil {
		return fmt.Errorf("%w strategy", common.ErrNilPointer)
	}
	if id == "" {
		id = h.Name()
	}
	e.m.Lock()
	defer e.m.Unlock()
	if e.state != New {
		return errRegistrationState
	}
	for _, s := range e.strats {
		if s.id == id {
			return fmt.Errorf("strategy %q %w", id, errDuplicateName)
		}
	}
	st := &strategyState{id: id, handler: h}
	st.ctx = &strategyContext{engine: e, strategy: st}
	patterns := append(slices.Clone(h.Subscriptions()), "order::*::*::*", "fill::*::*::*")
	for _, p := range patterns {
		sub, err := e.router.Subscribe(p, func(ev event.Event) error {
			return e.deliver(st, ev)
		}, 0)
		if err != nil {
			for _, s := range st.subs {
				_ = e.router.Unsubscribe(s)
			}
			return fmt.Errorf("strategy %q: %w", id, err)
		}
		st.subs = append(st.subs, sub)
	}
	e.strats = append(e.strats, st)
	log.Infof(log.Engine, "%s added strategy %s (%s) subscribed to %v", e.name, id, h.Name(), patterns)
	return nil
}

// AddProducer registers a producer started with Run and stopped when Run
// returns
func (e *TradingEngine) AddProducer(p Producer) error {
	if p == nil {
		return fmt.Errorf("%w producer", common.ErrNilPointer)
	}
	e.m.Lock()
	defer e.m.Unlock()
	if e.state != New {
		return errRegistrationState
	}
	e.producers = append(e.producers, p)
	return nil
}

// Start connects every broker and calls OnStart on every strategy, moving
// the engine to RUNNING
func (e *TradingEngine) Start() error {
	e.stepping.Lock()
	defer e.stepping.Unlock()
	e.m.Lock()
	if e.state != New {
		e.m.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, e.state)
	}
	for _, b := range e.brokers {
		if b.IsConnected() {
			continue
		}
		if err := b.Connect(); err != nil {
			e.state = Error
			e.m.Unlock()
			return fmt.Errorf("connecting %s: %w", b.Name(), err)
		}
	}
	e.state = Running
	e.m.Unlock()

	log.Infof(log.Engine, "%s started with %d feeds, %d brokers and %d strategies", e.name, len(e.feeds), len(e.brokers), len(e.strats))
	for _, st := range e.strats {
		if err := e.guard(st, st.handler.OnStart(st.ctx)); err != nil {
			e.fail(err)
			return err
		}
	}
	return e.drain()
}

// Run starts the engine if needed and steps until every feed is finished,
// Stop is called or ctx ends. Engine-fatal errors stop the run and are
// returned
func (e *TradingEngine) Run(ctx context.Context) error {
	switch e.State() {
	case New:
		if err := e.Start(); err != nil {
			return err
		}
	case Running:
	default:
		return ErrNotRunning
	}
	defer e.finish.Do(func() { close(e.finished) })
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	for _, p := range e.producers {
		wg.Add(1)
		go func(p Producer) {
			defer wg.Done()
			if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf(log.Engine, "%s producer stopped: %v", e.name, err)
			}
		}(p)
	}
	for {
		if err := ctx.Err(); err != nil {
			log.Infof(log.Engine, "%s context done: %v", e.name, err)
			return e.Stop()
		}
		if e.stopping.Load() || e.State() != Running {
			return e.Stop()
		}
		processed, err := e.Step()
		if err != nil {
			if errors.Is(err, ErrNotRunning) {
				return nil
			}
			return err
		}
		if processed {
			continue
		}
		if e.activeFeeds() == 0 {
			log.Infof(log.Engine, "%s every feed finished at %v", e.name, e.Now())
			return e.Stop()
		}
		select {
		case <-ctx.Done():
		case <-time.After(e.idle):
		}
	}
}

// Done is closed when Run returns
func (e *TradingEngine) Done() <-chan struct{} {
	return e.finished
}

func (e *TradingEngine) activeFeeds() int {
	e.m.RLock()
	defer e.m.RUnlock()
	return len(e.feeds)
}

// Step processes the next event of the merged timeline. It reports false
// when no feed had an event available
func (e *TradingEngine) Step() (bool, error) {
	e.stepping.Lock()
	defer e.stepping.Unlock()
	if e.State() != Running {
		return false, ErrNotRunning
	}
	started := time.Now()

	fs, ev, ok := e.next()
	if !ok {
		e.evictFinished()
		return false, nil
	}
	if ev.EventTime().Before(fs.last) {
		err := common.Fatal(fmt.Errorf("%s: %w: %v after %v", fs.name, feed.ErrOutOfOrder, ev.EventTime(), fs.last))
		e.fail(err)
		return false, err
	}
	fs.last = ev.EventTime()
	if err := e.advance(ev.EventTime()); err != nil {
		if !errors.Is(err, ErrClockMovedBackward) {
			e.fail(err)
			return false, err
		}
		// late data from a live feed cannot be placed on the timeline
		e.metrics.lateEvents.WithLabelValues(fs.name).Inc()
		log.Warnf(log.Engine, "%s dropped late event from %s: %v", e.name, fs.name, err)
		return true, nil
	}
	e.metrics.events.WithLabelValues(ev.Kind().String()).Inc()

	if fs.settings.DrivesFills {
		if err := e.match(ev, fs.settings.BarConversion); err != nil {
			e.fail(err)
			return false, err
		}
	}
	if err := e.drain(); err != nil {
		return false, err
	}
	if err := e.dispatch(ev); err != nil {
		e.fail(err)
		return false, err
	}
	if err := e.drain(); err != nil {
		return false, err
	}
	e.evictFinished()
	e.metrics.stepLatency.Observe(time.Since(started).Seconds())
	return true, nil
}

// next pops the earliest event across active feeds. Ties on event and
// received time go to the feed registered first
func (e *TradingEngine) next() (*feedState, event.Event, bool) {
	e.m.RLock()
	feeds := slices.Clone(e.feeds)
	e.m.RUnlock()
	var (
		best     *feedState
		bestNext event.Event
	)
	for _, fs := range feeds {
		ev, ok := fs.feed.Peek()
		if !ok {
			continue
		}
		if best == nil || event.Compare(ev, bestNext) < 0 ||
			(event.Compare(ev, bestNext) == 0 && fs.index < best.index) {
			best, bestNext = fs, ev
		}
	}
	if best == nil {
		return nil, event.Event{}, false
	}
	ev, ok := best.feed.Pop()
	if !ok || event.Compare(ev, bestNext) != 0 {
		log.Warnf(log.Engine, "%s: %s popped %v after peeking %v", e.name, best.name, ev, bestNext)
	}
	return best, ev, ok
}

// advance moves the global clock and every broker clock to t
func (e *TradingEngine) advance(t time.Time) error {
	e.m.Lock()
	if t.Before(e.clock) {
		now := e.clock
		e.m.Unlock()
		return fmt.Errorf("%w: %v is before %v", ErrClockMovedBackward, t, now)
	}
	e.clock = t
	brokers := slices.Clone(e.brokers)
	e.m.Unlock()
	for _, b := range brokers {
		if err := b.SetTimelineDT(t); err != nil {
			return common.Fatal(fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	return nil
}

// match converts ev into order book snapshots and feeds each, in order, to
// every broker trading the instrument
func (e *TradingEngine) match(ev event.Event, mode market.BarConversion) error {
	snaps, err := market.ToSnapshots(ev, mode)
	if err != nil {
		log.Warnf(log.Engine, "%s cannot match against %v: %v", e.name, ev, err)
		return nil
	}
	for x := range snaps {
		for _, b := range e.brokers {
			if !b.SupportsInstrument(snaps[x].Instrument) {
				continue
			}
			if err := b.ProcessOrderBook(&snaps[x]); err != nil {
				return common.Fatal(fmt.Errorf("%s: %w", b.Name(), err))
			}
		}
	}
	return nil
}

// drain moves broker events into the holder and dispatches them until no
// broker has anything left
func (e *TradingEngine) drain() error {
	for round := 0; ; round++ {
		for _, b := range e.brokers {
			e.holder.AppendEvent(b.DrainEvents()...)
		}
		if e.holder.Len() == 0 {
			return nil
		}
		if round >= maxDrainRounds {
			err := common.Fatal(fmt.Errorf("broker events still pending after %d rounds", maxDrainRounds))
			e.fail(err)
			return err
		}
		for {
			ev, ok := e.holder.NextEvent()
			if !ok {
				break
			}
			e.count(ev)
			if err := e.dispatch(ev); err != nil {
				e.holder.Reset()
				e.fail(err)
				return err
			}
		}
	}
}

func (e *TradingEngine) count(ev event.Event) {
	switch p := ev.Payload().(type) {
	case order.Fill:
		e.metrics.fills.WithLabelValues(p.Broker).Inc()
	case order.Update:
		if p.Order.Status == order.Rejected {
			e.metrics.rejections.WithLabelValues(p.Broker).Inc()
		}
	}
}

// dispatch publishes ev to every subscribed strategy
func (e *TradingEngine) dispatch(ev event.Event) error {
	e.m.Lock()
	e.dispatched++
	e.m.Unlock()
	_, err := e.router.PublishEvent(ev)
	return err
}

// deliver hands ev to one strategy. Order updates and fills only reach the
// strategy that owns the order. Strategy errors are routed to its OnError
// unless engine-fatal
func (e *TradingEngine) deliver(st *strategyState, ev event.Event) error {
	if owner := ownerOf(ev); owner != "" && owner != st.id {
		return nil
	}
	e.m.RLock()
	seq := e.dispatched
	e.m.RUnlock()
	if st.lastSeq == seq {
		// matched more than one of the strategy's patterns
		return nil
	}
	st.lastSeq = seq
	if ev.EventTime().Before(st.last) {
		return common.Fatal(fmt.Errorf("%s: %w: %v after %v", st.id, ErrLookAhead, ev.EventTime(), st.last))
	}
	st.last = ev.EventTime()
	st.delivered++
	return e.guard(st, strategies.Dispatch(st.handler, st.ctx, ev))
}

// guard isolates a strategy error unless it is engine-fatal
func (e *TradingEngine) guard(st *strategyState, err error) error {
	if err == nil {
		return nil
	}
	if common.IsFatal(err) {
		return err
	}
	st.errors++
	e.metrics.strategyErrors.WithLabelValues(st.id).Inc()
	st.handler.OnError(st.ctx, err)
	return nil
}

func ownerOf(ev event.Event) string {
	switch p := ev.Payload().(type) {
	case order.Fill:
		return p.Strategy
	case order.Update:
		return p.Order.Strategy
	}
	return ""
}

func (e *TradingEngine) evictFinished() {
	e.m.Lock()
	defer e.m.Unlock()
	e.feeds = slices.DeleteFunc(e.feeds, func(fs *feedState) bool {
		if !fs.feed.IsFinished() {
			return false
		}
		log.Debugf(log.Engine, "%s feed %s finished", e.name, fs.name)
		if err := fs.feed.Close(); err != nil {
			log.Errorf(log.Engine, "%s closing feed %s: %v", e.name, fs.name, err)
		}
		return true
	})
	e.metrics.activeFeeds.Set(float64(len(e.feeds)))
}

// Stop moves a NEW or RUNNING engine to STOPPED, calls OnStop on every
// strategy and closes every feed. Working orders are left as they are.
// Stopping a stopped engine does nothing
func (e *TradingEngine) Stop() error {
	e.stopping.Store(true)
	e.stepping.Lock()
	defer e.stepping.Unlock()
	e.m.Lock()
	prev := e.state
	if prev != New && prev != Running {
		e.m.Unlock()
		return nil
	}
	e.state = Stopped
	e.m.Unlock()
	if prev == Running {
		for _, st := range e.strats {
			if err := st.handler.OnStop(st.ctx); err != nil {
				st.handler.OnError(st.ctx, err)
			}
		}
	}
	e.closeFeeds()
	log.Infof(log.Engine, "%s stopped at %v", e.name, e.Now())
	return nil
}

// fail moves the engine to ERROR and closes every feed
func (e *TradingEngine) fail(err error) {
	e.m.Lock()
	if e.state == Error {
		e.m.Unlock()
		return
	}
	e.state = Error
	e.m.Unlock()
	log.Errorf(log.Engine, "%s aborted: %v", e.name, err)
	e.closeFeeds()
}

func (e *TradingEngine) closeFeeds() {
	e.m.Lock()
	defer e.m.Unlock()
	for _, fs := range e.feeds {
		if err := fs.feed.Close(); err != nil {
			log.Errorf(log.Engine, "%s closing feed %s: %v", e.name, fs.name, err)
		}
	}
	e.feeds = nil
	e.metrics.activeFeeds.Set(0)
}

// Summary describes the engine
func (e *TradingEngine) Summary() *Summary {
	e.m.RLock()
	defer e.m.RUnlock()
	s := &Summary{
		ID:         e.id,
		Name:       e.name,
		State:      e.state,
		Clock:      e.clock,
		Feeds:      len(e.feeds),
		Dispatched: e.dispatched,
	}
	for _, b := range e.brokers {
		s.Brokers = append(s.Brokers, b.Name())
	}
	for _, st := range e.strats {
		s.Strategies = append(s.Strategies, st.id)
	}
	return s
}
