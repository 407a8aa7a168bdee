package simbroker

import (
	"fmt"
	"slices"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/common"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/log"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
	"github.com/tradeloop/tradeloop/simbroker/account"
	"github.com/tradeloop/tradeloop/simbroker/fee"
	"github.com/tradeloop/tradeloop/simbroker/slippage"
)

// New returns a disconnected broker with its own account
func New(s *Settings) (*SimBroker, error) {
	if s == nil {
		return nil, fmt.Errorf("%w Settings", common.ErrNilPointer)
	}
	if s.Name == "" {
		return nil, errNameNotSet
	}
	b := &SimBroker{
		name:        s.Name,
		instruments: make(map[string]*market.Instrument, len(s.Instruments)),
		fees:        s.Fee,
		slip:        s.Slippage,
		dayBoundary: s.DayBoundary,
		location:    s.Location,
		account:     account.New(s.InitialCash),
		orders:      make(map[uuid.UUID]*order.Order),
		books:       make(map[string]*book),
		evaluated:   make(map[uuid.UUID]bool),
		lastPrice:   make(map[string]decimal.Decimal),
	}
	if b.fees == nil {
		b.fees = fee.None{}
	}
	if b.slip == nil {
		b.slip = slippage.None{}
	}
	if b.location == nil {
		b.location = time.UTC
	}
	if b.dayBoundary < 0 || b.dayBoundary >= 24*time.Hour {
		return nil, fmt.Errorf("%s: day boundary %v must be within one day", s.Name, b.dayBoundary)
	}
	for _, inst := range s.Instruments {
		if err := inst.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		b.instruments[inst.ID()] = inst
		b.books[inst.ID()] = newBook()
	}
	return b, nil
}

// Name returns the broker name
func (b *SimBroker) Name() string {
	return b.name
}

// Connect enables order submission
func (b *SimBroker) Connect() error {
	b.m.Lock()
	defer b.m.Unlock()
	b.connected = true
	log.Debugf(log.SimBroker, "%s connected", b.name)
	return nil
}

// Disconnect disables order submission. Working orders are left as they are
func (b *SimBroker) Disconnect() error {
	b.m.Lock()
	defer b.m.Unlock()
	b.connected = false
	log.Debugf(log.SimBroker, "%s disconnected", b.name)
	return nil
}

// IsConnected reports whether orders can be submitted
func (b *SimBroker) IsConnected() bool {
	b.m.Lock()
	defer b.m.Unlock()
	return b.connected
}

// SupportsInstrument reports whether the broker trades inst
func (b *SimBroker) SupportsInstrument(inst *market.Instrument) bool {
	if inst == nil {
		return false
	}
	_, ok := b.instruments[inst.ID()]
	return ok
}

// Instruments returns the traded instruments sorted by id
func (b *SimBroker) Instruments() []*market.Instrument {
	out := make([]*market.Instrument, 0, len(b.instruments))
	for _, inst := range b.instruments {
		out = append(out, inst)
	}
	slices.SortFunc(out, func(a, c *market.Instrument) int {
		switch {
		case a.ID() < c.ID():
			return -1
		case a.ID() > c.ID():
			return 1
		}
		return 0
	})
	return out
}

// Now returns the broker clock
func (b *SimBroker) Now() time.Time {
	b.m.Lock()
	defer b.m.Unlock()
	return b.now
}

// Account returns a copy of the account for inspection
func (b *SimBroker) Account() *account.Account {
	b.m.Lock()
	defer b.m.Unlock()
	return b.account.Clone()
}

// SubmitOrder takes ownership of o. Validation and funding failures move the
// order to REJECTED with a reason and return nil; errors are only returned
// when the operation itself cannot be attempted. The resulting state is
// written back to o
func (b *SimBroker) SubmitOrder(o *order.Order) error {
	if o == nil {
		return fmt.Errorf("%w order", common.ErrNilPointer)
	}
	b.m.Lock()
	defer b.m.Unlock()
	if !b.connected {
		return fmt.Errorf("%s: %w", b.name, ErrNotConnected)
	}
	if o.Status != order.New && o.Status != order.UnknownStatus {
		return fmt.Errorf("%s: %w, order %s is %s", b.name, ErrOrderNotNew, o.ID, o.Status)
	}
	if o.ID.IsNil() {
		o.ID = uuid.Must(uuid.NewV4())
	}
	if _, ok := b.orders[o.ID]; ok {
		return fmt.Errorf("%s: %w: %s", b.name, ErrDuplicateOrder, o.ID)
	}
	internal := o.Clone()
	internal.Status = order.New
	internal.CreatedAt = b.now
	if internal.TimeInForce == order.UnknownTIF {
		internal.TimeInForce = order.GoodTillCancel
	}
	b.orders[internal.ID] = internal
	b.history = append(b.history, internal.ID)
	if err := b.transition(internal, order.Submitted); err != nil {
		return common.Fatal(err)
	}

	if reason := b.validate(internal); reason != nil {
		if err := b.reject(internal, reason.Error()); err != nil {
			return err
		}
	} else if err := b.accept(internal); err != nil {
		return err
	}
	*o = *internal.Clone()
	return nil
}

func (b *SimBroker) validate(o *order.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	inst, ok := b.instruments[o.Instrument.ID()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedInstrument, o.Instrument.ID())
	}
	o.Instrument = inst
	if o.TimeInForce.Is(order.GoodTillDate) && !b.now.IsZero() && !o.ExpireAt.After(b.now) {
		return fmt.Errorf("%w: expiry %v is not after %v", order.ErrInvalidOrder, o.ExpireAt, b.now)
	}
	margin := b.account.InitialMargin(inst, o.Side, o.Quantity, b.referencePrice(o))
	return b.account.Reserve(o.ID, inst, margin)
}

// referencePrice is the price used to block initial margin. Market orders use
// the last traded price and block nothing when none is known yet
func (b *SimBroker) referencePrice(o *order.Order) decimal.Decimal {
	switch o.EffectiveType() {
	case order.Limit:
		return o.Price
	case order.Stop:
		return o.StopPrice
	case order.StopLimit:
		return o.Price
	}
	return b.lastPrice[o.Instrument.ID()]
}

func (b *SimBroker) reject(o *order.Order, reason string) error {
	o.Reason = reason
	if err := b.transition(o, order.Rejected); err != nil {
		return common.Fatal(err)
	}
	log.Warnf(log.SimBroker, "%s rejected order %s: %s", b.name, o.ID, reason)
	return nil
}

func (b *SimBroker) accept(o *order.Order) error {
	if err := b.transition(o, order.Working); err != nil {
		return common.Fatal(err)
	}
	b.seq++
	b.books[o.Instrument.ID()].add(o, b.seq)
	log.Debugf(log.SimBroker, "%s accepted %s", b.name, o)
	return nil
}

// CancelOrder cancels an active order and releases its blocked margin.
// Cancelling a terminal order returns ErrOrderNotActive and changes nothing
func (b *SimBroker) CancelOrder(o *order.Order) error {
	if o == nil {
		return fmt.Errorf("%w order", common.ErrNilPointer)
	}
	b.m.Lock()
	defer b.m.Unlock()
	internal, ok := b.orders[o.ID]
	if !ok {
		return fmt.Errorf("%s: %w: %s", b.name, ErrOrderNotFound, o.ID)
	}
	if !internal.Status.IsActive() {
		*o = *internal.Clone()
		return fmt.Errorf("%s: %w: %s is %s", b.name, ErrOrderNotActive, o.ID, internal.Status)
	}
	if err := b.close(internal, order.Cancelled, "cancelled by request"); err != nil {
		return err
	}
	*o = *internal.Clone()
	return nil
}

// ModifyOrder applies the quantity, price, stop price and expiry of o to
// the active order with the same id. Margin is re-blocked for the new terms
// and the order loses its time priority. A rejected modification leaves the
// order as it was
func (b *SimBroker) ModifyOrder(o *order.Order) error {
	if o == nil {
		return fmt.Errorf("%w order", common.ErrNilPointer)
	}
	b.m.Lock()
	defer b.m.Unlock()
	if !b.connected {
		return fmt.Errorf("%s: %w", b.name, ErrNotConnected)
	}
	internal, ok := b.orders[o.ID]
	if !ok {
		return fmt.Errorf("%s: %w: %s", b.name, ErrOrderNotFound, o.ID)
	}
	if !internal.Status.IsActive() {
		return fmt.Errorf("%s: %w: %s is %s", b.name, ErrOrderNotActive, o.ID, internal.Status)
	}

	candidate := internal.Clone()
	candidate.Quantity = o.Quantity
	candidate.Price = o.Price
	candidate.StopPrice = o.StopPrice
	candidate.ExpireAt = o.ExpireAt
	if err := candidate.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrModifyRejected, err)
	}
	if !candidate.Quantity.GreaterThan(candidate.FilledQuantity) {
		return fmt.Errorf("%w: quantity %v must exceed filled %v", ErrModifyRejected, candidate.Quantity, candidate.FilledQuantity)
	}
	if candidate.TimeInForce.Is(order.GoodTillDate) && !candidate.ExpireAt.After(b.now) {
		return fmt.Errorf("%w: expiry %v is not after %v", ErrModifyRejected, candidate.ExpireAt, b.now)
	}

	previous := b.account.ReleaseAll(internal.ID)
	margin := b.account.InitialMargin(candidate.Instrument, candidate.Side, candidate.Remaining(), b.referencePrice(candidate))
	if err := b.account.Reserve(internal.ID, candidate.Instrument, margin); err != nil {
		if restoreErr := b.account.Reserve(internal.ID, internal.Instrument, previous); restoreErr != nil {
			return common.Fatal(fmt.Errorf("restoring margin for %s: %w", internal.ID, restoreErr))
		}
		return fmt.Errorf("%w: %w", ErrModifyRejected, err)
	}

	bk := b.books[internal.Instrument.ID()]
	bk.remove(internal)
	internal.Quantity = candidate.Quantity
	internal.Price = candidate.Price
	internal.StopPrice = candidate.StopPrice
	internal.ExpireAt = candidate.ExpireAt
	internal.UpdatedAt = b.now
	b.seq++
	bk.add(internal, b.seq)
	delete(b.evaluated, internal.ID)
	b.emitUpdate(internal, internal.Status)
	log.Debugf(log.SimBroker, "%s modified %s", b.name, internal)
	*o = *internal.Clone()
	return nil
}

// ListActiveOrders returns copies of every WORKING or PARTIALLY_FILLED order
// in submission order
func (b *SimBroker) ListActiveOrders() []*order.Order {
	b.m.Lock()
	defer b.m.Unlock()
	var out []*order.Order
	for _, id := range b.history {
		if o := b.orders[id]; o.Status.IsActive() {
			out = append(out, o.Clone())
		}
	}
	return out
}

// Orders returns copies of every order ever submitted, in submission order
func (b *SimBroker) Orders() []*order.Order {
	b.m.Lock()
	defer b.m.Unlock()
	out := make([]*order.Order, len(b.history))
	for x, id := range b.history {
		out[x] = b.orders[id].Clone()
	}
	return out
}

// Order returns a copy of one order
func (b *SimBroker) Order(id uuid.UUID) (*order.Order, error) {
	b.m.Lock()
	defer b.m.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", b.name, ErrOrderNotFound, id)
	}
	return o.Clone(), nil
}

// DrainEvents returns and clears the fills and order updates generated
// since the last call. Events generated before the clock started are held
// back and stamped with the first timeline instant
func (b *SimBroker) DrainEvents() []event.Event {
	b.m.Lock()
	defer b.m.Unlock()
	if b.now.IsZero() || len(b.pending) == 0 {
		return nil
	}
	out := make([]event.Event, 0, len(b.pending))
	for _, p := range b.pending {
		at := p.at
		if at.IsZero() {
			at = b.now
		}
		e, err := event.New(p.payload, at, at)
		if err != nil {
			log.Errorf(log.SimBroker, "%s: %v", b.name, err)
			continue
		}
		out = append(out, e)
	}
	b.pending = nil
	return out
}

// SetTimelineDT advances the broker clock and expires DAY and GTD orders
// whose deadline has passed. Moving backward is an error
func (b *SimBroker) SetTimelineDT(t time.Time) error {
	b.m.Lock()
	defer b.m.Unlock()
	return b.setTime(t)
}

func (b *SimBroker) setTime(t time.Time) error {
	if t.Before(b.now) {
		return fmt.Errorf("%s: %w: %v is before %v", b.name, ErrTimeMovedBackward, t, b.now)
	}
	b.now = t
	return b.expire()
}

func (b *SimBroker) expire() error {
	for _, id := range b.history {
		o := b.orders[id]
		if !o.Status.IsActive() {
			continue
		}
		if o.CreatedAt.IsZero() {
			// submitted before the clock started
			o.CreatedAt = b.now
		}
		var reason string
		switch {
		case o.TimeInForce.Is(order.GoodTillDate) && !b.now.Before(o.ExpireAt):
			reason = fmt.Sprintf("expired at %v", o.ExpireAt)
		case o.TimeInForce.Is(order.GoodTillDay):
			if boundary := b.nextDayBoundary(o.CreatedAt); !b.now.Before(boundary) {
				reason = fmt.Sprintf("trading day ended at %v", boundary)
			}
		}
		if reason == "" {
			continue
		}
		if err := b.close(o, order.Expired, reason); err != nil {
			return err
		}
	}
	return nil
}

// nextDayBoundary returns the first trading day boundary strictly after t
func (b *SimBroker) nextDayBoundary(t time.Time) time.Time {
	local := t.In(b.location)
	boundary := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, b.location).Add(b.dayBoundary)
	if !boundary.After(local) {
		boundary = time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, b.location).Add(b.dayBoundary)
	}
	return boundary
}

// close moves an active order to a terminal state other than FILLED and
// releases whatever margin it still blocks
func (b *SimBroker) close(o *order.Order, status order.Status, reason string) error {
	prev := o.Status
	b.books[o.Instrument.ID()].remove(o)
	o.Reason = reason
	if err := o.Transition(status, b.now); err != nil {
		return common.Fatal(err)
	}
	b.account.ReleaseAll(o.ID)
	delete(b.evaluated, o.ID)
	b.emitUpdate(o, prev)
	log.Debugf(log.SimBroker, "%s %s order %s: %s", b.name, status, o.ID, reason)
	return nil
}

func (b *SimBroker) transition(o *order.Order, to order.Status) error {
	prev := o.Status
	if err := o.Transition(to, b.now); err != nil {
		return err
	}
	b.emitUpdate(o, prev)
	return nil
}

func (b *SimBroker) emitUpdate(o *order.Order, prev order.Status) {
	b.emit(order.Update{Broker: b.name, Previous: prev, Order: *o.Clone(), Time: b.now})
}

func (b *SimBroker) emit(p event.Payload) {
	b.pending = append(b.pending, pendingEvent{payload: p, at: b.now})
}
