package order

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/market"
)

var transitions = map[Status][]Status{
	New:             {Submitted},
	Submitted:       {Working, Rejected},
	Working:         {PartiallyFilled, Filled, Cancelled, Expired},
	PartiallyFilled: {PartiallyFilled, Filled, Cancelled, Expired},
}

// StringToOrderSide for converting case insensitive order side
// and returning a real Side
func StringToOrderSide(side string) (Side, error) {
	switch strings.ToUpper(side) {
	case "BUY", "BID", "LONG":
		return Buy, nil
	case "SELL", "ASK", "SHORT":
		return Sell, nil
	}
	return UnknownSide, fmt.Errorf("%w: %q", ErrSideIsInvalid, side)
}

// StringToOrderType for converting case insensitive order type
// and returning a real Type
func StringToOrderType(oType string) (Type, error) {
	switch strings.ToUpper(strings.ReplaceAll(oType, " ", "_")) {
	case "MARKET":
		return Market, nil
	case "LIMIT":
		return Limit, nil
	case "STOP", "STOP_MARKET":
		return Stop, nil
	case "STOP_LIMIT", "STOPLIMIT":
		return StopLimit, nil
	}
	return UnknownType, fmt.Errorf("%w: %q", ErrTypeIsInvalid, oType)
}

// Sign returns one for buys and minus one for sells
func (s Side) Sign() decimal.Decimal {
	if s == Sell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Opposite returns the other side
func (s Side) Opposite() Side {
	switch s {
	case Buy:
		return Sell
	case Sell:
		return Buy
	}
	return UnknownSide
}

// IsTerminal reports whether no further transitions are possible
func (s Status) IsTerminal() bool {
	switch s {
	case Filled, Cancelled, Expired, Rejected:
		return true
	}
	return false
}

// IsActive reports whether the order can still match
func (s Status) IsActive() bool {
	return s == Working || s == PartiallyFilled
}

// CanTransition reports whether from -> to is a legal lifecycle step
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// newOrder returns an order in the NEW state with a fresh identifier. The
// default time in force is GoodTillCancel
func newOrder(inst *market.Instrument, side Side, oType Type, qty decimal.Decimal) *Order {
	return &Order{
		ID:          uuid.Must(uuid.NewV4()),
		Instrument:  inst,
		Side:        side,
		Type:        oType,
		Quantity:    qty,
		TimeInForce: GoodTillCancel,
		Status:      New,
	}
}

// NewMarket returns a market order
func NewMarket(inst *market.Instrument, side Side, qty decimal.Decimal) *Order {
	return newOrder(inst, side, Market, qty)
}

// NewLimit returns a limit order
func NewLimit(inst *market.Instrument, side Side, qty, price decimal.Decimal) *Order {
	o := newOrder(inst, side, Limit, qty)
	o.Price = price
	return o
}

// NewStop returns a stop order that becomes a market order once triggered
func NewStop(inst *market.Instrument, side Side, qty, stop decimal.Decimal) *Order {
	o := newOrder(inst, side, Stop, qty)
	o.StopPrice = stop
	return o
}

// NewStopLimit returns a stop order that becomes a limit order once triggered
func NewStopLimit(inst *market.Instrument, side Side, qty, stop, limit decimal.Decimal) *Order {
	o := newOrder(inst, side, StopLimit, qty)
	o.StopPrice = stop
	o.Price = limit
	return o
}

// Validate checks the order parameters without regard to account state
func (o *Order) Validate() error {
	switch {
	case o.ID.IsNil():
		return fmt.Errorf("%w: missing id", ErrInvalidOrder)
	case o.Instrument == nil:
		return fmt.Errorf("%w: missing instrument", ErrInvalidOrder)
	case o.Side != Buy && o.Side != Sell:
		return fmt.Errorf("%w: %w %q", ErrInvalidOrder, ErrSideIsInvalid, o.Side)
	case !o.Quantity.IsPositive():
		return fmt.Errorf("%w: quantity %v must be positive", ErrInvalidOrder, o.Quantity)
	case !o.TimeInForce.IsValid():
		return fmt.Errorf("%w: %w %d", ErrInvalidOrder, ErrInvalidTimeInForce, o.TimeInForce)
	case o.TimeInForce.Is(GoodTillDate) && o.ExpireAt.IsZero():
		return fmt.Errorf("%w: GTD order requires an expiry", ErrInvalidOrder)
	}
	switch o.Type {
	case Market:
	case Limit:
		if !o.Price.IsPositive() {
			return fmt.Errorf("%w: limit price %v must be positive", ErrInvalidOrder, o.Price)
		}
	case Stop:
		if !o.StopPrice.IsPositive() {
			return fmt.Errorf("%w: stop price %v must be positive", ErrInvalidOrder, o.StopPrice)
		}
	case StopLimit:
		if !o.StopPrice.IsPositive() || !o.Price.IsPositive() {
			return fmt.Errorf("%w: stop %v and limit %v prices must be positive", ErrInvalidOrder, o.StopPrice, o.Price)
		}
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidOrder, ErrTypeIsInvalid, o.Type)
	}
	return nil
}

// Transition moves the order to status to at t
func (o *Order) Transition(to Status, t time.Time) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s for order %s", ErrInvalidTransition, o.Status, to, o.ID)
	}
	o.Status = to
	o.UpdatedAt = t
	return nil
}

// Remaining returns the unfilled quantity
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// EffectiveType returns the type the order currently matches as. Triggered
// stops match as market orders and triggered stop limits as limits
func (o *Order) EffectiveType() Type {
	if !o.Triggered {
		return o.Type
	}
	switch o.Type {
	case Stop:
		return Market
	case StopLimit:
		return Limit
	}
	return o.Type
}

// CheckFill verifies that qty can be applied without breaking the quantity
// invariant
func (o *Order) CheckFill(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: quantity %v must be positive", ErrInvalidFill, qty)
	}
	if !o.Status.IsActive() {
		return fmt.Errorf("%w: order %s is %s", ErrInvalidFill, o.ID, o.Status)
	}
	if qty.GreaterThan(o.Remaining()) {
		return fmt.Errorf("%w: order %s fill %v remaining %v", ErrOverfill, o.ID, qty, o.Remaining())
	}
	return nil
}

// ApplyFill records f against the order, moving it to PARTIALLY_FILLED or FILLED
func (o *Order) ApplyFill(f *Fill) error {
	if f.OrderID != o.ID {
		return fmt.Errorf("%w: fill for %s applied to %s", ErrInvalidFill, f.OrderID, o.ID)
	}
	if err := o.CheckFill(f.Quantity); err != nil {
		return err
	}
	filled := o.FilledQuantity.Add(f.Quantity)
	o.AveragePrice = o.AveragePrice.Mul(o.FilledQuantity).Add(f.Price.Mul(f.Quantity)).Div(filled)
	o.FilledQuantity = filled
	o.Fees = o.Fees.Add(f.Fee)
	o.Fills = append(o.Fills, *f)
	next := PartiallyFilled
	if filled.Equal(o.Quantity) {
		next = Filled
	}
	return o.Transition(next, f.Time)
}

// Clone returns a deep copy safe to hand to other owners
func (o *Order) Clone() *Order {
	c := *o
	c.Fills = slices.Clone(o.Fills)
	return &c
}

// String implements the stringer interface
func (o *Order) String() string {
	return fmt.Sprintf("%s %s %s %v %s @%v [%s]", o.ID, o.Instrument.ID(), o.Side, o.Quantity, o.Type, o.Price, o.Status)
}

// Kind implements event.Payload
func (Fill) Kind() event.Kind { return event.FillKind }

// TopicSegments implements event.Payload
func (f Fill) TopicSegments() (instrument, granularity, variant string) {
	return f.Instrument.ID(), f.Broker, string(f.Side)
}

// Notional returns quantity * price * contract size
func (f *Fill) Notional() decimal.Decimal {
	return f.Instrument.Notional(f.Quantity, f.Price)
}

// Kind implements event.Payload
func (Update) Kind() event.Kind { return event.OrderUpdateKind }

// TopicSegments implements event.Payload
func (u Update) TopicSegments() (instrument, granularity, variant string) {
	return u.Order.Instrument.ID(), u.Broker, string(u.Order.Status)
}
