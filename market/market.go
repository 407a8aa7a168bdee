package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/event"
)

// Kind implements event.Payload
func (Bar) Kind() event.Kind { return event.BarKind }

// TopicSegments implements event.Payload
func (b Bar) TopicSegments() (instrument, granularity, variant string) {
	variant = b.Variant
	if variant == "" {
		variant = LastVariant
	}
	return b.Instrument.ID(), b.Interval.Granularity(), variant
}

// Validate checks OHLC consistency and the inclusive time range
func (b *Bar) Validate() error {
	if err := b.Instrument.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBar, err)
	}
	switch {
	case b.End.IsZero():
		return fmt.Errorf("%w %s: end time unset", ErrInvalidBar, b.Instrument.ID())
	case b.Start.After(b.End):
		return fmt.Errorf("%w %s: start %v after end %v", ErrInvalidBar, b.Instrument.ID(), b.Start, b.End)
	case !b.Low.IsPositive():
		return fmt.Errorf("%w %s: low %v must be positive", ErrInvalidBar, b.Instrument.ID(), b.Low)
	case b.High.LessThan(decimal.Max(b.Open, b.Close)), b.Low.GreaterThan(decimal.Min(b.Open, b.Close)):
		return fmt.Errorf("%w %s: open %v close %v outside low %v high %v", ErrInvalidBar, b.Instrument.ID(), b.Open, b.Close, b.Low, b.High)
	case b.Volume.IsNegative():
		return fmt.Errorf("%w %s: negative volume %v", ErrInvalidBar, b.Instrument.ID(), b.Volume)
	}
	return nil
}

// Event wraps the bar as an event occurring at its end time. A bar is only
// known once it has closed
func (b Bar) Event(received time.Time) (event.Event, error) {
	if err := b.Validate(); err != nil {
		return event.Event{}, err
	}
	return event.New(b, b.End, received)
}

// Kind implements event.Payload
func (Trade) Kind() event.Kind { return event.TradeKind }

// TopicSegments implements event.Payload
func (t Trade) TopicSegments() (instrument, granularity, variant string) {
	return t.Instrument.ID(), "TICK", LastVariant
}

// Event wraps the trade as an event at its trade time
func (t Trade) Event(received time.Time) (event.Event, error) {
	if err := t.Instrument.Validate(); err != nil {
		return event.Event{}, err
	}
	if !t.Price.IsPositive() || t.Size.IsNegative() {
		return event.Event{}, fmt.Errorf("%w %s: trade price %v size %v", ErrInvalidTick, t.Instrument.ID(), t.Price, t.Size)
	}
	return event.New(t, t.Time, received)
}

// Kind implements event.Payload
func (Quote) Kind() event.Kind { return event.QuoteKind }

// TopicSegments implements event.Payload
func (q Quote) TopicSegments() (instrument, granularity, variant string) {
	return q.Instrument.ID(), "TICK", "QUOTE"
}

// Event wraps the quote as an event at its quote time
func (q Quote) Event(received time.Time) (event.Event, error) {
	if err := q.Instrument.Validate(); err != nil {
		return event.Event{}, err
	}
	if !q.Bid.IsPositive() || !q.Ask.IsPositive() || q.Bid.GreaterThan(q.Ask) {
		return event.Event{}, fmt.Errorf("%w %s: bid %v ask %v", ErrInvalidTick, q.Instrument.ID(), q.Bid, q.Ask)
	}
	return event.New(q, q.Time, received)
}

// Kind implements event.Payload
func (OrderBook) Kind() event.Kind { return event.OrderBookKind }

// TopicSegments implements event.Payload
func (ob OrderBook) TopicSegments() (instrument, granularity, variant string) {
	return ob.Instrument.ID(), "SNAPSHOT", "L2"
}

// Event wraps the book as an event at its snapshot time
func (ob OrderBook) Event(received time.Time) (event.Event, error) {
	if err := ob.Validate(); err != nil {
		return event.Event{}, err
	}
	return event.New(ob, ob.Time, received)
}

// Validate checks level ordering. Bids must strictly descend and asks
// strictly ascend
func (ob *OrderBook) Validate() error {
	if err := ob.Instrument.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOrderBook, err)
	}
	if ob.Time.IsZero() {
		return fmt.Errorf("%w %s: time unset", ErrInvalidOrderBook, ob.Instrument.ID())
	}
	for x := range ob.Bids {
		if !ob.Bids[x].Price.IsPositive() || ob.Bids[x].Volume.IsNegative() {
			return fmt.Errorf("%w %s: bid level %d %v/%v", ErrInvalidOrderBook, ob.Instrument.ID(), x, ob.Bids[x].Price, ob.Bids[x].Volume)
		}
		if x > 0 && !ob.Bids[x].Price.LessThan(ob.Bids[x-1].Price) {
			return fmt.Errorf("%w %s: bids out of order at level %d", ErrInvalidOrderBook, ob.Instrument.ID(), x)
		}
	}
	for x := range ob.Asks {
		if !ob.Asks[x].Price.IsPositive() || ob.Asks[x].Volume.IsNegative() {
			return fmt.Errorf("%w %s: ask level %d %v/%v", ErrInvalidOrderBook, ob.Instrument.ID(), x, ob.Asks[x].Price, ob.Asks[x].Volume)
		}
		if x > 0 && !ob.Asks[x].Price.GreaterThan(ob.Asks[x-1].Price) {
			return fmt.Errorf("%w %s: asks out of order at level %d", ErrInvalidOrderBook, ob.Instrument.ID(), x)
		}
	}
	return nil
}

// BestBid returns the highest bid level
func (ob *OrderBook) BestBid() (Level, bool) {
	if len(ob.Bids) == 0 {
		return Level{}, false
	}
	return ob.Bids[0], true
}

// BestAsk returns the lowest ask level
func (ob *OrderBook) BestAsk() (Level, bool) {
	if len(ob.Asks) == 0 {
		return Level{}, false
	}
	return ob.Asks[0], true
}

// Mark returns the mid price, or the only side available
func (ob *OrderBook) Mark() (decimal.Decimal, bool) {
	bid, hasBid := ob.BestBid()
	ask, hasAsk := ob.BestAsk()
	switch {
	case hasBid && hasAsk:
		return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
	case hasBid:
		return bid.Price, true
	case hasAsk:
		return ask.Price, true
	}
	return decimal.Zero, false
}

// Unbounded reports whether the level has no depth limit
func (l Level) Unbounded() bool {
	return l.Volume.IsZero()
}
