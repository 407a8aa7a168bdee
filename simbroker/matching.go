package simbroker

import (
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
	"github.com/tradeloop/tradeloop/common"
	cmath "github.com/tradeloop/tradeloop/common/math"
	"github.com/tradeloop/tradeloop/log"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
	"github.com/tradeloop/tradeloop/simbroker/account"
)

// ProcessOrderBook advances the clock to the snapshot time, triggers stops
// and matches every working order of the snapshot's instrument against it.
// Depth consumed by one order is unavailable to the next within the same
// snapshot. Returned errors are internal invariant failures
func (b *SimBroker) ProcessOrderBook(ob *market.OrderBook) error {
	if ob == nil {
		return fmt.Errorf("%w order book", common.ErrNilPointer)
	}
	if err := ob.Validate(); err != nil {
		return err
	}
	b.m.Lock()
	defer b.m.Unlock()
	inst, ok := b.instruments[ob.Instrument.ID()]
	if !ok {
		return fmt.Errorf("%s: %w: %s", b.name, ErrUnsupportedInstrument, ob.Instrument.ID())
	}
	if err := b.setTime(ob.Time); err != nil {
		return err
	}
	if mark, ok := ob.Mark(); ok {
		b.lastPrice[inst.ID()] = mark
	}
	bk := b.books[inst.ID()]
	if bk.len() > 0 {
		b.triggerStops(bk, ob)
		asks, bids := newDepth(ob.Asks), newDepth(ob.Bids)
		if ob.SharedDepth && len(ob.Asks) == len(ob.Bids) {
			bids.used = asks.used
		}
		if err := b.matchSide(bk.buys, asks); err != nil {
			return err
		}
		if err := b.matchSide(bk.sells, bids); err != nil {
			return err
		}
	}
	b.mark(inst)
	return nil
}

// MarginCall reports whether the account was below maintenance margin at the
// last snapshot
func (b *SimBroker) MarginCall() bool {
	b.m.Lock()
	defer b.m.Unlock()
	return b.marginCall
}

func (b *SimBroker) mark(inst *market.Instrument) {
	price, ok := b.lastPrice[inst.ID()]
	if !ok {
		return
	}
	call := b.account.Mark(inst, price)
	switch {
	case call && !b.marginCall:
		log.WithFields(log.SimBroker, map[string]interface{}{
			"broker":     b.name,
			"instrument": inst.ID(),
			"mark":       price.String(),
		}).Warnf("margin call: equity below maintenance margin")
	case !call && b.marginCall:
		log.Infof(log.SimBroker, "%s margin call cleared", b.name)
	}
	b.marginCall = call
}

// stopTriggered reports whether the snapshot touches the stop price. Buy
// stops watch the offer and sell stops the bid, falling back to the other
// side of a one sided book
func stopTriggered(o *order.Order, ob *market.OrderBook) bool {
	bid, hasBid := ob.BestBid()
	ask, hasAsk := ob.BestAsk()
	if o.Side == order.Buy {
		switch {
		case hasAsk:
			return ask.Price.GreaterThanOrEqual(o.StopPrice)
		case hasBid:
			return bid.Price.GreaterThanOrEqual(o.StopPrice)
		}
		return false
	}
	switch {
	case hasBid:
		return bid.Price.LessThanOrEqual(o.StopPrice)
	case hasAsk:
		return ask.Price.LessThanOrEqual(o.StopPrice)
	}
	return false
}

// triggerStops converts touched stops in time priority. Converted orders
// keep their original sequence and match against the same snapshot
func (b *SimBroker) triggerStops(bk *book, ob *market.OrderBook) {
	for _, e := range bk.stops.Items() {
		o := e.order
		if !stopTriggered(o, ob) {
			continue
		}
		bk.remove(o)
		o.Triggered = true
		o.UpdatedAt = b.now
		bk.add(o, e.seq)
		delete(b.evaluated, o.ID)
		b.emitUpdate(o, o.Status)
		log.Debugf(log.SimBroker, "%s triggered stop %s at %v", b.name, o.ID, o.StopPrice)
	}
}

func (b *SimBroker) matchSide(tree *btree.BTreeG[*entry], d *depth) error {
	if tree.Len() == 0 || len(d.levels) == 0 {
		// immediate orders still resolve against an empty side
		return b.resolveImmediate(tree)
	}
	for _, e := range tree.Items() {
		o := e.order
		if !o.Status.IsActive() {
			continue
		}
		first := !b.evaluated[o.ID]
		b.evaluated[o.ID] = true

		want := o.Remaining()
		alloc := d.take(o, want)
		total := decimal.Zero
		for x := range alloc {
			total = total.Add(alloc[x])
		}
		if o.TimeInForce.Is(order.FillOrKill) && total.LessThan(want) {
			if err := b.close(o, order.Cancelled, fmt.Sprintf("fill or kill: %v of %v available", total, want)); err != nil {
				return err
			}
			continue
		}

		liquidity := order.Maker
		if first || o.EffectiveType() == order.Market {
			liquidity = order.Taker
		}
		if o.TimeInForce.Is(order.FillOrKill) {
			if err := b.fundable(o, d, alloc, liquidity); err != nil {
				if !errors.Is(err, account.ErrInsufficientFunds) {
					return common.Fatal(err)
				}
				if err := b.close(o, order.Cancelled, "fill or kill: "+err.Error()); err != nil {
					return err
				}
				continue
			}
		}
		for x := range alloc {
			if !alloc[x].IsPositive() {
				continue
			}
			filled, err := b.fill(o, d.levels[x].Price, alloc[x], liquidity)
			if err != nil {
				return err
			}
			if !filled {
				break
			}
			d.consume(x, alloc[x])
		}
		if o.Status.IsActive() && o.TimeInForce.Is(order.ImmediateOrCancel) {
			if err := b.close(o, order.Cancelled, fmt.Sprintf("immediate or cancel: %v unfilled", o.Remaining())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *SimBroker) resolveImmediate(tree *btree.BTreeG[*entry]) error {
	for _, e := range tree.Items() {
		o := e.order
		if !o.Status.IsActive() || !o.TimeInForce.IsImmediate() {
			b.evaluated[o.ID] = true
			continue
		}
		if err := b.close(o, order.Cancelled, fmt.Sprintf("%s: no liquidity", o.TimeInForce)); err != nil {
			return err
		}
	}
	return nil
}

// fundable settles the whole allocation against a copy of the account and
// returns the first funding error. The live account is left untouched
func (b *SimBroker) fundable(o *order.Order, d *depth, alloc []decimal.Decimal, liquidity order.Liquidity) error {
	acc := b.account.Clone()
	remaining := o.Remaining()
	for x := range alloc {
		if !alloc[x].IsPositive() {
			continue
		}
		f := b.newFill(o, d.levels[x].Price, alloc[x], liquidity)
		release := cmath.ProRata(acc.OrderBlocked(o.ID), alloc[x], remaining)
		if _, err := acc.ApplyFill(f, release); err != nil {
			return err
		}
		remaining = remaining.Sub(alloc[x])
	}
	return nil
}

// newFill prices qty of o at the level price, applying slippage to market
// style orders and charging the fee for the liquidity taken or made
func (b *SimBroker) newFill(o *order.Order, price, qty decimal.Decimal, liquidity order.Liquidity) *order.Fill {
	px := price
	if o.EffectiveType() == order.Market {
		px = b.slip.Apply(o.Instrument, o.Side, price)
	}
	return &order.Fill{
		ID:          uuid.Must(uuid.NewV4()),
		OrderID:     o.ID,
		Strategy:    o.Strategy,
		Broker:      b.name,
		Instrument:  o.Instrument,
		Side:        o.Side,
		Quantity:    qty,
		Price:       px,
		Fee:         b.fees.Calculate(o.Instrument, liquidity, qty, px),
		FeeCurrency: o.Instrument.Settlement(),
		Liquidity:   liquidity,
		Slippage:    px.Sub(price),
		Time:        b.now,
	}
}

// fill settles qty of o at price. It reports false when the account could
// not fund the fill, in which case the order has been cancelled
func (b *SimBroker) fill(o *order.Order, price, qty decimal.Decimal, liquidity order.Liquidity) (bool, error) {
	if err := o.CheckFill(qty); err != nil {
		return false, common.Fatal(err)
	}
	f := b.newFill(o, price, qty, liquidity)
	release := cmath.ProRata(b.account.OrderBlocked(o.ID), qty, o.Remaining())
	if _, err := b.account.ApplyFill(f, release); err != nil {
		if errors.Is(err, account.ErrInsufficientFunds) {
			return false, b.close(o, order.Cancelled, err.Error())
		}
		return false, common.Fatal(err)
	}
	prev := o.Status
	if err := o.ApplyFill(f); err != nil {
		return false, common.Fatal(err)
	}
	if o.Status == order.Filled {
		b.account.ReleaseAll(o.ID)
		b.books[o.Instrument.ID()].remove(o)
		delete(b.evaluated, o.ID)
	}
	b.emit(*f)
	b.emitUpdate(o, prev)
	log.Debugf(log.SimBroker, "%s %s fill %v %s @ %v fee %v (%s)", b.name, o.Side, qty, o.Instrument.ID(), f.Price, f.Fee, liquidity)
	return true, nil
}
