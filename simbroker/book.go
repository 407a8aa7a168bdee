package simbroker

import (
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
)

func newBook() *book {
	return &book{
		buys:  btree.NewBTreeG(priorityLess(order.Buy)),
		sells: btree.NewBTreeG(priorityLess(order.Sell)),
		stops: btree.NewBTreeG(func(a, b *entry) bool { return a.seq < b.seq }),
		index: make(map[uuid.UUID]*entry),
	}
}

// priorityLess orders market style orders first in time priority, then
// limits by price, best first, then time
func priorityLess(side order.Side) func(a, b *entry) bool {
	return func(a, b *entry) bool {
		am := a.order.EffectiveType() == order.Market
		bm := b.order.EffectiveType() == order.Market
		if am != bm {
			return am
		}
		if !am && !a.order.Price.Equal(b.order.Price) {
			if side == order.Buy {
				return a.order.Price.GreaterThan(b.order.Price)
			}
			return a.order.Price.LessThan(b.order.Price)
		}
		return a.seq < b.seq
	}
}

func (b *book) tree(o *order.Order) *btree.BTreeG[*entry] {
	if (o.Type == order.Stop || o.Type == order.StopLimit) && !o.Triggered {
		return b.stops
	}
	if o.Side == order.Buy {
		return b.buys
	}
	return b.sells
}

func (b *book) add(o *order.Order, seq uint64) {
	e := &entry{seq: seq, order: o}
	b.tree(o).Set(e)
	b.index[o.ID] = e
}

// remove must be called before any field used for ordering changes
func (b *book) remove(o *order.Order) {
	e, ok := b.index[o.ID]
	if !ok {
		return
	}
	b.tree(o).Delete(e)
	delete(b.index, o.ID)
}

func (b *book) len() int {
	return len(b.index)
}

func newDepth(levels []market.Level) *depth {
	return &depth{levels: levels, used: make([]decimal.Decimal, len(levels))}
}

// available returns the unconsumed volume of level x. Unbounded levels
// report ok with a zero amount
func (d *depth) available(x int) (amount decimal.Decimal, unbounded bool) {
	if d.levels[x].Unbounded() {
		return decimal.Zero, true
	}
	return d.levels[x].Volume.Sub(d.used[x]), false
}

func (d *depth) consume(x int, qty decimal.Decimal) {
	d.used[x] = d.used[x].Add(qty)
}

// take walks the levels the order may trade against and returns the
// quantity available at each, up to want
func (d *depth) take(o *order.Order, want decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(d.levels))
	for x := range d.levels {
		if !want.IsPositive() {
			break
		}
		if !crosses(o, d.levels[x].Price) {
			break
		}
		avail, unbounded := d.available(x)
		if unbounded || avail.GreaterThanOrEqual(want) {
			out[x] = want
			want = decimal.Zero
			continue
		}
		if avail.IsPositive() {
			out[x] = avail
			want = want.Sub(avail)
		}
	}
	return out
}

// crosses reports whether o may trade at price
func crosses(o *order.Order, price decimal.Decimal) bool {
	if o.EffectiveType() == order.Market {
		return true
	}
	if o.Side == order.Buy {
		return price.LessThanOrEqual(o.Price)
	}
	return price.GreaterThanOrEqual(o.Price)
}
