package account

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
)

// New returns an account seeded with the initial cash balances
func New(initial map[string]decimal.Decimal) *Account {
	a := &Account{
		cash:         make(map[string]decimal.Decimal, len(initial)),
		positions:    make(map[string]*Position),
		reservations: make(map[uuid.UUID]*reservation),
	}
	for ccy, amt := range initial {
		a.cash[strings.ToUpper(ccy)] = amt
	}
	return a
}


// Cash returns the cash balance of ccy
func (a *Account) Cash(ccy string) decimal.Decimal {
	return a.cash[strings.ToUpper(ccy)]
}

// Currencies returns every currency with a balance, sorted
func (a *Account) Currencies() []string {
	return slices.Sorted(maps.Keys(a.cash))
}

// Blocked returns the initial margin blocked by working orders on inst
func (a *Account) Blocked(inst *market.Instrument) decimal.Decimal {
	total := decimal.Zero
	for _, r := range a.reservations {
		if r.instrument.ID() == inst.ID() {
			total = total.Add(r.amount)
		}
	}
	return total
}

// OrderBlocked returns the margin blocked by one order
func (a *Account) OrderBlocked(id uuid.UUID) decimal.Decimal {
	if r, ok := a.reservations[id]; ok {
		return r.amount
	}
	return decimal.Zero
}

func (a *Account) blockedIn(ccy string) decimal.Decimal {
	total := decimal.Zero
	for _, r := range a.reservations {
		if r.instrument.Settlement() == ccy {
			total = total.Add(r.amount)
		}
	}
	return total
}

func (a *Account) positionMarginIn(ccy string) decimal.Decimal {
	total := decimal.Zero
	for _, p := range a.positions {
		if p.Instrument.Settlement() == ccy {
			total = total.Add(p.Margin)
		}
	}
	return total
}

// Available returns cash less position margin and blocked order margin
func (a *Account) Available(ccy string) decimal.Decimal {
	ccy = strings.ToUpper(ccy)
	return a.cash[ccy].Sub(a.positionMarginIn(ccy)).Sub(a.blockedIn(ccy))
}

// Position returns a copy of the position held in inst
func (a *Account) Position(inst *market.Instrument) (Position, bool) {
	p, ok := a.positions[inst.ID()]
	if !ok {
		return Position{Instrument: inst}, false
	}
	return *p, true
}

// Positions returns copies of every position, sorted by instrument
func (a *Account) Positions() []Position {
	ps := make([]Position, 0, len(a.positions))
	for _, id := range slices.Sorted(maps.Keys(a.positions)) {
		ps = append(ps, *a.positions[id])
	}
	return ps
}

// OpeningQuantity returns the part of a trade that increases exposure
// given the current position
func (a *Account) OpeningQuantity(inst *market.Instrument, side order.Side, qty decimal.Decimal) decimal.Decimal {
	p, ok := a.positions[inst.ID()]
	if !ok || p.Quantity.IsZero() || p.Quantity.Sign() == side.Sign().Sign() {
		return qty
	}
	if closing := p.Quantity.Abs(); qty.GreaterThan(closing) {
		return qty.Sub(closing)
	}
	return decimal.Zero
}

// InitialMargin returns the margin required to open the exposure qty at price
// would add
func (a *Account) InitialMargin(inst *market.Instrument, side order.Side, qty, price decimal.Decimal) decimal.Decimal {
	opening := a.OpeningQuantity(inst, side, qty)
	return inst.Notional(opening, price).Mul(inst.MarginRate)
}

// Reserve blocks amount against the order id. It prevents multiple orders from
// claiming the same funds
func (a *Account) Reserve(id uuid.UUID, inst *market.Instrument, amount decimal.Decimal) error {
	if inst == nil {
		return fmt.Errorf("%w: nil instrument", errCannotAllocate)
	}
	if _, ok := a.reservations[id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyReserved, id)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative amount %v", errCannotAllocate, amount)
	}
	ccy := inst.Settlement()
	if _, ok := a.cash[ccy]; !ok && amount.IsPositive() {
		return fmt.Errorf("%w: %w %s", ErrInsufficientFunds, errUnknownCurrency, ccy)
	}
	if avail := a.Available(ccy); amount.GreaterThan(avail) {
		return fmt.Errorf("%w: required %v %s, available %v %s", ErrInsufficientFunds, amount, ccy, avail, ccy)
	}
	a.reservations[id] = &reservation{instrument: inst, amount: amount}
	return nil
}


// ReleaseAll drops the order's reservation and returns what it held
func (a *Account) ReleaseAll(id uuid.UUID) decimal.Decimal {
	r, ok := a.reservations[id]
	if !ok {
		return decimal.Zero
	}
	delete(a.reservations, id)
	return r.amount
}

// HasReservation reports whether the order still holds a reservation entry
func (a *Account) HasReservation(id uuid.UUID) bool {
	_, ok := a.reservations[id]
	return ok
}

// ApplyFill settles a fill: release is the part of the order's blocked margin
// freed by this fill. Cash, position and blocked margin change together or
// not at all. Fills that add exposure must be covered by available funds
func (a *Account) ApplyFill(f *order.Fill, release decimal.Decimal) (FillResult, error) {
	if f == nil || f.Instrument == nil {
		return FillResult{}, errNilFill
	}
	inst := f.Instrument
	ccy := inst.Settlement()
	held := a.OrderBlocked(f.OrderID)
	if release.GreaterThan(held) {
		release = held
	}
	if release.IsNegative() {
		release = decimal.Zero
	}

	cur, ok := a.positions[inst.ID()]
	next := Position{Instrument: inst}
	if ok {
		next = *cur
	}
	res := FillResult{Released: release}
	signed := f.Quantity.Mul(f.Side.Sign())
	switch {
	case next.Quantity.IsZero() || next.Quantity.Sign() == signed.Sign():
		total := next.Quantity.Abs().Add(f.Quantity)
		next.AvgPrice = next.AvgPrice.Mul(next.Quantity.Abs()).Add(f.Price.Mul(f.Quantity)).Div(total)
		next.Quantity = next.Quantity.Add(signed)
		res.OpenedQty = f.Quantity
	default:
		closing := decimal.Min(next.Quantity.Abs(), f.Quantity)
		res.ClosedQty = closing
		res.RealizedPnL = f.Price.Sub(next.AvgPrice).Mul(closing).Mul(inst.ContractSize).Mul(decimal.NewFromInt(int64(next.Quantity.Sign())))
		next.Quantity = next.Quantity.Add(signed)
		switch {
		case next.Quantity.IsZero():
			next.AvgPrice = decimal.Zero
		case next.Quantity.Sign() == signed.Sign():
			next.AvgPrice = f.Price
			res.OpenedQty = f.Quantity.Sub(closing)
		}
	}
	next.RealizedPnL = next.RealizedPnL.Add(res.RealizedPnL)
	next.Margin = inst.Notional(next.Quantity.Abs(), next.AvgPrice).Mul(inst.MarginRate)
	next.LastPrice = f.Price

	newCash := a.cash[ccy].Add(res.RealizedPnL).Sub(f.Fee)
	if res.OpenedQty.IsPositive() {
		prevMargin := decimal.Zero
		if ok {
			prevMargin = cur.Margin
		}
		avail := newCash.
			Sub(a.positionMarginIn(ccy).Sub(prevMargin).Add(next.Margin)).
			Sub(a.blockedIn(ccy).Sub(release))
		if avail.IsNegative() {
			return FillResult{}, fmt.Errorf("%w: fill %v %s @ %v short by %v %s", ErrInsufficientFunds, f.Quantity, inst.ID(), f.Price, avail.Neg(), ccy)
		}
	}

	// commit
	a.cash[ccy] = newCash
	if r, ok := a.reservations[f.OrderID]; ok {
		r.amount = r.amount.Sub(release)
	}
	if next.Quantity.IsZero() && next.RealizedPnL.IsZero() {
		delete(a.positions, inst.ID())
	} else {
		a.positions[inst.ID()] = &next
	}
	return res, nil
}

// Mark updates the last price of inst and recomputes the margin call flag.
// It reports whether the account is in margin call afterwards
func (a *Account) Mark(inst *market.Instrument, price decimal.Decimal) bool {
	if p, ok := a.positions[inst.ID()]; ok && price.IsPositive() {
		p.LastPrice = price
	}
	a.marginCall = false
	for ccy := range a.cash {
		if a.Equity(ccy).LessThan(a.MaintenanceMargin(ccy)) {
			a.marginCall = true
		}
	}
	return a.marginCall
}


// UnrealizedPnL returns the mark to market profit of open positions in ccy
func (a *Account) UnrealizedPnL(ccy string) decimal.Decimal {
	ccy = strings.ToUpper(ccy)
	total := decimal.Zero
	for _, p := range a.positions {
		if p.Instrument.Settlement() != ccy || p.Quantity.IsZero() {
			continue
		}
		total = total.Add(p.LastPrice.Sub(p.AvgPrice).Mul(p.Quantity).Mul(p.Instrument.ContractSize))
	}
	return total
}

// Equity returns cash plus unrealized profit in ccy
func (a *Account) Equity(ccy string) decimal.Decimal {
	ccy = strings.ToUpper(ccy)
	return a.cash[ccy].Add(a.UnrealizedPnL(ccy))
}

// MaintenanceMargin returns the margin required to keep open positions in ccy
func (a *Account) MaintenanceMargin(ccy string) decimal.Decimal {
	ccy = strings.ToUpper(ccy)
	total := decimal.Zero
	for _, p := range a.positions {
		if p.Instrument.Settlement() != ccy {
			continue
		}
		total = total.Add(p.Instrument.Notional(p.Quantity.Abs(), p.LastPrice).Mul(p.Instrument.MaintenanceRate))
	}
	return total
}

// MarginCall reports whether equity fell below maintenance margin at the last mark
func (a *Account) MarginCall() bool {
	return a.marginCall
}

// Clone returns a deep copy for read only inspection
func (a *Account) Clone() *Account {
	c := &Account{
		cash:         maps.Clone(a.cash),
		positions:    make(map[string]*Position, len(a.positions)),
		reservations: make(map[uuid.UUID]*reservation, len(a.reservations)),
		marginCall:   a.marginCall,
	}
	for k, p := range a.positions {
		cp := *p
		c.positions[k] = &cp
	}
	for k, r := range a.reservations {
		cr := *r
		c.reservations[k] = &cr
	}
	return c
}
