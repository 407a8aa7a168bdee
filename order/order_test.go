package order

import (
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/market"
)

var (
	tm = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	d  = decimal.RequireFromString
)

func inst(t *testing.T) *market.Instrument {
	t.Helper()
	i, err := market.NewInstrument("ETH-USD", "SIM", "USD", d("0.01"))
	require.NoError(t, err, "NewInstrument must not error")
	return i
}

func working(t *testing.T, o *Order) *Order {
	t.Helper()
	require.NoError(t, o.Transition(Submitted, tm))
	require.NoError(t, o.Transition(Working, tm))
	return o
}

func fillFor(o *Order, qty, price string) *Fill {
	return &Fill{
		ID:         uuid.Must(uuid.NewV4()),
		OrderID:    o.ID,
		Instrument: o.Instrument,
		Side:       o.Side,
		Quantity:   d(qty),
		Price:      d(price),
		Fee:        d("0.1"),
		Time:       tm,
	}
}

func TestStringToOrderSide(t *testing.T) {
	t.Parallel()
	s, err := StringToOrderSide("bid")
	require.NoError(t, err)
	assert.Equal(t, Buy, s)
	s, err = StringToOrderSide("Short")
	require.NoError(t, err)
	assert.Equal(t, Sell, s)
	_, err = StringToOrderSide("hold")
	assert.ErrorIs(t, err, ErrSideIsInvalid)
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, UnknownSide, UnknownSide.Opposite())
	assert.Equal(t, "-1", Sell.Sign().String())
}

func TestStringToOrderType(t *testing.T) {
	t.Parallel()
	ty, err := StringToOrderType("stop limit")
	require.NoError(t, err)
	assert.Equal(t, StopLimit, ty)
	_, err = StringToOrderType("trailing")
	assert.ErrorIs(t, err, ErrTypeIsInvalid)
}

func TestTransitions(t *testing.T) {
	t.Parallel()
	legal := map[Status][]Status{
		New:             {Submitted},
		Submitted:       {Working, Rejected},
		Working:         {PartiallyFilled, Filled, Cancelled, Expired},
		PartiallyFilled: {PartiallyFilled, Filled, Cancelled, Expired},
	}
	all := []Status{New, Submitted, Working, PartiallyFilled, Filled, Cancelled, Expired, Rejected}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, l := range legal[from] {
				want = want || l == to
			}
			assert.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	for _, s := range []Status{Filled, Cancelled, Expired, Rejected} {
		assert.Truef(t, s.IsTerminal(), "%s must be terminal", s)
		assert.False(t, s.IsActive())
	}
	assert.True(t, PartiallyFilled.IsActive())
	assert.False(t, Submitted.IsActive())
}

func TestValidate(t *testing.T) {
	t.Parallel()
	i := inst(t)
	require.NoError(t, NewMarket(i, Buy, d("1")).Validate())
	require.NoError(t, NewLimit(i, Sell, d("1"), d("10")).Validate())
	require.NoError(t, NewStop(i, Sell, d("1"), d("9")).Validate())
	require.NoError(t, NewStopLimit(i, Buy, d("1"), d("11"), d("12")).Validate())

	for name, o := range map[string]*Order{
		"zero quantity":   NewMarket(i, Buy, decimal.Zero),
		"no side":         NewMarket(i, UnknownSide, d("1")),
		"no instrument":   NewMarket(nil, Buy, d("1")),
		"no limit price":  NewLimit(i, Buy, d("1"), decimal.Zero),
		"no stop price":   NewStop(i, Buy, d("1"), decimal.Zero),
		"stop limit":      NewStopLimit(i, Buy, d("1"), d("1"), decimal.Zero),
		"unknown type":    {ID: uuid.Must(uuid.NewV4()), Instrument: i, Side: Buy, Quantity: d("1"), Type: "ICEBERG"},
		"missing id":      {Instrument: i, Side: Buy, Quantity: d("1"), Type: Market},
		"gtd no expiry":   func() *Order { o := NewMarket(i, Buy, d("1")); o.TimeInForce = GoodTillDate; return o }(),
		"combined tif":    func() *Order { o := NewMarket(i, Buy, d("1")); o.TimeInForce = FillOrKill | GoodTillDay; return o }(),
		"negative amount": NewMarket(i, Buy, d("-2")),
	} {
		assert.ErrorIsf(t, o.Validate(), ErrInvalidOrder, "%s must be invalid", name)
	}
}

func TestApplyFill(t *testing.T) {
	t.Parallel()
	o := working(t, NewLimit(inst(t), Buy, d("3"), d("100")))

	require.NoError(t, o.ApplyFill(fillFor(o, "1", "100")))
	assert.Equal(t, PartiallyFilled, o.Status)
	require.NoError(t, o.ApplyFill(fillFor(o, "1", "97")))
	assert.Equal(t, PartiallyFilled, o.Status)
	assert.Equal(t, "98.5", o.AveragePrice.String())

	assert.ErrorIs(t, o.ApplyFill(fillFor(o, "2", "100")), ErrOverfill, "fills beyond the remaining quantity must fail")
	assert.Equal(t, "2", o.FilledQuantity.String(), "a rejected fill must not change the order")

	require.NoError(t, o.ApplyFill(fillFor(o, "1", "100")))
	assert.Equal(t, Filled, o.Status)
	assert.True(t, o.Remaining().IsZero())
	assert.Equal(t, "0.3", o.Fees.String())
	assert.Len(t, o.Fills, 3)

	assert.ErrorIs(t, o.ApplyFill(fillFor(o, "1", "100")), ErrInvalidFill, "terminal orders cannot be filled")

	other := working(t, NewMarket(o.Instrument, Buy, d("1")))
	assert.ErrorIs(t, other.ApplyFill(fillFor(o, "1", "1")), ErrInvalidFill)
	assert.ErrorIs(t, other.CheckFill(decimal.Zero), ErrInvalidFill)
}

func TestEffectiveType(t *testing.T) {
	t.Parallel()
	i := inst(t)
	s := NewStop(i, Buy, d("1"), d("10"))
	assert.Equal(t, Stop, s.EffectiveType())
	s.Triggered = true
	assert.Equal(t, Market, s.EffectiveType())
	sl := NewStopLimit(i, Buy, d("1"), d("10"), d("11"))
	sl.Triggered = true
	assert.Equal(t, Limit, sl.EffectiveType())
}

func TestClone(t *testing.T) {
	t.Parallel()
	o := working(t, NewMarket(inst(t), Sell, d("2")))
	require.NoError(t, o.ApplyFill(fillFor(o, "1", "50")))
	c := o.Clone()
	c.Fills[0].Price = d("1")
	assert.Equal(t, "50", o.Fills[0].Price.String(), "clones must not share fills")
}

func TestPayloadTopics(t *testing.T) {
	t.Parallel()
	o := working(t, NewMarket(inst(t), Sell, d("2")))
	f := fillFor(o, "1", "50")
	f.Broker = "sim"
	e, err := event.New(*f, tm, tm)
	require.NoError(t, err)
	assert.Equal(t, "fill::ETH-USD.SIM::sim::SELL", e.Topic())
	assert.Equal(t, "50", f.Notional().String())

	u := Update{Broker: "sim", Previous: Submitted, Order: *o.Clone(), Time: tm}
	e, err = event.New(u, tm, tm)
	require.NoError(t, err)
	assert.Equal(t, "order::ETH-USD.SIM::sim::WORKING", e.Topic())
}
