package twap

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
	"github.com/tradeloop/tradeloop/strategies/base"
)

type submitter struct {
	inst   *market.Instrument
	orders []*order.Order
}

func (s *submitter) StrategyID() string { return "twap" }
func (s *submitter) Now() time.Time { return time.Time{} }
func (s *submitter) CancelOrder(string, *order.Order) error { return nil }
func (s *submitter) ModifyOrder(string, *order.Order) error { return nil }
func (s *submitter) ActiveOrders(string) ([]*order.Order, error) { return nil, nil }

func (s *submitter) Instrument(id string) (*market.Instrument, bool) {
	if s.inst == nil || s.inst.ID() != id {
		return nil, false
	}
	return s.inst, true
}

func (s *submitter) SubmitOrder(_ string, o *order.Order) error {
	s.orders = append(s.orders, o)
	return nil
}

func TestSetCustomSettings(t *testing.T) {
	t.Parallel()
	s := &Strategy{}
	s.SetDefaults()
	assert.Error(t, s.SetCustomSettings(map[string]any{sideKey: "SIDEWAYS"}))
	assert.ErrorIs(t, s.SetCustomSettings(map[string]any{slicesKey: 0.0}), base.ErrInvalidCustomSettings)
	require.NoError(t, s.SetCustomSettings(map[string]any{
		instrumentKey: "ES.CME",
		sideKey:       "sell",
		quantityKey:   10.0,
		slicesKey:     3.0,
		timerKey:      "twap-clock",
	}))
	assert.Equal(t, order.Sell, s.side)
	assert.Equal(t, []string{"timer::*::*::twap-clock"}, s.Subscriptions())
}

func TestOnTimer(t *testing.T) {
	t.Parallel()
	inst, err := market.NewInstrument("ES", "CME", "USD", decimal.RequireFromString("0.25"))
	require.NoError(t, err)
	s := &Strategy{}
	s.SetDefaults()
	require.NoError(t, s.SetCustomSettings(map[string]any{instrumentKey: inst.ID(), quantityKey: 10.0, slicesKey: 3.0}))

	assert.ErrorIs(t, s.OnStart(&submitter{}), errUnknownInstrument)
	ctx := &submitter{inst: inst}
	require.NoError(t, s.OnStart(ctx))
	for range 5 {
		require.NoError(t, s.OnTimer(ctx, &event.Timer{Name: "t"}))
	}
	require.Len(t, ctx.orders, 3, "no more children than slices")
	assert.Equal(t, 3, s.Sent())
	total := decimal.Zero
	for _, o := range ctx.orders {
		total = total.Add(o.Quantity)
		assert.Equal(t, order.Market, o.Type)
	}
	assert.Equal(t, "3.33333333", ctx.orders[0].Quantity.String())
	assert.True(t, total.Equal(decimal.NewFromInt(10)), "children sum to the parent")

	require.NoError(t, s.OnFill(ctx, &order.Fill{Quantity: decimal.NewFromInt(4)}))
	assert.Equal(t, "4", s.Filled().String())
}
