package buyandhold

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
	"github.com/tradeloop/tradeloop/strategies/base"
)

type submitter struct {
	orders []*order.Order
}

func (s *submitter) StrategyID() string { return "bh" }
func (s *submitter) Now() time.Time { return time.Time{} }
func (s *submitter) Instrument(string) (*market.Instrument, bool) { return nil, false }
func (s *submitter) CancelOrder(string, *order.Order) error { return nil }
func (s *submitter) ModifyOrder(string, *order.Order) error { return nil }
func (s *submitter) ActiveOrders(string) ([]*order.Order, error) { return nil, nil }

func (s *submitter) SubmitOrder(_ string, o *order.Order) error {
	s.orders = append(s.orders, o)
	return nil
}

func TestSetCustomSettings(t *testing.T) {
	t.Parallel()
	s := &Strategy{}
	s.SetDefaults()
	assert.ErrorIs(t, s.SetCustomSettings(map[string]any{"nope": 1.0}), base.ErrInvalidCustomSettings)
	assert.ErrorIs(t, s.SetCustomSettings(map[string]any{quantityKey: -1.0}), base.ErrInvalidCustomSettings)
	assert.ErrorIs(t, s.SetCustomSettings(map[string]any{exitAfterKey: 1.5}), base.ErrInvalidCustomSettings)
	require.NoError(t, s.SetCustomSettings(map[string]any{
		instrumentKey: "AAPL.XNAS",
		quantityKey:   "2.5",
		exitAfterKey:  3.0,
	}))
	assert.Equal(t, "2.5", s.quantity.String())
	assert.Equal(t, 3, s.exitAfter)
	assert.Equal(t, []string{"bar::AAPL.XNAS::*::*"}, s.Subscriptions())
}

func TestOnBar(t *testing.T) {
	t.Parallel()
	inst, err := market.NewInstrument("AAPL", "XNAS", "USD", decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	other, err := market.NewInstrument("MSFT", "XNAS", "USD", decimal.RequireFromString("0.01"))
	require.NoError(t, err)

	s := &Strategy{}
	s.SetDefaults()
	s.exitAfter = 2
	ctx := &submitter{}
	require.NoError(t, s.OnStart(ctx))

	bar := &market.Bar{Instrument: inst}
	require.NoError(t, s.OnBar(ctx, bar))
	require.Len(t, ctx.orders, 1)
	assert.Equal(t, order.Buy, ctx.orders[0].Side)
	assert.Equal(t, order.Market, ctx.orders[0].Type)

	require.NoError(t, s.OnBar(ctx, &market.Bar{Instrument: other}), "other instruments are ignored")
	require.NoError(t, s.OnFill(ctx, &order.Fill{OrderID: ctx.orders[0].ID, Quantity: decimal.NewFromInt(1)}))
	assert.Equal(t, "1", s.Holding().String())

	require.NoError(t, s.OnBar(ctx, bar))
	assert.Len(t, ctx.orders, 1)
	require.NoError(t, s.OnBar(ctx, bar))
	require.Len(t, ctx.orders, 2, "the exit is sent once exit-after-bars further bars closed")
	assert.Equal(t, order.Sell, ctx.orders[1].Side)
	assert.Equal(t, "1", ctx.orders[1].Quantity.String())

	require.NoError(t, s.OnBar(ctx, bar))
	assert.Len(t, ctx.orders, 2)
	require.NoError(t, s.OnFill(ctx, &order.Fill{OrderID: ctx.orders[1].ID, Quantity: decimal.NewFromInt(1)}))
	assert.True(t, s.Holding().IsZero())
	require.NoError(t, s.OnStop(ctx))
}
