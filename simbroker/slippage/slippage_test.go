package slippage

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
)

var d = decimal.RequireFromString

func TestModels(t *testing.T) {
	t.Parallel()
	inst, err := market.NewInstrument("BTC-USD", "SIM", "USD", d("0.5"))
	require.NoError(t, err)
	p := d("100")

	assert.Equal(t, "100", None{}.Apply(inst, order.Buy, p).String())
	assert.Equal(t, "101", Ticks{N: 2}.Apply(inst, order.Buy, p).String())
	assert.Equal(t, "99", Ticks{N: 2}.Apply(inst, order.Sell, p).String())
	assert.Equal(t, "0.5", Ticks{N: 10}.Apply(inst, order.Sell, d("1")).String(), "prices must stay positive")
	assert.Equal(t, "100.1", Percentage{Rate: d("0.001")}.Apply(inst, order.Buy, p).String())
	assert.Equal(t, "99.9", Percentage{Rate: d("0.001")}.Apply(inst, order.Sell, p).String())
}

func TestNew(t *testing.T) {
	t.Parallel()
	m, err := New("ticks", 1, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, Ticks{N: 1}, m)
	m, err = New("none", 0, decimal.Zero)
	require.NoError(t, err)
	assert.IsType(t, None{}, m)
	_, err = New("percentage", 0, d("1"))
	assert.ErrorIs(t, err, ErrInvalidModel)
	_, err = New("ticks", -1, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidModel)
	_, err = New("market-impact", 0, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidModel)
}
