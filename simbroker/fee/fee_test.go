package fee

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
)

var d = decimal.RequireFromString

func TestPercentage(t *testing.T) {
	t.Parallel()
	inst, err := market.NewInstrument("BTC-USD", "SIM", "USD", d("0.01"))
	require.NoError(t, err)
	m := Percentage{Maker: d("0.001"), Taker: d("0.002")}
	assert.Equal(t, "0.2", m.Calculate(inst, order.Maker, d("2"), d("100")).String())
	assert.Equal(t, "0.4", m.Calculate(inst, order.Taker, d("2"), d("100")).String())
	assert.True(t, None{}.Calculate(inst, order.Taker, d("2"), d("100")).IsZero())
	assert.Equal(t, "3", PerContract{Amount: d("1.5")}.Calculate(inst, order.Maker, d("2"), d("100")).String())
}

func TestNew(t *testing.T) {
	t.Parallel()
	m, err := New("", decimal.Zero, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.IsType(t, None{}, m)

	m, err = New("Percentage", d("0.1"), d("0.2"), decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, Percentage{Maker: d("0.1"), Taker: d("0.2")}, m)

	m, err = New("per-contract", decimal.Zero, decimal.Zero, d("2"))
	require.NoError(t, err)
	assert.IsType(t, PerContract{}, m)

	_, err = New("percentage", d("-0.1"), decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidModel)
	_, err = New("tiered", decimal.Zero, decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidModel)
}
