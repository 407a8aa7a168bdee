// Package slippage holds the price impact models applied to taker fills
package slippage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
)

// ErrInvalidModel is returned when a slippage model cannot be built
var ErrInvalidModel = errors.New("invalid slippage model")

// Model moves a reference price against the side taking liquidity
type Model interface {
	Apply(inst *market.Instrument, side order.Side, price decimal.Decimal) decimal.Decimal
}

// None leaves prices untouched
type None struct{}

// Apply implements Model
func (None) Apply(_ *market.Instrument, _ order.Side, price decimal.Decimal) decimal.Decimal {
	return price
}

// Ticks moves the price N ticks against the order
type Ticks struct {
	N int64
}

// Apply implements Model. Sells never slip below one tick
func (s Ticks) Apply(inst *market.Instrument, side order.Side, price decimal.Decimal) decimal.Decimal {
	if s.N <= 0 || !inst.TickSize.IsPositive() {
		return price
	}
	offset := inst.TickSize.Mul(decimal.NewFromInt(s.N))
	if side == order.Buy {
		return price.Add(offset)
	}
	return decimal.Max(price.Sub(offset), inst.TickSize)
}

// Percentage moves the price by a fraction of itself against the order
type Percentage struct {
	Rate decimal.Decimal
}

// Apply implements Model
func (s Percentage) Apply(_ *market.Instrument, side order.Side, price decimal.Decimal) decimal.Decimal {
	adj := price.Mul(s.Rate)
	if side == order.Buy {
		return price.Add(adj)
	}
	return price.Sub(adj)
}

// New builds a slippage model by name
func New(name string, ticks int64, rate decimal.Decimal) (Model, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return None{}, nil
	case "ticks":
		if ticks < 0 {
			return nil, fmt.Errorf("%w: negative ticks %d", ErrInvalidModel, ticks)
		}
		return Ticks{N: ticks}, nil
	case "percentage":
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("%w: rate %v must be in [0, 1)", ErrInvalidModel, rate)
		}
		return Percentage{Rate: rate}, nil
	}
	return nil, fmt.Errorf("%w: unknown model %q", ErrInvalidModel, name)
}
