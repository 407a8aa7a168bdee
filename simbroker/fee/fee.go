// Package fee holds the commission models a matching engine charges at fill time
package fee

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
)

// ErrInvalidModel is returned when a fee model cannot be built
var ErrInvalidModel = errors.New("invalid fee model")

// Model calculates the fee charged for a fill, in the instrument's
// settlement currency
type Model interface {
	Calculate(inst *market.Instrument, liquidity order.Liquidity, qty, price decimal.Decimal) decimal.Decimal
}

// None charges nothing
type None struct{}

// Calculate implements Model
func (None) Calculate(*market.Instrument, order.Liquidity, decimal.Decimal, decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

// Percentage charges a rate of notional, split by maker and taker liquidity
type Percentage struct {
	Maker decimal.Decimal
	Taker decimal.Decimal
}

// Calculate implements Model
func (p Percentage) Calculate(inst *market.Instrument, liquidity order.Liquidity, qty, price decimal.Decimal) decimal.Decimal {
	rate := p.Taker
	if liquidity == order.Maker {
		rate = p.Maker
	}
	return inst.Notional(qty, price).Mul(rate)
}

// PerContract charges a flat amount per contract traded
type PerContract struct {
	Amount decimal.Decimal
}

// Calculate implements Model
func (p PerContract) Calculate(_ *market.Instrument, _ order.Liquidity, qty, _ decimal.Decimal) decimal.Decimal {
	return qty.Mul(p.Amount)
}

// New builds a fee model by name. Unused rates are ignored
func New(name string, maker, taker, perContract decimal.Decimal) (Model, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return None{}, nil
	case "percentage":
		if maker.IsNegative() || taker.IsNegative() {
			return nil, fmt.Errorf("%w: negative rate maker %v taker %v", ErrInvalidModel, maker, taker)
		}
		return Percentage{Maker: maker, Taker: taker}, nil
	case "per-contract":
		if perContract.IsNegative() {
			return nil, fmt.Errorf("%w: negative amount %v", ErrInvalidModel, perContract)
		}
		return PerContract{Amount: perContract}, nil
	}
	return nil, fmt.Errorf("%w: unknown model %q", ErrInvalidModel, name)
}
