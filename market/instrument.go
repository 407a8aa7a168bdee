package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NewInstrument returns a fully funded instrument with a contract size of one
func NewInstrument(symbol, venue, settlement string, tick decimal.Decimal) (*Instrument, error) {
	i := &Instrument{
		Symbol:             symbol,
		Venue:              venue,
		TickSize:           tick,
		ContractSize:       decimal.NewFromInt(1),
		SettlementCurrency: strings.ToUpper(settlement),
		MarginRate:         decimal.NewFromInt(1),
	}
	if err := i.Validate(); err != nil {
		return nil, err
	}
	return i, nil
}

// ID returns symbol.venue, the instrument segment of topics
func (i *Instrument) ID() string {
	if i == nil {
		return ""
	}
	return i.Symbol + "." + i.Venue
}

// String implements the stringer interface
func (i *Instrument) String() string {
	return i.ID()
}

// Validate checks the instrument metadata
func (i *Instrument) Validate() error {
	switch {
	case i == nil:
		return fmt.Errorf("%w: %w", ErrInvalidInstrument, errNilInstrument)
	case i.Symbol == "", i.Venue == "":
		return fmt.Errorf("%w: symbol and venue are required", ErrInvalidInstrument)
	case i.SettlementCurrency == "":
		return fmt.Errorf("%w %s: settlement currency is required", ErrInvalidInstrument, i.ID())
	case i.TickSize.IsNegative():
		return fmt.Errorf("%w %s: tick size %v is negative", ErrInvalidInstrument, i.ID(), i.TickSize)
	case !i.ContractSize.IsPositive():
		return fmt.Errorf("%w %s: contract size %v must be positive", ErrInvalidInstrument, i.ID(), i.ContractSize)
	case !i.MarginRate.IsPositive():
		return fmt.Errorf("%w %s: margin rate %v must be positive", ErrInvalidInstrument, i.ID(), i.MarginRate)
	case i.MaintenanceRate.IsNegative(), i.MaintenanceRate.GreaterThan(i.MarginRate):
		return fmt.Errorf("%w %s: maintenance rate %v must be between zero and the margin rate", ErrInvalidInstrument, i.ID(), i.MaintenanceRate)
	}
	return nil
}

// Settlement returns the upper case settlement currency, the form account
// balances are keyed by
func (i *Instrument) Settlement() string {
	return strings.ToUpper(i.SettlementCurrency)
}

// Notional returns qty * price * contract size
func (i *Instrument) Notional(qty, price decimal.Decimal) decimal.Decimal {
	return qty.Mul(price).Mul(i.ContractSize)
}
