package account

import (
	"errors"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/market"
)

var (
	// ErrInsufficientFunds is returned when available funds cannot cover a reservation or fill
	ErrInsufficientFunds = errors.New("insufficient available funds")
	// ErrAlreadyReserved is returned when an order already holds a reservation
	ErrAlreadyReserved = errors.New("order already holds a margin reservation")

	errCannotAllocate     = errors.New("cannot allocate funds")
	errNilFill            = errors.New("nil fill received")
	errUnknownCurrency    = errors.New("no balance held for currency")
)

// Account holds the cash, blocked margin and positions of exactly one
// matching engine. It is not safe for concurrent use; the owning engine
// serialises access
type Account struct {
	cash      map[string]decimal.Decimal
	positions map[string]*Position
	// reservations holds the initial margin blocked for each working order
	reservations map[uuid.UUID]*reservation
	marginCall   bool
}

type reservation struct {
	instrument *market.Instrument
	amount     decimal.Decimal
}

// Position is the signed holding of one instrument
type Position struct {
	Instrument *market.Instrument
	// Quantity is positive when long and negative when short
	Quantity    decimal.Decimal
	AvgPrice    decimal.Decimal
	RealizedPnL decimal.Decimal
	// Margin is the initial margin held against the open quantity
	Margin    decimal.Decimal
	LastPrice decimal.Decimal
}

// FillResult describes the effect of one fill on the account
type FillResult struct {
	Released    decimal.Decimal
	RealizedPnL decimal.Decimal
	OpenedQty   decimal.Decimal
	ClosedQty   decimal.Decimal
}
