package order

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/market"
)

// var error definitions
var (
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrOverfill          = errors.New("fill exceeds remaining order quantity")
	ErrInvalidFill       = errors.New("invalid fill")
	ErrSideIsInvalid     = errors.New("order side is invalid")
	ErrTypeIsInvalid     = errors.New("order type is invalid")
)

// Side enforces a standard for order sides across the code base
type Side string

// Order side types
const (
	UnknownSide Side = ""
	Buy         Side = "BUY"
	Sell        Side = "SELL"
)

// Type enforces a standard for order types across the code base
type Type string

// Order types
const (
	UnknownType Type = ""
	Market      Type = "MARKET"
	Limit       Type = "LIMIT"
	Stop        Type = "STOP"
	StopLimit   Type = "STOP_LIMIT"
)

// Status defines order status types
type Status string

// All order status types
const (
	UnknownStatus   Status = ""
	New             Status = "NEW"
	Submitted       Status = "SUBMITTED"
	Working         Status = "WORKING"
	PartiallyFilled Status = "PARTIALLY_FILLED"
	Filled          Status = "FILLED"
	Cancelled       Status = "CANCELLED"
	Expired         Status = "EXPIRED"
	Rejected        Status = "REJECTED"
)

// Liquidity records whether a fill added or removed liquidity
type Liquidity string

// Liquidity types
const (
	Maker Liquidity = "MAKER"
	Taker Liquidity = "TAKER"
)

// Order is a strategy's instruction to trade. Once submitted the matching
// engine owns the authoritative copy and writes its state back to the
// caller's value on every operation
type Order struct {
	ID            uuid.UUID
	ClientOrderID string
	// Strategy is the name of the submitting strategy, used to route updates
	Strategy    string
	Instrument  *market.Instrument
	Side        Side
	Type        Type
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	StopPrice   decimal.Decimal
	TimeInForce TimeInForce
	// ExpireAt is the good till date instant, required for GoodTillDate
	ExpireAt time.Time

	Status         Status
	FilledQuantity decimal.Decimal
	AveragePrice   decimal.Decimal
	Fees           decimal.Decimal
	// Triggered is set once a stop order has converted
	Triggered bool
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Fills     []Fill
}

// Fill is an immutable record of one execution against an order
type Fill struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Strategy    string
	Broker      string
	Instrument  *market.Instrument
	Side        Side
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Fee         decimal.Decimal
	FeeCurrency string
	Liquidity   Liquidity
	// Slippage is the price difference applied by the slippage model
	Slippage decimal.Decimal
	Time     time.Time
}

// Update is emitted whenever an order changes status or is modified
type Update struct {
	Broker   string
	Previous Status
	Order    Order
	Time     time.Time
}
