package market

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrInvalidInstrument  = errors.New("invalid instrument")
	ErrInvalidInterval    = errors.New("invalid interval")
	ErrInvalidGranularity = errors.New("invalid granularity")
	ErrInvalidBar         = errors.New("invalid bar")
	ErrInvalidOrderBook   = errors.New("invalid order book")
	ErrInvalidConversion  = errors.New("invalid bar conversion mode")
	ErrInvalidTick        = errors.New("invalid tick")
	errNilInstrument      = errors.New("nil instrument")
)

// Interval type for bar interval usage
type Interval time.Duration

// Interval vars
const (
	OneSec     = Interval(time.Second)
	FiveSec    = Interval(5 * time.Second)
	FifteenSec = Interval(15 * time.Second)
	ThirtySec  = Interval(30 * time.Second)
	OneMin     = Interval(time.Minute)
	FiveMin    = Interval(5 * time.Minute)
	FifteenMin = Interval(15 * time.Minute)
	ThirtyMin  = Interval(30 * time.Minute)
	OneHour    = Interval(time.Hour)
	FourHour   = Interval(4 * time.Hour)
	OneDay     = Interval(24 * time.Hour)
)

// Bar variants
const (
	LastVariant = "LAST"
	BidVariant  = "BID"
	AskVariant  = "ASK"
	MidVariant  = "MID"
)

// Instrument identifies a tradable contract and carries its metadata.
// Instruments are immutable once constructed and shared by pointer
type Instrument struct {
	Symbol             string
	Venue              string
	TickSize           decimal.Decimal
	ContractSize       decimal.Decimal
	SettlementCurrency string
	// MarginRate is the fraction of notional blocked as initial margin.
	// One means fully funded
	MarginRate decimal.Decimal
	// MaintenanceRate is the fraction of notional required to keep a
	// position open
	MaintenanceRate decimal.Decimal
}

// Bar holds OHLCV data for the inclusive period [Start, End]
type Bar struct {
	Instrument *Instrument
	Interval   Interval
	Start      time.Time
	End        time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	// Variant is the price type the bar was built from, LAST when empty
	Variant string
}

// Trade is a single executed trade observation
type Trade struct {
	Instrument *Instrument
	Time       time.Time
	Price      decimal.Decimal
	Size       decimal.Decimal
	// Aggressor is BUY, SELL or empty when unknown
	Aggressor string
	TradeID   string
}

// Quote is a top of book observation
type Quote struct {
	Instrument *Instrument
	Time       time.Time
	Bid        decimal.Decimal
	BidSize    decimal.Decimal
	Ask        decimal.Decimal
	AskSize    decimal.Decimal
}

// Level is one price level of an order book. A zero Volume means the level
// has unbounded depth, which is how synthetic snapshots without volume
// information are represented
type Level struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// OrderBook is a point in time snapshot of bid and ask levels for one
// instrument. Bids are sorted best (highest) first, asks best (lowest) first
type OrderBook struct {
	Instrument *Instrument
	Time       time.Time
	Bids       []Level
	Asks       []Level
	// SharedDepth marks a synthetic book whose bid and ask levels draw on
	// one pool of volume, such as a book built from a single print
	SharedDepth bool
}

// BarConversion selects how bars are turned into order book snapshots
type BarConversion uint8

// Bar conversion modes
const (
	// OHLCPath walks open, then the nearer extreme, the other extreme and close
	OHLCPath BarConversion = iota
	// CloseOnly produces a single snapshot at the close
	CloseOnly
)

// barVolumePlaces is the precision bar volume is split to across snapshots
const barVolumePlaces = 8
