package database

import (
	"errors"
	"time"

	"github.com/tradeloop/tradeloop/market"
)

// Supported drivers
const (
	DBSQLite3    = "sqlite3"
	DBPostgreSQL = "postgres"
)

var (
	// ErrNoCandleDataFound is returned when a query matches no bars
	ErrNoCandleDataFound = errors.New("no candle data found")
	// ErrUnsupportedDriver is returned for drivers other than sqlite3 and postgres
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	errInvalidInput = errors.New("instrument, interval, start and end are required")
	errNilDB        = errors.New("database connection is nil")
)

// Config describes how to reach the candle store
type Config struct {
	Driver string `json:"driver"`
	// DSN is a file path for sqlite3 and a connection string for postgres
	DSN string `json:"dsn"`
}

// Query selects the bars of one instrument and granularity whose open time
// lies within [Start, End]
type Query struct {
	Instrument *market.Instrument
	Interval   market.Interval
	Start      time.Time
	End        time.Time
}

// Store reads and writes bars in the candles table
type Store struct {
	db     dbConn
	driver string
}
