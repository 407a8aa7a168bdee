package config

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/log"
)

// Feed kinds
const (
	DatabaseFeed  = "database"
	WebsocketFeed = "websocket"
	TimerFeed     = "timer"
)

// EnvPrefix prefixes environment variables overriding config values, e.g.
// TRADELOOP_ENGINE_IDLE_POLL_INTERVAL
const EnvPrefix = "TRADELOOP"

var (
	errNoInstruments         = errors.New("no instruments configured")
	errNoBrokers             = errors.New("no brokers configured")
	errNoFeeds               = errors.New("no feeds configured")
	errNoStrategies          = errors.New("no strategies configured")
	errDuplicateName         = errors.New("duplicate name")
	errNameUnset             = errors.New("name unset")
	errUnknownInstrument     = errors.New("unknown instrument")
	errUnknownFeedKind       = errors.New("unknown feed kind")
	errFeedSettingsMissing   = errors.New("feed settings missing for kind")
	errInvalidTimeRange      = errors.New("end date must be after start date")
	errInvalidInterval       = errors.New("interval must be positive")
	errNoInitialCash         = errors.New("broker has no initial cash")
	errNegativeAmount        = errors.New("amount cannot be negative")
	errMetricsListenUnset    = errors.New("metrics enabled without a listen address")
	errInstrumentNotBrokered = errors.New("instrument is not traded by any broker")
)

// Config defines what is run: which instruments are traded on which simulated
// brokers, which feeds make up the timeline and which strategies react to it
type Config struct {
	Version     int                  `json:"version"`
	Nickname    string               `json:"nickname"`
	Engine      EngineSettings       `json:"engine"`
	Logging     *log.Config          `json:"logging,omitempty"`
	Instruments []InstrumentSettings `json:"instruments"`
	Brokers     []BrokerSettings     `json:"brokers"`
	Feeds       []FeedSettings       `json:"feeds"`
	Strategies  []StrategySettings   `json:"strategies"`
	Metrics     MetricsSettings      `json:"metrics"`
}

// EngineSettings configures the orchestrator
type EngineSettings struct {
	IdlePollInterval Duration `json:"idle-poll-interval"`
}

// InstrumentSettings describes one tradable contract
type InstrumentSettings struct {
	Symbol             string          `json:"symbol"`
	Venue              string          `json:"venue"`
	SettlementCurrency string          `json:"settlement-currency"`
	TickSize           decimal.Decimal `json:"tick-size"`
	ContractSize       decimal.Decimal `json:"contract-size"`
	MarginRate         decimal.Decimal `json:"margin-rate"`
	MaintenanceRate    decimal.Decimal `json:"maintenance-rate"`
}

// BrokerSettings configures one simulated broker
type BrokerSettings struct {
	Name string `json:"name"`
	// Instruments are instrument ids in SYMBOL.VENUE form
	Instruments []string                   `json:"instruments"`
	InitialCash map[string]decimal.Decimal `json:"initial-cash"`
	Fee         FeeSettings                `json:"fee"`
	Slippage    SlippageSettings           `json:"slippage"`
	DayBoundary Duration                   `json:"day-boundary"`
	Location    string                     `json:"location"`
}

// FeeSettings selects a fee model
type FeeSettings struct {
	Model       string          `json:"model"`
	Maker       decimal.Decimal `json:"maker"`
	Taker       decimal.Decimal `json:"taker"`
	PerContract decimal.Decimal `json:"per-contract"`
}

// SlippageSettings selects a slippage model
type SlippageSettings struct {
	Model string          `json:"model"`
	Ticks int64           `json:"ticks"`
	Rate  decimal.Decimal `json:"rate"`
}

// FeedSettings configures one event feed. Exactly the settings block
// matching Kind is used
type FeedSettings struct {
	Name          string                 `json:"name"`
	Kind          string                 `json:"kind"`
	DrivesFills   bool                   `json:"drives-fills"`
	BarConversion string                 `json:"bar-conversion"`
	Database      *DatabaseFeedSettings  `json:"database,omitempty"`
	Websocket     *WebsocketFeedSettings `json:"websocket,omitempty"`
	Timer         *TimerFeedSettings     `json:"timer,omitempty"`
}

// DatabaseFeedSettings loads bars from a candles table
type DatabaseFeedSettings struct {
	Driver      string    `json:"driver"`
	DSN         string    `json:"dsn"`
	Instrument  string    `json:"instrument"`
	Granularity string    `json:"granularity"`
	StartDate   time.Time `json:"start-date"`
	EndDate     time.Time `json:"end-date"`
}

// WebsocketFeedSettings streams trades and quotes from a websocket endpoint
type WebsocketFeedSettings struct {
	URL               string   `json:"url"`
	Instruments       []string `json:"instruments"`
	Subscribe         string   `json:"subscribe"`
	ReconnectInterval Duration `json:"reconnect-interval"`
	ReadTimeout       Duration `json:"read-timeout"`
	BufferSize        int      `json:"buffer-size"`
}

// TimerFeedSettings produces a one-time timer at At, or a periodic timer
// from Start to End every Interval
type TimerFeedSettings struct {
	At       time.Time `json:"at"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Interval Duration  `json:"interval"`
}

// StrategySettings selects a registered strategy and its custom settings
type StrategySettings struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	CustomSettings map[string]any `json:"custom-settings,omitempty"`
}

// MetricsSettings exposes engine metrics over http
type MetricsSettings struct {
	Enabled       bool   `json:"enabled"`
	ListenAddress string `json:"listen-address"`
}

// Duration is a time.Duration read from a string such as "5m" or from a
// number of nanoseconds
type Duration time.Duration
