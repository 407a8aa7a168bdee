package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tradeloop/tradeloop/feed"
	"github.com/tradeloop/tradeloop/market"
	"golang.org/x/time/rate"
)

const (
	defaultReconnectInterval = 5 * time.Second
	defaultReadTimeout       = time.Minute
)

var (
	errNoURL            = errors.New("websocket url unset")
	errNoInstruments    = errors.New("no instruments configured")
	errUnknownSymbol    = errors.New("unknown symbol")
	errMissingFrameTime = errors.New("frame time missing")
)

// Config holds websocket feed settings
type Config struct {
	Name        string
	URL         string
	Instruments []*market.Instrument
	// Subscribe is sent verbatim after every successful dial when set
	Subscribe []byte
	// ReconnectInterval is the minimum spacing between dial attempts
	ReconnectInterval time.Duration
	ReadTimeout       time.Duration
	BufferSize        int
}

// Client streams trade and quote frames into a live feed. Frames are JSON
// objects with a type of trade or quote, e.g.
//
//	{"type":"trade","symbol":"BTC-USD","time":"2024-01-02T15:04:05Z","price":"100.5","size":"2"}
//	{"type":"quote","symbol":"BTC-USD","time":"2024-01-02T15:04:05Z","bid":"100","bid_size":"1","ask":"101","ask_size":"3"}
//
// Any other frame type is ignored
type Client struct {
	name        string
	url         string
	subscribe   []byte
	readTimeout time.Duration
	instruments map[string]*market.Instrument
	live        *feed.Live
	limiter     *rate.Limiter
	dialer      websocket.Dialer
	now         func() time.Time

	m         sync.Mutex
	connected bool
	received  int64
}
