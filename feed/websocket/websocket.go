package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/common"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/feed"
	"github.com/tradeloop/tradeloop/log"
	"github.com/tradeloop/tradeloop/market"
	"golang.org/x/time/rate"
)

// New returns a client whose feed is open but empty until Run is called
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w websocket config", common.ErrNilPointer)
	}
	if cfg.URL == "" {
		return nil, errNoURL
	}
	if len(cfg.Instruments) == 0 {
		return nil, errNoInstruments
	}
	name := cfg.Name
	if name == "" {
		name = cfg.URL
	}
	interval := cfg.ReconnectInterval
	if interval <= 0 {
		interval = defaultReconnectInterval
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	c := &Client{
		name:        name,
		url:         cfg.URL,
		subscribe:   cfg.Subscribe,
		readTimeout: readTimeout,
		instruments: make(map[string]*market.Instrument, len(cfg.Instruments)),
		live:        feed.NewLive(name, cfg.BufferSize),
		limiter:     rate.NewLimiter(rate.Every(interval), 1),
		dialer:      websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		now:         time.Now,
	}
	for _, inst := range cfg.Instruments {
		if err := inst.Validate(); err != nil {
			return nil, err
		}
		c.instruments[strings.ToUpper(inst.Symbol)] = inst
	}
	return c, nil
}

// Feed returns the live feed frames are pushed to
func (c *Client) Feed() *feed.Live {
	return c.live
}

// IsConnected reports whether a connection is currently established
func (c *Client) IsConnected() bool {
	c.m.Lock()
	defer c.m.Unlock()
	return c.connected
}

// Received returns the number of events pushed to the feed
func (c *Client) Received() int64 {
	c.m.Lock()
	defer c.m.Unlock()
	return c.received
}

// Run dials and reads until ctx ends, reconnecting at the configured pace.
// The feed is closed when Run returns
func (c *Client) Run(ctx context.Context) error {
	defer func() {
		if err := c.live.Close(); err != nil {
			log.Errorf(log.Feed, "%s close: %v", c.name, err)
		}
	}()
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}
		err := c.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnf(log.Feed, "%s connection lost: %v, reconnecting", c.name, err)
	}
}

func (c *Client) connectAndRead(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, http.Header{})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return err
	}
	c.setConnected(true)
	defer c.setConnected(false)
	log.Infof(log.Feed, "%s connected to %s", c.name, c.url)

	if len(c.subscribe) > 0 {
		if err := conn.WriteMessage(websocket.TextMessage, c.subscribe); err != nil {
			conn.Close()
			return err
		}
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			conn.Close()
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return err
		}
		e, ok, err := c.decode(data)
		if err != nil {
			log.Warnf(log.Feed, "%s: %v", c.name, err)
			continue
		}
		if !ok {
			continue
		}
		if err := c.live.Push(e); err != nil {
			if !errors.Is(err, feed.ErrBufferFull) {
				log.Warnf(log.Feed, "%s: %v", c.name, err)
			}
			continue
		}
		c.m.Lock()
		c.received++
		c.m.Unlock()
	}
}

func (c *Client) setConnected(v bool) {
	c.m.Lock()
	c.connected = v
	c.m.Unlock()
}

// decode converts one frame into an event. It reports false for frames that
// carry no market data
func (c *Client) decode(data []byte) (event.Event, bool, error) {
	typ, err := jsonparser.GetString(data, "type")
	if err != nil {
		return event.Event{}, false, fmt.Errorf("frame without type: %w", err)
	}
	typ = strings.ToLower(typ)
	if typ != "trade" && typ != "quote" {
		return event.Event{}, false, nil
	}
	symbol, err := jsonparser.GetString(data, "symbol")
	if err != nil {
		return event.Event{}, false, fmt.Errorf("%s frame without symbol: %w", typ, err)
	}
	inst, ok := c.instruments[strings.ToUpper(symbol)]
	if !ok {
		return event.Event{}, false, fmt.Errorf("%w: %s", errUnknownSymbol, symbol)
	}
	ts, err := jsonparser.GetString(data, "time")
	if err != nil {
		return event.Event{}, false, fmt.Errorf("%s %s: %w", typ, symbol, errMissingFrameTime)
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return event.Event{}, false, err
	}
	received := c.now()

	if typ == "trade" {
		vals, err := decimals(data, "price", "size")
		if err != nil {
			return event.Event{}, false, fmt.Errorf("trade %s: %w", symbol, err)
		}
		t := market.Trade{Instrument: inst, Time: at, Price: vals[0], Size: vals[1]}
		t.Aggressor, _ = jsonparser.GetString(data, "side")
		t.TradeID, _ = jsonparser.GetString(data, "id")
		e, err := t.Event(received)
		return e, err == nil, err
	}
	vals, err := decimals(data, "bid", "bid_size", "ask", "ask_size")
	if err != nil {
		return event.Event{}, false, fmt.Errorf("quote %s: %w", symbol, err)
	}
	q := market.Quote{Instrument: inst, Time: at, Bid: vals[0], BidSize: vals[1], Ask: vals[2], AskSize: vals[3]}
	e, err := q.Event(received)
	return e, err == nil, err
}

// decimals reads string or number fields as decimals
func decimals(data []byte, keys ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(keys))
	for x, k := range keys {
		v, typ, _, err := jsonparser.Get(data, k)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		if typ != jsonparser.String && typ != jsonparser.Number {
			return nil, fmt.Errorf("%s: unexpected %s", k, typ)
		}
		if out[x], err = decimal.NewFromString(string(v)); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
	}
	return out, nil
}
