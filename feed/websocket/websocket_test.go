package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeloop/tradeloop/common"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/market"
)

var frames = []string{
	`{"type":"heartbeat"}`,
	`{"type":"trade","symbol":"btc-usd","time":"2024-01-02T15:04:05Z","price":"100.5","size":2,"side":"BUY","id":"t1"}`,
	`{"type":"trade","symbol":"DOGE-USD","time":"2024-01-02T15:04:05Z","price":"1","size":"1"}`,
	`{"type":"quote","symbol":"BTC-USD","time":"2024-01-02T15:04:06Z","bid":"100","bid_size":"1","ask":"101","ask_size":"3"}`,
	`not json`,
}

func testInstrument(t *testing.T) *market.Instrument {
	t.Helper()
	inst, err := market.NewInstrument("BTC-USD", "SIM", "USD", decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	return inst
}

func newServer(t *testing.T, subscribed chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		subscribed <- string(msg)
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew(t *testing.T) {
	t.Parallel()
	_, err := New(nil)
	assert.ErrorIs(t, err, common.ErrNilPointer)
	_, err = New(&Config{})
	assert.ErrorIs(t, err, errNoURL)
	_, err = New(&Config{URL: "ws://localhost"})
	assert.ErrorIs(t, err, errNoInstruments)
	c, err := New(&Config{URL: "ws://localhost", Instruments: []*market.Instrument{testInstrument(t)}})
	require.NoError(t, err)
	assert.False(t, c.IsConnected())
	assert.False(t, c.Feed().IsFinished())
}

func TestDecode(t *testing.T) {
	t.Parallel()
	c, err := New(&Config{URL: "ws://localhost", Instruments: []*market.Instrument{testInstrument(t)}})
	require.NoError(t, err)
	received := time.Date(2024, 1, 2, 15, 4, 7, 0, time.UTC)
	c.now = func() time.Time { return received }

	_, ok, err := c.decode([]byte(frames[0]))
	require.NoError(t, err)
	assert.False(t, ok, "non market frames are skipped")

	e, ok, err := c.decode([]byte(frames[1]))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, received, e.ReceivedTime())
	assert.Equal(t, time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC), e.EventTime())
	tr, ok := e.Payload().(market.Trade)
	require.True(t, ok)
	assert.Equal(t, "100.5", tr.Price.String())
	assert.Equal(t, "2", tr.Size.String())
	assert.Equal(t, "BUY", tr.Aggressor)

	_, _, err = c.decode([]byte(frames[2]))
	assert.ErrorIs(t, err, errUnknownSymbol)

	e, ok, err = c.decode([]byte(frames[3]))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, event.QuoteKind, e.Kind())

	_, _, err = c.decode([]byte(`{"type":"quote","symbol":"BTC-USD","time":"2024-01-02T15:04:06Z","bid":"100"}`))
	assert.Error(t, err)
	_, _, err = c.decode([]byte(`{"type":"trade","symbol":"BTC-USD","price":"1","size":"1"}`))
	assert.ErrorIs(t, err, errMissingFrameTime)
	_, _, err = c.decode([]byte(frames[4]))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	t.Parallel()
	subscribed := make(chan string, 1)
	srv := newServer(t, subscribed)
	c, err := New(&Config{
		Name:              "sim-ws",
		URL:               "ws" + strings.TrimPrefix(srv.URL, "http"),
		Instruments:       []*market.Instrument{testInstrument(t)},
		Subscribe:         []byte(`{"op":"subscribe","channels":["trades","quotes"]}`),
		ReconnectInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case msg := <-subscribed:
		assert.Contains(t, msg, "subscribe")
	case <-time.After(5 * time.Second):
		require.FailNow(t, "subscription message never arrived")
	}
	assert.Eventually(t, func() bool { return c.Received() == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, c.IsConnected())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Run did not return after cancel")
	}

	f := c.Feed()
	assert.False(t, f.IsFinished(), "buffered events outlive the connection")
	for range 2 {
		_, ok := f.Pop()
		require.True(t, ok)
	}
	assert.True(t, f.IsFinished())
}
