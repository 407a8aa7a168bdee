package strategies

import (
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
	"github.com/tradeloop/tradeloop/strategies/base"
)

// Handler is implemented by every strategy. Callbacks are invoked by the
// engine in timeline order; OnEvent is called for every delivered event
// before the callback specific to its payload kind
type Handler interface {
	Name() string
	Description() string
	// Subscriptions returns the topic patterns the strategy receives
	Subscriptions() []string
	SetCustomSettings(map[string]any) error
	SetDefaults()

	OnStart(Context) error
	OnEvent(Context, event.Event) error
	OnBar(Context, *market.Bar) error
	OnTrade(Context, *market.Trade) error
	OnQuote(Context, *market.Quote) error
	OnOrderBook(Context, *market.OrderBook) error
	OnTimer(Context, *event.Timer) error
	OnOrderUpdate(Context, *order.Update) error
	OnFill(Context, *order.Fill) error
	OnStop(Context) error
	// OnError receives errors returned by the strategy's own callbacks
	OnError(Context, error)
}

// Context is a strategy's view of the running engine
type Context = base.Context
