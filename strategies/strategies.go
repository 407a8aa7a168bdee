package strategies

import (
	"fmt"
	"strings"

	"github.com/tradeloop/tradeloop/common"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
	"github.com/tradeloop/tradeloop/strategies/base"
	"github.com/tradeloop/tradeloop/strategies/buyandhold"
	"github.com/tradeloop/tradeloop/strategies/twap"
)

// LoadStrategyByName returns a new strategy by its name with default
// settings applied
func LoadStrategyByName(name string) (Handler, error) {
	strats := GetStrategies()
	for i := range strats {
		if !strings.EqualFold(name, strats[i].Name()) {
			continue
		}
		strats[i].SetDefaults()
		return strats[i], nil
	}
	return nil, fmt.Errorf("strategy '%v' %w", name, base.ErrStrategyNotFound)
}

// GetStrategies returns a new instance of every registered strategy
func GetStrategies() []Handler {
	return []Handler{
		new(buyandhold.Strategy),
		new(twap.Strategy),
	}
}

// Dispatch delivers e to h: OnEvent first, then the callback for the
// payload kind. An unhandled payload kind is engine-fatal
func Dispatch(h Handler, ctx Context, e event.Event) error {
	if h == nil || ctx == nil {
		return common.ErrNilArguments
	}
	if err := h.OnEvent(ctx, e); err != nil {
		return err
	}
	switch p := e.Payload().(type) {
	case market.Bar:
		return h.OnBar(ctx, &p)
	case *market.Bar:
		return h.OnBar(ctx, p)
	case market.Trade:
		return h.OnTrade(ctx, &p)
	case *market.Trade:
		return h.OnTrade(ctx, p)
	case market.Quote:
		return h.OnQuote(ctx, &p)
	case *market.Quote:
		return h.OnQuote(ctx, p)
	case market.OrderBook:
		return h.OnOrderBook(ctx, &p)
	case *market.OrderBook:
		return h.OnOrderBook(ctx, p)
	case event.Timer:
		return h.OnTimer(ctx, &p)
	case order.Update:
		return h.OnOrderUpdate(ctx, &p)
	case order.Fill:
		return h.OnFill(ctx, &p)
	case nil:
		return common.ErrNilEvent
	}
	return common.Fatal(fmt.Errorf("%w: %T", event.ErrUnknownKind, e.Payload()))
}
