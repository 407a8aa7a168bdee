package engine

import (
	"fmt"
	"time"

	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
)

// strategyContext is what a strategy sees of the engine. Orders submitted
// through it are stamped with the strategy id so updates route back
type strategyContext struct {
	engine   *TradingEngine
	strategy *strategyState
}

func (c *strategyContext) StrategyID() string {
	return c.strategy.id
}

func (c *strategyContext) Now() time.Time {
	return c.engine.Now()
}

func (c *strategyContext) Instrument(id string) (*market.Instrument, bool) {
	return c.engine.Instrument(id)
}

func (c *strategyContext) SubmitOrder(broker string, o *order.Order) error {
	b, err := c.engine.Broker(broker)
	if err != nil {
		return err
	}
	if o != nil {
		o.Strategy = c.strategy.id
	}
	return b.SubmitOrder(o)
}

func (c *strategyContext) CancelOrder(broker string, o *order.Order) error {
	b, err := c.owned(broker, o)
	if err != nil {
		return err
	}
	return b.CancelOrder(o)
}

func (c *strategyContext) ModifyOrder(broker string, o *order.Order) error {
	b, err := c.owned(broker, o)
	if err != nil {
		return err
	}
	return b.ModifyOrder(o)
}

// owned returns broker when the working order with o's id, if any, belongs
// to this strategy. Unknown orders are left for the broker to report
func (c *strategyContext) owned(broker string, o *order.Order) (Broker, error) {
	b, err := c.engine.Broker(broker)
	if err != nil || o == nil {
		return b, err
	}
	for _, active := range b.ListActiveOrders() {
		if active.ID == o.ID && active.Strategy != c.strategy.id {
			return nil, fmt.Errorf("%w: %s belongs to %q", ErrOrderNotOwned, o.ID, active.Strategy)
		}
	}
	return b, nil
}

// ActiveOrders returns the strategy's own working orders at broker
func (c *strategyContext) ActiveOrders(broker string) ([]*order.Order, error) {
	b, err := c.engine.Broker(broker)
	if err != nil {
		return nil, err
	}
	active := b.ListActiveOrders()
	resp := active[:0]
	for _, o := range active {
		if o.Strategy == c.strategy.id {
			resp = append(resp, o)
		}
	}
	return resp, nil
}
