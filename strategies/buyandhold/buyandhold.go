package buyandhold

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/common"
	"github.com/tradeloop/tradeloop/log"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
	"github.com/tradeloop/tradeloop/strategies/base"
)

const (
	// Name is the strategy name
	Name          = "buyandhold"
	instrumentKey = "instrument"
	brokerKey     = "broker"
	quantityKey   = "quantity"
	exitAfterKey  = "exit-after-bars"
	description   = `Buys a fixed quantity at market on the first bar it sees and holds it. When exit-after-bars is set the position is sold at market once that many further bars have closed`
)

// Strategy is an implementation of the Handler interface
type Strategy struct {
	base.Strategy
	instrument string
	broker     string
	quantity   decimal.Decimal
	exitAfter  int

	bars    int
	entry   *order.Order
	exit    *order.Order
	holding decimal.Decimal
}

// Name returns the name of the strategy
func (s *Strategy) Name() string {
	return Name
}

// Description provides a nice overview of the strategy
func (s *Strategy) Description() string {
	return description
}

// Subscriptions returns bars of the configured instrument, or every bar
// when none is configured
func (s *Strategy) Subscriptions() []string {
	inst := "*"
	if s.instrument != "" {
		inst = s.instrument
	}
	return []string{"bar::" + inst + "::*::*"}
}

// SetCustomSettings allows a user to modify the strategy in their config
func (s *Strategy) SetCustomSettings(customSettings map[string]any) error {
	var err error
	for k, v := range customSettings {
		switch k {
		case instrumentKey:
			s.instrument, err = base.String(k, v)
		case brokerKey:
			s.broker, err = base.String(k, v)
		case quantityKey:
			s.quantity, err = base.Decimal(k, v)
			if err == nil && !s.quantity.IsPositive() {
				err = fmt.Errorf("%w %s: %v must be positive", base.ErrInvalidCustomSettings, k, v)
			}
		case exitAfterKey:
			s.exitAfter, err = base.Int(k, v)
		default:
			err = fmt.Errorf("%w unrecognised custom setting key %v with value %v. Cannot apply", base.ErrInvalidCustomSettings, k, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// SetDefaults sets the custom settings to their default values
func (s *Strategy) SetDefaults() {
	s.broker = "sim"
	s.quantity = decimal.NewFromInt(1)
	s.exitAfter = 0
}

// OnStart resets any state from a previous run
func (s *Strategy) OnStart(base.Context) error {
	s.bars = 0
	s.entry = nil
	s.exit = nil
	s.holding = decimal.Zero
	return nil
}

// OnBar enters on the first bar and exits after the configured bar count
func (s *Strategy) OnBar(ctx base.Context, b *market.Bar) error {
	if b == nil {
		return common.ErrNilEvent
	}
	if s.instrument == "" {
		s.instrument = b.Instrument.ID()
	}
	if b.Instrument.ID() != s.instrument {
		return nil
	}
	s.bars++
	switch {
	case s.entry == nil:
		s.entry = order.NewMarket(b.Instrument, order.Buy, s.quantity)
		return ctx.SubmitOrder(s.broker, s.entry)
	case s.exit == nil && s.exitAfter > 0 && s.bars > s.exitAfter && s.holding.IsPositive():
		s.exit = order.NewMarket(b.Instrument, order.Sell, s.holding)
		return ctx.SubmitOrder(s.broker, s.exit)
	}
	return nil
}

// OnFill tracks the held quantity
func (s *Strategy) OnFill(_ base.Context, f *order.Fill) error {
	switch {
	case s.entry != nil && f.OrderID == s.entry.ID:
		s.holding = s.holding.Add(f.Quantity)
	case s.exit != nil && f.OrderID == s.exit.ID:
		s.holding = s.holding.Sub(f.Quantity)
	}
	return nil
}

// OnStop reports what is still held
func (s *Strategy) OnStop(ctx base.Context) error {
	log.Infof(log.Strategy, "%s finished after %d bars holding %v %s", ctx.StrategyID(), s.bars, s.holding, s.instrument)
	return nil
}

// Holding returns the quantity currently held
func (s *Strategy) Holding() decimal.Decimal {
	return s.holding
}
