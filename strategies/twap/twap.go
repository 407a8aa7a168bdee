package twap

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/order"
	"github.com/tradeloop/tradeloop/strategies/base"
)

const (
	// Name is the strategy name
	Name          = "twap"
	instrumentKey = "instrument"
	brokerKey     = "broker"
	sideKey       = "side"
	quantityKey   = "quantity"
	slicesKey     = "slices"
	timerKey      = "timer"
	description   = `Time weighted average price execution. Splits a parent quantity into equal market orders, one per timer event, until the parent is worked`
)

var errUnknownInstrument = errors.New("instrument not traded")

// Strategy is an implementation of the Handler interface
type Strategy struct {
	base.Strategy
	instrument string
	broker     string
	side       order.Side
	quantity   decimal.Decimal
	slices     int
	timer      string

	sent     int
	children []*order.Order
	filled   decimal.Decimal
}

// Name returns the name of the strategy
func (s *Strategy) Name() string {
	return Name
}

// Description provides a nice overview of the strategy
func (s *Strategy) Description() string {
	return description
}

// Subscriptions returns the configured timer's events
func (s *Strategy) Subscriptions() []string {
	timer := "*"
	if s.timer != "" {
		timer = s.timer
	}
	return []string{"timer::*::*::" + timer}
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
		case timerKey:
			s.timer, err = base.String(k, v)
		case sideKey:
			var side string
			if side, err = base.String(k, v); err == nil {
				s.side, err = order.StringToOrderSide(side)
			}
		case quantityKey:
			s.quantity, err = base.Decimal(k, v)
			if err == nil && !s.quantity.IsPositive() {
				err = fmt.Errorf("%w %s: %v must be positive", base.ErrInvalidCustomSettings, k, v)
			}
		case slicesKey:
			s.slices, err = base.Int(k, v)
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
	s.side = order.Buy
	s.quantity = decimal.NewFromInt(10)
	s.slices = 10
}

// OnStart checks the settings and resets any state from a previous run
func (s *Strategy) OnStart(ctx base.Context) error {
	if _, ok := ctx.Instrument(s.instrument); !ok {
		return fmt.Errorf("%s %w: %q", Name, errUnknownInstrument, s.instrument)
	}
	s.sent = 0
	s.children = nil
	s.filled = decimal.Zero
	return nil
}

// OnTimer sends the next child order
func (s *Strategy) OnTimer(ctx base.Context, _ *event.Timer) error {
	if s.sent >= s.slices {
		return nil
	}
	inst, ok := ctx.Instrument(s.instrument)
	if !ok {
		return fmt.Errorf("%s %w: %q", Name, errUnknownInstrument, s.instrument)
	}
	o := order.NewMarket(inst, s.side, s.childQuantity(s.sent))
	s.sent++
	s.children = append(s.children, o)
	return ctx.SubmitOrder(s.broker, o)
}

// childQuantity splits the parent evenly with the remainder on the last slice
func (s *Strategy) childQuantity(x int) decimal.Decimal {
	per := s.quantity.Div(decimal.NewFromInt(int64(s.slices))).RoundDown(8)
	if x == s.slices-1 {
		return s.quantity.Sub(per.Mul(decimal.NewFromInt(int64(s.slices - 1))))
	}
	return per
}

// OnFill accumulates the worked quantity
func (s *Strategy) OnFill(_ base.Context, f *order.Fill) error {
	s.filled = s.filled.Add(f.Quantity)
	return nil
}

// Filled returns the quantity worked so far
func (s *Strategy) Filled() decimal.Decimal {
	return s.filled
}

// Sent returns the number of child orders submitted
func (s *Strategy) Sent() int {
	return s.sent
}
