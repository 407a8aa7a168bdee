package base

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/log"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
)

// SetCustomSettings rejects any settings
func (s *Strategy) SetCustomSettings(settings map[string]any) error {
	if len(settings) > 0 {
		return ErrCustomSettingsUnsupported
	}
	return nil
}

// SetDefaults does nothing
func (s *Strategy) SetDefaults() {}

// OnEvent does nothing
func (s *Strategy) OnEvent(Context, event.Event) error { return nil }

// OnBar does nothing
func (s *Strategy) OnBar(Context, *market.Bar) error { return nil }

// OnTrade does nothing
func (s *Strategy) OnTrade(Context, *market.Trade) error { return nil }

// OnQuote does nothing
func (s *Strategy) OnQuote(Context, *market.Quote) error { return nil }

// OnOrderBook does nothing
func (s *Strategy) OnOrderBook(Context, *market.OrderBook) error { return nil }

// OnTimer does nothing
func (s *Strategy) OnTimer(Context, *event.Timer) error { return nil }

// OnOrderUpdate does nothing
func (s *Strategy) OnOrderUpdate(Context, *order.Update) error { return nil }

// OnFill does nothing
func (s *Strategy) OnFill(Context, *order.Fill) error { return nil }

// OnStart does nothing
func (s *Strategy) OnStart(Context) error { return nil }

// OnStop does nothing
func (s *Strategy) OnStop(Context) error { return nil }

// OnError logs the error
func (s *Strategy) OnError(ctx Context, err error) {
	log.Errorf(log.Strategy, "%s: %v", ctx.StrategyID(), err)
}

// Decimal reads a custom setting that may be a JSON number or a string
func Decimal(key string, v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w %s: %w", ErrInvalidCustomSettings, key, err)
		}
		return d, nil
	case decimal.Decimal:
		return t, nil
	}
	return decimal.Zero, fmt.Errorf("%w %s: unexpected %T", ErrInvalidCustomSettings, key, v)
}

// Int reads a positive integer custom setting
func Int(key string, v any) (int, error) {
	switch t := v.(type) {
	case float64:
		if t > 0 && t == float64(int(t)) {
			return int(t), nil
		}
	case int:
		if t > 0 {
			return t, nil
		}
	case string:
		if n, err := strconv.Atoi(t); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w %s: %v must be a positive integer", ErrInvalidCustomSettings, key, v)
}

// String reads a non empty string custom setting
func String(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w %s: %v must be a non empty string", ErrInvalidCustomSettings, key, v)
	}
	return s, nil
}
