package base

import (
	"errors"
	"time"

	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/order"
)

var (
	// ErrCustomSettingsUnsupported used when custom settings are found in the config when they shouldn't be
	ErrCustomSettingsUnsupported = errors.New("custom settings not supported")
	// ErrStrategyNotFound used when strategy specified in config does not exist
	ErrStrategyNotFound = errors.New("not found. Please ensure the strategy 'name' field is spelled properly in your config")
	// ErrInvalidCustomSettings used when bad custom settings are found in the config
	ErrInvalidCustomSettings = errors.New("invalid custom settings in config")
)

// Strategy implements every callback as a no-op so strategies only
// override what they use
type Strategy struct{}

// Context is a strategy's view of the running engine
type Context interface {
	// StrategyID is the id the strategy was registered under
	StrategyID() string
	// Now returns the engine clock
	Now() time.Time
	Instrument(id string) (*market.Instrument, bool)
	SubmitOrder(broker string, o *order.Order) error
	CancelOrder(broker string, o *order.Order) error
	ModifyOrder(broker string, o *order.Order) error
	ActiveOrders(broker string) ([]*order.Order, error)
}
