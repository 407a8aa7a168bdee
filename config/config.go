package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/tradeloop/tradeloop/config/versions"
	"github.com/tradeloop/tradeloop/log"
	"github.com/tradeloop/tradeloop/market"
)

var one = decimal.NewFromInt(1)

// ReadConfigFromFile will take a config from a path
func ReadConfigFromFile(path string) (*Config, error) {
	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadConfig(fileData)
}

// LoadConfig upgrades config data to the latest version and decodes it,
// applying TRADELOOP_ environment overrides
func LoadConfig(data []byte) (*Config, error) {
	upgraded, err := Upgrade(context.Background(), data)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault("nickname", "")
	v.SetDefault("engine.idle-poll-interval", "10ms")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen-address", "")
	if err = v.ReadConfig(bytes.NewReader(upgraded)); err != nil {
		return nil, err
	}
	// viper resolves env overrides per key, json does the typed decoding
	merged, err := json.Marshal(v.AllSettings())
	if err != nil {
		return nil, err
	}
	var c Config
	if err = json.Unmarshal(merged, &c); err != nil {
		return nil, err
	}
	c.normalise()
	return &c, nil
}

// Upgrade brings config data up to the latest version
func Upgrade(ctx context.Context, data []byte) ([]byte, error) {
	return versions.Manager.Deploy(ctx, data, versions.UseLatestVersion)
}

// normalise restores case lost by key folding
func (c *Config) normalise() {
	for i := range c.Brokers {
		cash := make(map[string]decimal.Decimal, len(c.Brokers[i].InitialCash))
		for k, v := range c.Brokers[i].InitialCash {
			cash[strings.ToUpper(k)] = v
		}
		c.Brokers[i].InitialCash = cash
	}
}

// Validate checks all config settings
func (c *Config) Validate() error {
	if err := c.validateInstruments(); err != nil {
		return err
	}
	if err := c.validateBrokers(); err != nil {
		return err
	}
	if err := c.validateFeeds(); err != nil {
		return err
	}
	if err := c.validateStrategies(); err != nil {
		return err
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		return errMetricsListenUnset
	}
	return nil
}

// Instrument builds the instrument with the given SYMBOL.VENUE id
func (c *Config) Instrument(id string) (*market.Instrument, error) {
	for i := range c.Instruments {
		if !strings.EqualFold(c.Instruments[i].ID(), id) {
			continue
		}
		return c.Instruments[i].Build()
	}
	return nil, fmt.Errorf("%w %q", errUnknownInstrument, id)
}

// ID returns the instrument id in SYMBOL.VENUE form
func (s *InstrumentSettings) ID() string {
	return s.Symbol + "." + s.Venue
}

// Build converts the settings into an instrument. Unset contract size and
// margin rate default to one
func (s *InstrumentSettings) Build() (*market.Instrument, error) {
	inst := &market.Instrument{
		Symbol:             s.Symbol,
		Venue:              s.Venue,
		TickSize:           s.TickSize,
		ContractSize:       s.ContractSize,
		SettlementCurrency: strings.ToUpper(s.SettlementCurrency),
		MarginRate:         s.MarginRate,
		MaintenanceRate:    s.MaintenanceRate,
	}
	if inst.ContractSize.IsZero() {
		inst.ContractSize = one
	}
	if inst.MarginRate.IsZero() {
		inst.MarginRate = one
	}
	if err := inst.Validate(); err != nil {
		return nil, fmt.Errorf("instrument %s: %w", s.ID(), err)
	}
	return inst, nil
}

func (c *Config) validateInstruments() error {
	if len(c.Instruments) == 0 {
		return errNoInstruments
	}
	seen := make(map[string]struct{}, len(c.Instruments))
	for i := range c.Instruments {
		id := strings.ToUpper(c.Instruments[i].ID())
		if _, ok := seen[id]; ok {
			return fmt.Errorf("instrument %s %w", id, errDuplicateName)
		}
		seen[id] = struct{}{}
		if _, err := c.Instruments[i].Build(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateBrokers() error {
	if len(c.Brokers) == 0 {
		return errNoBrokers
	}
	names := make([]string, 0, len(c.Brokers))
	for i := range c.Brokers {
		b := &c.Brokers[i]
		if b.Name == "" {
			return fmt.Errorf("broker %d %w", i, errNameUnset)
		}
		if slices.Contains(names, b.Name) {
			return fmt.Errorf("broker %s %w", b.Name, errDuplicateName)
		}
		names = append(names, b.Name)
		if len(b.InitialCash) == 0 {
			return fmt.Errorf("%s %w", b.Name, errNoInitialCash)
		}
		for ccy, amount := range b.InitialCash {
			if amount.IsNegative() {
				return fmt.Errorf("%s initial cash %s %w", b.Name, ccy, errNegativeAmount)
			}
		}
		for _, id := range b.Instruments {
			if _, err := c.Instrument(id); err != nil {
				return fmt.Errorf("broker %s: %w", b.Name, err)
			}
		}
		if _, err := b.LoadLocation(); err != nil {
			return fmt.Errorf("broker %s: %w", b.Name, err)
		}
	}
	return nil
}

// LoadLocation returns the time zone DAY orders expire in, UTC when unset
func (b *BrokerSettings) LoadLocation() (*time.Location, error) {
	if b.Location == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(b.Location)
}

func (c *Config) brokered(id string) bool {
	for i := range c.Brokers {
		if slices.ContainsFunc(c.Brokers[i].Instruments, func(s string) bool { return strings.EqualFold(s, id) }) {
			return true
		}
	}
	return false
}

func (c *Config) validateFeeds() error {
	if len(c.Feeds) == 0 {
		return errNoFeeds
	}
	names := make([]string, 0, len(c.Feeds))
	for i := range c.Feeds {
		f := &c.Feeds[i]
		if f.Name == "" {
			return fmt.Errorf("feed %d %w", i, errNameUnset)
		}
		if slices.Contains(names, f.Name) {
			return fmt.Errorf("feed %s %w", f.Name, errDuplicateName)
		}
		names = append(names, f.Name)
		if _, err := market.ParseBarConversion(f.BarConversion); err != nil {
			return fmt.Errorf("feed %s: %w", f.Name, err)
		}
		if err := c.validateFeed(f); err != nil {
			return fmt.Errorf("feed %s: %w", f.Name, err)
		}
	}
	return nil
}

func (c *Config) validateFeed(f *FeedSettings) error {
	switch f.Kind {
	case DatabaseFeed:
		d := f.Database
		if d == nil {
			return fmt.Errorf("%w %s", errFeedSettingsMissing, f.Kind)
		}
		if _, err := c.Instrument(d.Instrument); err != nil {
			return err
		}
		if f.DrivesFills && !c.brokered(d.Instrument) {
			log.Warnf(log.ConfigMgr, "feed %s drives fills for %s which no broker trades", f.Name, d.Instrument)
		}
		if _, err := market.ParseGranularity(d.Granularity); err != nil {
			return err
		}
		if !d.EndDate.After(d.StartDate) {
			return errInvalidTimeRange
		}
	case WebsocketFeed:
		w := f.Websocket
		if w == nil {
			return fmt.Errorf("%w %s", errFeedSettingsMissing, f.Kind)
		}
		for _, id := range w.Instruments {
			if _, err := c.Instrument(id); err != nil {
				return err
			}
		}
	case TimerFeed:
		t := f.Timer
		if t == nil {
			return fmt.Errorf("%w %s", errFeedSettingsMissing, f.Kind)
		}
		if !t.At.IsZero() {
			return nil
		}
		if t.Interval <= 0 {
			return errInvalidInterval
		}
		if !t.End.After(t.Start) {
			return errInvalidTimeRange
		}
	default:
		return fmt.Errorf("%w %q", errUnknownFeedKind, f.Kind)
	}
	return nil
}

func (c *Config) validateStrategies() error {
	if len(c.Strategies) == 0 {
		return errNoStrategies
	}
	ids := make([]string, 0, len(c.Strategies))
	for i := range c.Strategies {
		s := &c.Strategies[i]
		if s.Name == "" {
			return fmt.Errorf("strategy %d %w", i, errNameUnset)
		}
		id := s.StrategyID()
		if slices.Contains(ids, id) {
			return fmt.Errorf("strategy %s %w", id, errDuplicateName)
		}
		ids = append(ids, id)
	}
	return nil
}

// StrategyID returns the id the strategy is registered under, its name
// when unset
func (s *StrategySettings) StrategyID() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Name
}

// PrintSetting prints relevant settings to the console for easy reading
func (c *Config) PrintSetting() {
	log.Infoln(log.ConfigMgr, "-------------------------------------------------------------")
	log.Infof(log.ConfigMgr, "Nickname: %s", c.Nickname)
	for i := range c.Instruments {
		log.Infof(log.ConfigMgr, "Instrument: %s tick %v settles in %s", c.Instruments[i].ID(), c.Instruments[i].TickSize, c.Instruments[i].SettlementCurrency)
	}
	for i := range c.Brokers {
		log.Infof(log.ConfigMgr, "Broker: %s trades %v fee model %q slippage model %q", c.Brokers[i].Name, c.Brokers[i].Instruments, c.Brokers[i].Fee.Model, c.Brokers[i].Slippage.Model)
	}
	for i := range c.Feeds {
		log.Infof(log.ConfigMgr, "Feed: %s kind %s drives fills %v", c.Feeds[i].Name, c.Feeds[i].Kind, c.Feeds[i].DrivesFills)
	}
	for i := range c.Strategies {
		log.Infof(log.ConfigMgr, "Strategy: %s (%s) custom settings %v", c.Strategies[i].StrategyID(), c.Strategies[i].Name, c.Strategies[i].CustomSettings)
	}
	log.Infoln(log.ConfigMgr, "-------------------------------------------------------------")
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*d = Duration(time.Duration(t))
	case string:
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	case nil:
		*d = 0
	default:
		return errors.New("invalid duration")
	}
	return nil
}

// MarshalJSON writes the duration string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Duration returns d as a time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
