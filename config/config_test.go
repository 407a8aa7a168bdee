package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeloop/tradeloop/market"
)

func loadTestConfig(t *testing.T, name string) *Config {
	t.Helper()
	c, err := ReadConfigFromFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return c
}

func TestReadConfigFromFile(t *testing.T) {
	t.Parallel()
	_, err := ReadConfigFromFile(filepath.Join("testdata", "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	c := loadTestConfig(t, "backtest.json")
	assert.Equal(t, "btc-twap", c.Nickname)
	assert.Equal(t, 25*time.Millisecond, c.Engine.IdlePollInterval.Duration())
	require.Len(t, c.Brokers, 1)
	assert.True(t, c.Brokers[0].InitialCash["USD"].Equal(decimal.NewFromInt(100000)), "currency keys must keep their case")
	assert.Equal(t, 17*time.Hour, c.Brokers[0].DayBoundary.Duration())
	assert.True(t, c.Brokers[0].Fee.Taker.Equal(decimal.RequireFromString("0.001")))
	assert.Equal(t, int64(1), c.Brokers[0].Slippage.Ticks)
	require.Len(t, c.Feeds, 2)
	require.NotNil(t, c.Feeds[0].Database)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), c.Feeds[0].Database.StartDate.UTC())
	require.NotNil(t, c.Feeds[1].Timer)
	assert.Equal(t, 6*time.Minute, c.Feeds[1].Timer.Interval.Duration())
	require.Len(t, c.Strategies, 1)
	assert.Equal(t, "twap-1", c.Strategies[0].StrategyID())
	assert.EqualValues(t, 10, c.Strategies[0].CustomSettings["slices"])
	assert.NoError(t, c.Validate())
}

func TestLoadConfigUpgradesLegacy(t *testing.T) {
	t.Parallel()
	c := loadTestConfig(t, "legacy.json")
	assert.Equal(t, 2, c.Version)
	require.Len(t, c.Strategies, 1)
	assert.Equal(t, "buyandhold", c.Strategies[0].Name)
	require.Len(t, c.Feeds, 1)
	assert.Equal(t, "close", c.Feeds[0].BarConversion)
	assert.True(t, c.Feeds[0].DrivesFills)
	assert.Equal(t, 10*time.Millisecond, c.Engine.IdlePollInterval.Duration(), "unset idle interval must default")
	assert.Contains(t, c.Brokers[0].InitialCash, "USD")
	assert.NoError(t, c.Validate())
}

func TestUpgradeLegacyIsValidJSON(t *testing.T) {
	t.Parallel()
	data, err := os.ReadFile(filepath.Join("testdata", "legacy.json"))
	require.NoError(t, err)
	out, err := Upgrade(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, json.Valid(out), "upgraded config must be valid json: %s", out)
	assert.NotContains(t, string(out), "close-only")
	assert.NotContains(t, string(out), `"strategy"`)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TRADELOOP_NICKNAME", "from-env")
	t.Setenv("TRADELOOP_ENGINE_IDLE_POLL_INTERVAL", "1s")
	data, err := os.ReadFile(filepath.Join("testdata", "backtest.json"))
	require.NoError(t, err)
	c, err := LoadConfig(data)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Nickname)
	assert.Equal(t, time.Second, c.Engine.IdlePollInterval.Duration())
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()
	_, err := LoadConfig([]byte(`{"version":99}`))
	assert.Error(t, err)
	_, err = LoadConfig([]byte(`{"version":2,"engine":{"idle-poll-interval":"soon"}}`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name string
		mod  func(*Config)
		err  error
	}{
		{"no instruments", func(c *Config) { c.Instruments = nil }, errNoInstruments},
		{"duplicate instrument", func(c *Config) { c.Instruments = append(c.Instruments, c.Instruments[0]) }, errDuplicateName},
		{"invalid instrument", func(c *Config) { c.Instruments[0].SettlementCurrency = "" }, market.ErrInvalidInstrument},
		{"no brokers", func(c *Config) { c.Brokers = nil }, errNoBrokers},
		{"unnamed broker", func(c *Config) { c.Brokers[0].Name = "" }, errNameUnset},
		{"no cash", func(c *Config) { c.Brokers[0].InitialCash = nil }, errNoInitialCash},
		{"negative cash", func(c *Config) { c.Brokers[0].InitialCash["USD"] = decimal.NewFromInt(-1) }, errNegativeAmount},
		{"unknown broker instrument", func(c *Config) { c.Brokers[0].Instruments = []string{"NOPE.SIM"} }, errUnknownInstrument},
		{"no feeds", func(c *Config) { c.Feeds = nil }, errNoFeeds},
		{"duplicate feed", func(c *Config) { c.Feeds[1].Name = c.Feeds[0].Name }, errDuplicateName},
		{"unknown kind", func(c *Config) { c.Feeds[0].Kind = "csv" }, errUnknownFeedKind},
		{"missing settings", func(c *Config) { c.Feeds[0].Database = nil }, errFeedSettingsMissing},
		{"bad conversion", func(c *Config) { c.Feeds[0].BarConversion = "hloc" }, market.ErrInvalidConversion},
		{"bad granularity", func(c *Config) { c.Feeds[0].Database.Granularity = "minutely" }, market.ErrInvalidGranularity},
		{"bad range", func(c *Config) { c.Feeds[0].Database.EndDate = c.Feeds[0].Database.StartDate }, errInvalidTimeRange},
		{"bad timer", func(c *Config) { c.Feeds[1].Timer.Interval = 0 }, errInvalidInterval},
		{"no strategies", func(c *Config) { c.Strategies = nil }, errNoStrategies},
		{"duplicate strategy", func(c *Config) { c.Strategies = append(c.Strategies, c.Strategies[0]) }, errDuplicateName},
		{"metrics without address", func(c *Config) { c.Metrics = MetricsSettings{Enabled: true} }, errMetricsListenUnset},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := loadTestConfig(t, "backtest.json")
			tc.mod(c)
			assert.ErrorIs(t, c.Validate(), tc.err)
		})
	}

	c := loadTestConfig(t, "backtest.json")
	c.Brokers[0].Location = "Mars/Olympus_Mons"
	assert.Error(t, c.Validate())
}

func TestInstrument(t *testing.T) {
	t.Parallel()
	c := loadTestConfig(t, "backtest.json")
	inst, err := c.Instrument("btc-usd.sim")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD.SIM", inst.ID())
	assert.True(t, inst.ContractSize.Equal(decimal.NewFromInt(1)))
	assert.True(t, inst.MarginRate.Equal(decimal.NewFromInt(1)))
	_, err = c.Instrument("ETH-USD.SIM")
	assert.ErrorIs(t, err, errUnknownInstrument)
}

func TestDuration(t *testing.T) {
	t.Parallel()
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration())
	require.NoError(t, d.UnmarshalJSON([]byte(`1000`)))
	assert.Equal(t, time.Microsecond, d.Duration())
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
	b, err := Duration(time.Minute).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m0s"`, string(b))
}
