package database

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeloop/tradeloop/market"
)

var d = decimal.RequireFromString

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(&Config{Driver: DBSQLite3, DSN: ":memory:"})
	require.NoError(t, err, "Open must not error")
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	require.NoError(t, s.CreateSchema(context.Background()))
	return s
}

func testBars(t *testing.T, inst *market.Instrument, start time.Time, n int) []market.Bar {
	t.Helper()
	bars := make([]market.Bar, n)
	for i := range bars {
		open := decimal.NewFromInt(int64(100 + i))
		bars[i] = market.Bar{
			Instrument: inst,
			Interval:   market.OneMin,
			Start:      start.Add(time.Duration(i) * time.Minute),
			End:        start.Add(time.Duration(i+1) * time.Minute),
			Open:       open,
			High:       open.Add(d("2")),
			Low:        open.Sub(d("1")),
			Close:      open.Add(d("1")),
			Volume:     decimal.NewFromInt(int64(10 * i)),
		}
	}
	return bars
}

func TestOpen(t *testing.T) {
	t.Parallel()
	_, err := Open(nil)
	assert.Error(t, err)
	_, err = Open(&Config{Driver: "mysql"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestRebind(t *testing.T) {
	t.Parallel()
	s := &Store{driver: DBPostgreSQL}
	assert.Equal(t, "a = $1 AND b = $2", s.rebind("a = ? AND b = ?"))
	s.driver = DBSQLite3
	assert.Equal(t, "a = ?", s.rebind("a = ?"))
}

func TestSeries(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	inst, err := market.NewInstrument("BTC-USD", "SIM", "USD", d("0.01"))
	require.NoError(t, err)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	n, err := s.Insert(ctx, testBars(t, inst, start, 5)...)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	_, err = s.Insert(ctx, testBars(t, inst, start, 1)...)
	require.NoError(t, err, "re-inserting a bar replaces it")

	bars, err := s.Series(ctx, &Query{Instrument: inst, Interval: market.OneMin, Start: start.Add(time.Minute), End: start.Add(3 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, start.Add(time.Minute), bars[0].Start)
	assert.Equal(t, start.Add(2*time.Minute), bars[0].End)
	assert.Equal(t, "101", bars[0].Open.String())
	assert.Equal(t, "10", bars[0].Volume.String())

	first, err := s.Series(ctx, &Query{Instrument: inst, Interval: market.OneMin, Start: start, End: start})
	require.NoError(t, err)
	assert.True(t, first[0].Volume.IsZero(), "zero volume is stored as null")

	_, err = s.Series(ctx, &Query{Instrument: inst, Interval: market.FiveMin, Start: start, End: start.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrNoCandleDataFound)
	_, err = s.Series(ctx, &Query{Instrument: inst})
	assert.ErrorIs(t, err, errInvalidInput)
}

func TestInsertIsAtomic(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx, `CREATE TRIGGER reject_open BEFORE INSERT ON candles WHEN NEW.open = '999'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)
	inst, err := market.NewInstrument("BTC-USD", "SIM", "USD", d("0.01"))
	require.NoError(t, err)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	q := &Query{Instrument: inst, Interval: market.OneMin, Start: start, End: start.Add(time.Hour)}

	bars := testBars(t, inst, start, 3)
	bars[2].Open, bars[2].High, bars[2].Low, bars[2].Close = d("999"), d("1000"), d("998"), d("999")
	n, err := s.Insert(ctx, bars...)
	require.Error(t, err, "a failing row must fail the batch")
	assert.Zero(t, n)
	_, err = s.Series(ctx, q)
	assert.ErrorIs(t, err, ErrNoCandleDataFound, "rows before the failure must be rolled back")

	bars = testBars(t, inst, start, 2)
	bars[1].High = d("1")
	_, err = s.Insert(ctx, bars...)
	assert.ErrorIs(t, err, market.ErrInvalidBar)
	_, err = s.Series(ctx, q)
	assert.ErrorIs(t, err, ErrNoCandleDataFound, "invalid bars are caught before anything is written")

	n, err = s.Insert(ctx, testBars(t, inst, start, 2)...)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestFeed(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	inst, err := market.NewInstrument("ETH-USD", "SIM", "USD", d("0.01"))
	require.NoError(t, err)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err = s.Insert(ctx, testBars(t, inst, start, 3)...)
	require.NoError(t, err)

	f, err := s.Feed(ctx, "eth", &Query{Instrument: inst, Interval: market.OneMin, Start: start, End: start.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 3, f.Len())
	e, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, start.Add(time.Minute), e.EventTime(), "bars are delivered at their close")
	assert.Equal(t, "bar::ETH-USD.SIM::1-MINUTE::LAST", e.Topic())
}
