package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeloop/tradeloop/market"
)

const testCSV = `1704153600,12.5,100,102,99,101
1704153660,0,101,103,100,102
`

func TestReadCSV(t *testing.T) {
	t.Parallel()
	inst, err := market.NewInstrument("BTC-USD", "SIM", "USD", d("0.01"))
	require.NoError(t, err)

	bars, err := ReadCSV(strings.NewReader(testCSV), inst, market.OneMin)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, start, bars[0].Start)
	assert.Equal(t, start.Add(time.Minute), bars[0].End)
	assert.Equal(t, "12.5", bars[0].Volume.String())
	assert.Equal(t, "101", bars[0].Close.String())
	assert.Equal(t, "103", bars[1].High.String())

	_, err = ReadCSV(strings.NewReader("1704153600,1,2\n"), inst, market.OneMin)
	assert.ErrorIs(t, err, errCSVColumns)
	_, err = ReadCSV(strings.NewReader("yesterday,1,2,3,1,2\n"), inst, market.OneMin)
	assert.ErrorContains(t, err, "line 1 timestamp")
	_, err = ReadCSV(strings.NewReader("1704153600,1,100,99,101,100\n"), inst, market.OneMin)
	assert.ErrorIs(t, err, market.ErrInvalidBar, "high below low must not load")
	_, err = ReadCSV(strings.NewReader(testCSV), nil, market.OneMin)
	assert.ErrorIs(t, err, errInvalidInput)
}

func TestInsertFromCSV(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	inst, err := market.NewInstrument("BTC-USD", "SIM", "USD", d("0.01"))
	require.NoError(t, err)
	file := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(file, []byte(testCSV), 0o600))

	n, err := s.InsertFromCSV(context.Background(), file, inst, market.OneMin)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars, err := s.Series(context.Background(), &Query{Instrument: inst, Interval: market.OneMin, Start: start, End: start.Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, bars, 2)

	_, err = s.InsertFromCSV(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), inst, market.OneMin)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
