package database

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/log"
	"github.com/tradeloop/tradeloop/market"
)

var errCSVColumns = errors.New("csv row requires timestamp, volume, open, high, low and close columns")

// ReadCSV parses bars from rows of unix timestamp, volume, open, high, low
// and close. The timestamp is the bar open time
func ReadCSV(r io.Reader, inst *market.Instrument, interval market.Interval) ([]market.Bar, error) {
	if inst == nil || interval <= 0 {
		return nil, errInvalidInput
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	var bars []market.Bar
	for line := 1; ; line++ {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if len(row) < 6 {
			return nil, fmt.Errorf("line %d: %w", line, errCSVColumns)
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d timestamp: %w", line, err)
		}
		var vals [5]decimal.Decimal
		for x := range vals {
			vals[x], err = decimal.NewFromString(row[x+1])
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, x+2, err)
			}
		}
		start := time.Unix(ts, 0).UTC()
		b := market.Bar{
			Instrument: inst,
			Interval:   interval,
			Start:      start,
			End:        start.Add(interval.Duration()),
			Volume:     vals[0],
			Open:       vals[1],
			High:       vals[2],
			Low:        vals[3],
			Close:      vals[4],
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// InsertFromCSV loads a candle file into the store
func (s *Store) InsertFromCSV(ctx context.Context, file string, inst *market.Instrument, interval market.Interval) (int64, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Errorln(log.Feed, err)
		}
	}()
	bars, err := ReadCSV(f, inst, interval)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", file, err)
	}
	return s.Insert(ctx, bars...)
}
