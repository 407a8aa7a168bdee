package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	// import postgres driver
	_ "github.com/lib/pq"
	// import sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/common"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/feed"
	"github.com/tradeloop/tradeloop/log"
	"github.com/tradeloop/tradeloop/market"
	"github.com/volatiletech/null"
)

// sqliteTimeFormat is fixed width so timestamps compare lexically
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type dbConn interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS candles (
	symbol      TEXT NOT NULL,
	venue       TEXT NOT NULL,
	granularity TEXT NOT NULL,
	timestamp   TEXT NOT NULL,
	open        TEXT NOT NULL,
	high        TEXT NOT NULL,
	low         TEXT NOT NULL,
	close       TEXT NOT NULL,
	volume      TEXT,
	PRIMARY KEY (symbol, venue, granularity, timestamp)
)`

const postgresSchema = `CREATE TABLE IF NOT EXISTS candles (
	symbol      TEXT NOT NULL,
	venue       TEXT NOT NULL,
	granularity TEXT NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	open        NUMERIC NOT NULL,
	high        NUMERIC NOT NULL,
	low         NUMERIC NOT NULL,
	close       NUMERIC NOT NULL,
	volume      NUMERIC,
	PRIMARY KEY (symbol, venue, granularity, timestamp)
)`

// Open connects to the candle store
func Open(cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w database config", common.ErrNilPointer)
	}
	driver := strings.ToLower(cfg.Driver)
	switch driver {
	case DBSQLite3:
		con, err := sql.Open(DBSQLite3, cfg.DSN)
		if err != nil {
			return nil, err
		}
		con.SetMaxOpenConns(1)
		return &Store{db: con, driver: driver}, nil
	case DBPostgreSQL, "postgresql":
		con, err := sql.Open(DBPostgreSQL, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := con.Ping(); err != nil {
			return nil, err
		}
		con.SetMaxOpenConns(2)
		con.SetMaxIdleConns(1)
		con.SetConnMaxLifetime(time.Hour)
		return &Store{db: con, driver: DBPostgreSQL}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
}

// Close closes the connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return errNilDB
	}
	return s.db.Close()
}

// CreateSchema creates the candles table when missing
func (s *Store) CreateSchema(ctx context.Context) error {
	schema := sqliteSchema
	if s.driver == DBPostgreSQL {
		schema = postgresSchema
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// rebind converts ? placeholders to $n for postgres
func (s *Store) rebind(query string) string {
	if s.driver != DBPostgreSQL {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *Store) timeArg(t time.Time) any {
	if s.driver == DBSQLite3 {
		return t.UTC().Format(sqliteTimeFormat)
	}
	return t.UTC()
}

// Insert stores bars in one transaction, replacing any bar with the same
// key. Either every bar is stored or none is
func (s *Store) Insert(ctx context.Context, bars ...market.Bar) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errNilDB
	}
	for x := range bars {
		if err := bars[x].Validate(); err != nil {
			return 0, err
		}
	}
	query := `INSERT INTO candles (symbol, venue, granularity, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, venue, granularity, timestamp) DO UPDATE SET
		open = excluded.open, high = excluded.high, low = excluded.low, close = excluded.close, volume = excluded.volume`
	query = s.rebind(query)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	var inserted int64
	for x := range bars {
		b := &bars[x]
		volume := null.NewString(b.Volume.String(), !b.Volume.IsZero())
		_, err := tx.ExecContext(ctx, query,
			b.Instrument.Symbol,
			b.Instrument.Venue,
			b.Interval.Granularity(),
			s.timeArg(b.Start),
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			volume,
		)
		if err != nil {
			if errRB := tx.Rollback(); errRB != nil {
				log.Errorln(log.Feed, errRB)
			}
			return 0, fmt.Errorf("inserting %s bar %v: %w", b.Instrument.ID(), b.Start, err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Series returns the bars matching q in ascending time order. A bar's end
// time is its open time plus the interval
func (s *Store) Series(ctx context.Context, q *Query) ([]market.Bar, error) {
	if s == nil || s.db == nil {
		return nil, errNilDB
	}
	if q == nil || q.Instrument == nil || q.Interval <= 0 || q.Start.IsZero() || q.End.IsZero() {
		return nil, errInvalidInput
	}
	query := s.rebind(`SELECT timestamp, open, high, low, close, volume FROM candles
		WHERE symbol = ? AND venue = ? AND granularity = ? AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp`)
	rows, err := s.db.QueryContext(ctx, query,
		q.Instrument.Symbol,
		q.Instrument.Venue,
		q.Interval.Granularity(),
		s.timeArg(q.Start),
		s.timeArg(q.End),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Bar
	for rows.Next() {
		var (
			ts                    any
			open, high, low, last string
			volume                null.String
		)
		if err := rows.Scan(&ts, &open, &high, &low, &last, &volume); err != nil {
			return nil, err
		}
		start, err := s.parseTime(ts)
		if err != nil {
			return nil, err
		}
		b := market.Bar{
			Instrument: q.Instrument,
			Interval:   q.Interval,
			Start:      start,
			End:        start.Add(q.Interval.Duration()),
		}
		for _, f := range []struct {
			dst *decimal.Decimal
			src string
		}{{&b.Open, open}, {&b.High, high}, {&b.Low, low}, {&b.Close, last}} {
			if *f.dst, err = decimal.NewFromString(f.src); err != nil {
				return nil, fmt.Errorf("%s bar %v: %w", q.Instrument.ID(), start, err)
			}
		}
		if volume.Valid {
			if b.Volume, err = decimal.NewFromString(volume.String); err != nil {
				return nil, fmt.Errorf("%s bar %v volume: %w", q.Instrument.ID(), start, err)
			}
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s %s %v-%v", ErrNoCandleDataFound, q.Instrument.ID(), q.Interval, q.Start, q.End)
	}
	return out, nil
}

func (s *Store) parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return time.Parse(sqliteTimeFormat, t)
	case []byte:
		return time.Parse(sqliteTimeFormat, string(t))
	}
	return time.Time{}, fmt.Errorf("%w: unexpected timestamp type %T", common.ErrTypeAssertFailure, v)
}

// Feed loads the bars matching q into a finite feed
func (s *Store) Feed(ctx context.Context, name string, q *Query) (*feed.Historical, error) {
	bars, err := s.Series(ctx, q)
	if err != nil {
		return nil, err
	}
	events := make([]event.Event, 0, len(bars))
	for x := range bars {
		e, err := bars[x].Event(time.Time{})
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	log.Debugf(log.Feed, "%s loaded %d %s %s bars", name, len(events), q.Instrument.ID(), q.Interval)
	return feed.NewHistorical(name, events)
}
