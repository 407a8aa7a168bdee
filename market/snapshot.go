package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/common"
	"github.com/tradeloop/tradeloop/event"
)

// ParseBarConversion converts a config value into a BarConversion
func ParseBarConversion(s string) (BarConversion, error) {
	switch strings.ToLower(s) {
	case "", "ohlc":
		return OHLCPath, nil
	case "close", "close-only":
		return CloseOnly, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidConversion, s)
}

// String implements the stringer interface
func (b BarConversion) String() string {
	if b == CloseOnly {
		return "close"
	}
	return "ohlc"
}

// ToSnapshots converts a market event into the order book snapshots used for
// matching, in path order. Non market events return no snapshots
func ToSnapshots(e event.Event, mode BarConversion) ([]OrderBook, error) {
	switch p := e.Payload().(type) {
	case Bar:
		return barSnapshots(&p, mode)
	case *Bar:
		return barSnapshots(p, mode)
	case Trade:
		return []OrderBook{tradeSnapshot(&p)}, nil
	case *Trade:
		return []OrderBook{tradeSnapshot(p)}, nil
	case Quote:
		return []OrderBook{quoteSnapshot(&p)}, nil
	case *Quote:
		return []OrderBook{quoteSnapshot(p)}, nil
	case OrderBook:
		return []OrderBook{p}, nil
	case *OrderBook:
		return []OrderBook{*p}, nil
	case nil:
		return nil, common.ErrNilEvent
	}
	return nil, nil
}

// barPath returns the prices a bar is assumed to have travelled through.
// An up bar is taken to have dipped before rallying and a down bar to have
// rallied before falling
func barPath(b *Bar, mode BarConversion) []decimal.Decimal {
	if mode == CloseOnly {
		return []decimal.Decimal{b.Close}
	}
	var path []decimal.Decimal
	if b.Close.GreaterThanOrEqual(b.Open) {
		path = []decimal.Decimal{b.Open, b.Low, b.High, b.Close}
	} else {
		path = []decimal.Decimal{b.Open, b.High, b.Low, b.Close}
	}
	deduped := path[:1]
	for _, p := range path[1:] {
		if !p.Equal(deduped[len(deduped)-1]) {
			deduped = append(deduped, p)
		}
	}
	return deduped
}

func barSnapshots(b *Bar, mode BarConversion) ([]OrderBook, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	path := barPath(b, mode)
	shares := splitVolume(b.Volume, len(path))
	books := make([]OrderBook, len(path))
	for x := range path {
		books[x] = syntheticBook(b.Instrument, path[x], shares[x])
		books[x].Time = b.End
	}
	return books, nil
}

// splitVolume divides volume into n shares truncated to barVolumePlaces. The
// last share takes the remainder so the shares sum to volume exactly
func splitVolume(volume decimal.Decimal, n int) []decimal.Decimal {
	shares := make([]decimal.Decimal, n)
	share := volume.Div(decimal.NewFromInt(int64(n))).Truncate(barVolumePlaces)
	rest := volume
	for x := 0; x < n-1; x++ {
		shares[x] = share
		rest = rest.Sub(share)
	}
	shares[n-1] = rest
	return shares
}

// tradeSnapshot prices both sides at the print. The sides share the print
// size, so buys and sells together never trade more than was printed
func tradeSnapshot(t *Trade) OrderBook {
	ob := syntheticBook(t.Instrument, t.Price, t.Size)
	ob.Time = t.Time
	return ob
}

func quoteSnapshot(q *Quote) OrderBook {
	return OrderBook{
		Instrument: q.Instrument,
		Time:       q.Time,
		Bids:       []Level{{Price: q.Bid, Volume: q.BidSize}},
		Asks:       []Level{{Price: q.Ask, Volume: q.AskSize}},
	}
}

func syntheticBook(inst *Instrument, price, volume decimal.Decimal) OrderBook {
	return OrderBook{
		Instrument:  inst,
		Bids:        []Level{{Price: price, Volume: volume}},
		Asks:        []Level{{Price: price, Volume: volume}},
		SharedDepth: true,
	}
}
