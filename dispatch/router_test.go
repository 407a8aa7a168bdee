package dispatch

import (
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeloop/tradeloop/common"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/market"
)

func barEvent(t *testing.T, interval market.Interval) event.Event {
	t.Helper()
	inst, err := market.NewInstrument("EURUSD", "SIM", "USD", decimal.RequireFromString("0.00001"))
	require.NoError(t, err)
	end := time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)
	one := decimal.NewFromInt(1)
	e, err := market.Bar{Instrument: inst, Interval: interval, Start: end.Add(-interval.Duration()), End: end, Open: one, High: one, Low: one, Close: one}.Event(time.Time{})
	require.NoError(t, err)
	return e
}

func TestParseTopic(t *testing.T) {
	t.Parallel()
	_, err := ParseTopic("")
	assert.ErrorIs(t, err, ErrInvalidTopic)
	_, err = ParseTopic("bar::::x")
	assert.ErrorIs(t, err, ErrInvalidTopic)

	p, err := ParseTopic("bar::*::5-MINUTE::*")
	require.NoError(t, err)
	assert.Equal(t, "bar::*::5-MINUTE::*", p.String())
	for topic, want := range map[string]bool{
		"bar::EURUSD.SIM::5-MINUTE::LAST": true,
		"bar::EURUSD.SIM::1-MINUTE::LAST": false,
		"trade::EURUSD.SIM::5-MINUTE::X":  false,
		"bar::EURUSD.SIM::5-MINUTE":       false,
	} {
		tp, err := ParseTopic(topic)
		require.NoError(t, err)
		assert.Equalf(t, want, p.Matches(tp), "%s", topic)
	}
}

func TestPublishOrder(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	var got []string
	record := func(name string) Handler {
		return func(event.Event) error {
			got = append(got, name)
			return nil
		}
	}
	_, err := r.Subscribe(All, record("low-first"), 0)
	require.NoError(t, err)
	_, err = r.Subscribe("bar::*::5-MINUTE::*", record("high"), 10)
	require.NoError(t, err)
	_, err = r.Subscribe("bar::*::*::LAST", record("low-second"), 0)
	require.NoError(t, err)
	_, err = r.Subscribe("bar::*::1-MINUTE::*", record("other-granularity"), 100)
	require.NoError(t, err)

	n, err := r.PublishEvent(barEvent(t, market.FiveMin))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"high", "low-first", "low-second"}, got)
	assert.Equal(t, 3, r.Subscribers("bar::EURUSD.SIM::5-MINUTE::LAST"))
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	calls := 0
	id, err := r.Subscribe(All, func(event.Event) error { calls++; return nil }, 0)
	require.NoError(t, err)
	require.NoError(t, r.Unsubscribe(id))
	require.NoError(t, r.Unsubscribe(id), "unsubscribing twice is a no-op")
	require.NoError(t, r.Unsubscribe(uuid.Must(uuid.NewV4())))
	assert.ErrorIs(t, r.Unsubscribe(uuid.Nil), errIDNotSet)

	n, err := r.PublishEvent(barEvent(t, market.OneMin))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, calls)
	assert.Zero(t, r.Len())
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	var second uuid.UUID
	secondCalls := 0
	_, err := r.Subscribe(All, func(event.Event) error {
		return r.Unsubscribe(second)
	}, 1)
	require.NoError(t, err)
	second, err = r.Subscribe(All, func(event.Event) error { secondCalls++; return nil }, 0)
	require.NoError(t, err)

	n, err := r.PublishEvent(barEvent(t, market.OneMin))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, secondCalls)
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()
	var r *Router
	_, err := r.Subscribe(All, func(event.Event) error { return nil }, 0)
	assert.ErrorIs(t, err, errRouterNil)

	r = NewRouter()
	_, err = r.Subscribe(All, nil, 0)
	assert.ErrorIs(t, err, errNilHandler)
	_, err = r.Publish("bar::*::1-MINUTE::LAST", barEvent(t, market.OneMin))
	assert.ErrorIs(t, err, errWildcardTopic)
	_, err = r.Publish("x", event.Event{})
	assert.ErrorIs(t, err, common.ErrNilEvent)

	boom := errors.New("boom")
	after := false
	_, err = r.Subscribe(All, func(event.Event) error { return boom }, 1)
	require.NoError(t, err)
	_, err = r.Subscribe(All, func(event.Event) error { after = true; return nil }, 0)
	require.NoError(t, err)
	n, err := r.PublishEvent(barEvent(t, market.OneMin))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, n)
	assert.True(t, after, "a failing handler must not stop delivery")
}
