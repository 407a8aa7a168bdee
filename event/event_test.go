package event

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func timerEvent(t *testing.T, name string, et, rt time.Time) Event {
	t.Helper()
	e, err := New(Timer{Name: name}, et, rt)
	require.NoError(t, err)
	return e
}

func TestNew(t *testing.T) {
	t.Parallel()
	_, err := New(nil, base, base)
	assert.ErrorIs(t, err, ErrNilPayload)

	_, err = New(Timer{}, time.Time{}, base)
	assert.ErrorIs(t, err, ErrZeroTime)

	e, err := New(Timer{Name: "open"}, base, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, base, e.ReceivedTime(), "zero received time must default to event time")
	assert.Equal(t, TimerKind, e.Kind())
	assert.False(t, e.IsZero())
	assert.True(t, Event{}.IsZero())
	assert.Equal(t, UnknownKind, Event{}.Kind())
}

func TestCompare(t *testing.T) {
	t.Parallel()
	a := timerEvent(t, "a", base, base.Add(time.Second))
	b := timerEvent(t, "b", base, base.Add(2*time.Second))
	c := timerEvent(t, "c", base.Add(time.Millisecond), base)

	assert.Equal(t, -1, Compare(a, b), "received time must break event time ties")
	assert.Equal(t, 1, Compare(c, b), "event time must dominate received time")
	assert.Equal(t, 0, Compare(a, a))
	assert.True(t, Less(a, c))

	events := []Event{c, b, a}
	slices.SortStableFunc(events, Compare)
	assert.Equal(t, []Event{a, b, c}, events)
}

func TestTopic(t *testing.T) {
	t.Parallel()
	e := timerEvent(t, "rebalance", base, base)
	assert.Equal(t, "timer::NONE::ONCE::rebalance", e.Topic())

	p, err := New(Timer{Name: "tick", Periodic: true, Sequence: 3}, base, base)
	require.NoError(t, err)
	assert.Equal(t, "timer::NONE::PERIODIC::tick", p.Topic())
	assert.Empty(t, Event{}.Topic())
}

func TestKindFromString(t *testing.T) {
	t.Parallel()
	for k := BarKind; k <= FillKind; k++ {
		got, err := KindFromString(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := KindFromString("candle")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, "unknown", Kind(200).String())
}
