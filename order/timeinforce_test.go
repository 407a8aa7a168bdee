package order

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringToTimeInForce(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]TimeInForce{
		"ioc":                 ImmediateOrCancel,
		"GOOD_TILL_CANCELLED": GoodTillCancel,
		"day":                 GoodTillDay,
		"GTD":                 GoodTillDate,
		"gtt":                 GoodTillDate,
		"FILL_OR_KILL":        FillOrKill,
		"":                    UnknownTIF,
	} {
		got, err := StringToTimeInForce(in)
		require.NoErrorf(t, err, "%q must parse", in)
		assert.Equalf(t, want, got, "%q", in)
	}
	_, err := StringToTimeInForce("POSTONLY")
	assert.ErrorIs(t, err, ErrUnsupportedTimeInForce, "known venue values the matching engine cannot honour")
	_, err = StringToTimeInForce("SOMETIMES")
	assert.ErrorIs(t, err, ErrInvalidTimeInForce)
}

func TestTimeInForceIsValid(t *testing.T) {
	t.Parallel()
	for _, tif := range []TimeInForce{UnknownTIF, GoodTillCancel, GoodTillDay, GoodTillDate, FillOrKill, ImmediateOrCancel} {
		assert.Truef(t, tif.IsValid(), "%s must be valid", tif)
	}
	assert.False(t, (FillOrKill | GoodTillCancel).IsValid())
	assert.False(t, TimeInForce(1<<7).IsValid())
	assert.True(t, FillOrKill.IsImmediate())
	assert.False(t, GoodTillDay.IsImmediate())
	assert.Equal(t, "UNKNOWN", (FillOrKill | GoodTillCancel).String())
}

func TestTimeInForceJSON(t *testing.T) {
	t.Parallel()
	var s struct {
		TIF TimeInForce `json:"tif"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"tif":"DAY"}`), &s))
	assert.Equal(t, GoodTillDay, s.TIF)
	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tif":"DAY"}`, string(out))
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"tif":"GTX"}`), &s), ErrInvalidTimeInForce)
}
