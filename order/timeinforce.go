package order

import (
	"errors"
	"fmt"
	"strings"
)

// var error definitions
var (
	ErrInvalidTimeInForce     = errors.New("invalid time in force value provided")
	ErrUnsupportedTimeInForce = errors.New("unsupported time in force value")
)

// TimeInForce enforces a standard for time-in-force values across the code base.
type TimeInForce uint8

// TimeInForce types
const (
	UnknownTIF     TimeInForce = 0
	GoodTillCancel TimeInForce = 1 << iota
	GoodTillDay
	GoodTillDate
	FillOrKill
	ImmediateOrCancel

	supportedTimeInForceFlag = GoodTillCancel | GoodTillDay | GoodTillDate | FillOrKill | ImmediateOrCancel
)

// time-in-force string representations
const (
	gtcStr = "GTC"
	dayStr = "DAY"
	gtdStr = "GTD"
	fokStr = "FOK"
	iocStr = "IOC"
)

// Is checks to see if the enum contains the flag
func (t TimeInForce) Is(in TimeInForce) bool {
	return in != 0 && t&in == in
}

// StringToTimeInForce converts time in force string value to TimeInForce instance.
func StringToTimeInForce(timeInForce string) (TimeInForce, error) {
	var result TimeInForce
	timeInForce = strings.ToUpper(strings.TrimSpace(timeInForce))
	switch timeInForce {
	case "IMMEDIATEORCANCEL", "IMMEDIATE_OR_CANCEL", iocStr:
		result = ImmediateOrCancel
	case "GOODTILLCANCEL", "GOOD_TIL_CANCELLED", "GOOD_TILL_CANCELLED", "GOOD_TILL_CANCELED", gtcStr:
		result = GoodTillCancel
	case "GOODTILLDAY", "GOOD_TIL_DAY", "GOOD_TILL_DAY", dayStr:
		result = GoodTillDay
	case "GOODTILLDATE", "GOOD_TILL_DATE", "GOODTILLTIME", "GOOD_TIL_TIME", "GTT", gtdStr:
		result = GoodTillDate
	case "FILLORKILL", "FILL_OR_KILL", fokStr:
		result = FillOrKill
	case "POSTONLY", "POST_ONLY", "GTX":
		return UnknownTIF, fmt.Errorf("%w: tif=%s", ErrUnsupportedTimeInForce, timeInForce)
	}
	if result == UnknownTIF && timeInForce != "" {
		return UnknownTIF, fmt.Errorf("%w: tif=%s", ErrInvalidTimeInForce, timeInForce)
	}
	return result, nil
}

// IsValid returns whether or not the supplied time in force value is valid.
// Exactly one supported flag may be set, or none for the default
func (t TimeInForce) IsValid() bool {
	hasTwoBitsSet := t&(t-1) != 0
	if hasTwoBitsSet {
		return false
	}
	return t == UnknownTIF || supportedTimeInForceFlag&t == t
}

// IsImmediate reports whether the order must be resolved on the first
// snapshot it can match against
func (t TimeInForce) IsImmediate() bool {
	return t.Is(ImmediateOrCancel) || t.Is(FillOrKill)
}

// String implements the stringer interface.
func (t TimeInForce) String() string {
	switch t {
	case UnknownTIF:
		return ""
	case ImmediateOrCancel:
		return iocStr
	case GoodTillCancel:
		return gtcStr
	case GoodTillDay:
		return dayStr
	case GoodTillDate:
		return gtdStr
	case FillOrKill:
		return fokStr
	}
	return "UNKNOWN"
}

// UnmarshalJSON deserializes a string data into TimeInForce instance.
func (t *TimeInForce) UnmarshalJSON(data []byte) error {
	tif, err := StringToTimeInForce(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*t = tif
	return nil
}

// MarshalJSON returns the JSON-encoded order time-in-force value
func (t TimeInForce) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}
