package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var granularityUnits = []struct {
	name string
	d    time.Duration
}{
	{"DAY", 24 * time.Hour},
	{"HOUR", time.Hour},
	{"MINUTE", time.Minute},
	{"SECOND", time.Second},
	{"MILLISECOND", time.Millisecond},
}

// Duration returns interval casted as time.Duration for compatibility
func (i Interval) Duration() time.Duration {
	return time.Duration(i)
}

// String returns the granularity form of the interval
func (i Interval) String() string {
	return i.Granularity()
}

// Granularity returns the topic segment for the interval, e.g. 5-MINUTE
func (i Interval) Granularity() string {
	if i <= 0 {
		return ""
	}
	for _, u := range granularityUnits {
		if i.Duration()%u.d == 0 {
			return strconv.FormatInt(int64(i.Duration()/u.d), 10) + "-" + u.name
		}
	}
	return i.Duration().String()
}

// ParseGranularity converts a topic segment such as 5-MINUTE into an Interval
func ParseGranularity(s string) (Interval, error) {
	count, unit, ok := strings.Cut(strings.ToUpper(s), "-")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}
	n, err := strconv.ParseInt(count, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}
	unit = strings.TrimSuffix(unit, "S")
	for _, u := range granularityUnits {
		if u.name == unit {
			return Interval(time.Duration(n) * u.d), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown unit in %q", ErrInvalidGranularity, s)
}
