package sun

import (
	"fmt"
	"time"
)

// Clock is a time of day with second resolution, independent of any date.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ClockOf extracts the time of day from t.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// seconds returns the clock as seconds since midnight.
func (c Clock) seconds() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

// Before reports whether c is strictly earlier in the day than o.
func (c Clock) Before(o Clock) bool {
	return c.seconds() < o.seconds()
}

// After reports whether c is strictly later in the day than o.
func (c Clock) After(o Clock) bool {
	return c.seconds() > o.seconds()
}

// Equal reports whether c and o are the same time of day.
func (c Clock) Equal(o Clock) bool {
	return c.seconds() == o.seconds()
}

// String formats the clock as HH:MM:SS.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// clockFromDayFraction converts a fraction of a day (noon = 0.5) to a Clock.
// Values outside [0, 1) wrap around midnight.
func clockFromDayFraction(f float64) Clock {
	f = f - float64(int(f))
	if f < 0 {
		f++
	}

	total := int(f * 86400.0)
	return Clock{
		Hour:   total / 3600,
		Minute: (total % 3600) / 60,
		Second: total % 60,
	}
}
