package rules

import (
	"time"

	"github.com/tellhaus/masd/internal/sun"
)

// Matches reports whether the event should fire at now, given the
// day's sunrise and sunset. Matching is minute-granular: now's hour
// and minute must equal the trigger's target exactly. Pure function.
func (e *Event) Matches(now time.Time, sunrise, sunset sun.Clock) bool {
	var match bool
	switch e.Trigger.Kind {
	case TriggerFixed:
		match = e.Trigger.Hour == now.Hour() && e.Trigger.Minute == now.Minute()
	case TriggerSunrise:
		match = e.matchWithOffset(now, sunrise)
	case TriggerSunset:
		match = e.matchWithOffset(now, sunset)
	}
	if !match {
		return false
	}

	if !e.Days.Contains(now.Weekday()) {
		return false
	}

	switch e.Restriction {
	case RestrictSunUp:
		c := sun.ClockOf(now)
		return c.After(sunrise) && c.Before(sunset)
	case RestrictSunDown:
		c := sun.ClockOf(now)
		return c.Before(sunrise) || c.After(sunset)
	}
	return true
}

// matchWithOffset anchors the trigger at the given time of day on now's
// date, applies the offset, and compares only the resulting hour and
// minute against now. An offset that pushes the target across midnight
// is not carried into a day change: the comparison stays against now's
// own hour and minute.
func (e *Event) matchWithOffset(now time.Time, anchor sun.Clock) bool {
	target := time.Date(now.Year(), now.Month(), now.Day(),
		anchor.Hour, anchor.Minute, 0, 0, now.Location()).
		Add(time.Duration(e.Trigger.Offset) * time.Minute)
	return now.Hour() == target.Hour() && now.Minute() == target.Minute()
}
