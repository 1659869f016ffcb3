// Package sun computes sunrise, solar noon and sunset for a coordinate
// and calendar date, using the NOAA approximate solar-position formulas
// (the ones distributed in the NOAA sunrise/sunset spreadsheets).
//
// Day numbering follows the spreadsheet convention: day 1 is 1900-01-01.
// All functions are pure and safe for concurrent use.
package sun

import (
	"math"
	"time"
)

// Times holds the computed solar times of day for one date.
type Times struct {
	Sunrise Clock
	Noon    Clock
	Sunset  Clock
}

// Coordinates is a geographic position in decimal degrees,
// north and east positive.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Sun computes solar times for a fixed location.
type Sun struct {
	Lat float64
	Lon float64
}

// Times returns sunrise, solar noon and sunset for the calendar date of t.
// The UTC offset (including DST) is taken from t's own time zone at local
// noon of that date.
func (s Sun) Times(t time.Time) Times {
	return Compute(s.Lat, s.Lon, t)
}

// Sunrise returns the sunrise time of day for the calendar date of t.
func (s Sun) Sunrise(t time.Time) Clock { return s.Times(t).Sunrise }

// Sunset returns the sunset time of day for the calendar date of t.
func (s Sun) Sunset(t time.Time) Clock { return s.Times(t).Sunset }

// SolarNoon returns the solar noon time of day for the calendar date of t.
func (s Sun) SolarNoon(t time.Time) Clock { return s.Times(t).Noon }

// Up reports whether the sun is above the horizon at t,
// with strict bounds on both ends.
func (s Sun) Up(t time.Time) bool {
	times := s.Times(t)
	c := ClockOf(t)
	return c.After(times.Sunrise) && c.Before(times.Sunset)
}

// Compute calculates solar times for the calendar date of t. The UTC
// offset is read from t's location at local noon, so DST transitions on
// the date itself are honored.
func Compute(lat, lon float64, t time.Time) Times {
	noon := time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, t.Location())
	_, offsetSec := noon.Zone()
	return ComputeWithOffset(lat, lon, t, float64(offsetSec)/3600.0)
}

// spreadsheetEpoch is the day before 1900-01-01, making 1900-01-01 day 1
// to match the NOAA spreadsheet day numbering.
var spreadsheetEpoch = time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC)

// ComputeWithOffset is Compute with an explicit UTC offset in hours
// (east positive).
//
// At latitudes and dates where the sun never rises or never sets, the
// hour-angle cosine leaves [-1, 1]; it is clamped, which degenerates
// sunrise and sunset to coincident times instead of failing. Callers
// treating the daylight window as a strict interval then see an empty
// window (always-down convention).
func ComputeWithOffset(lat, lon float64, t time.Time, utcOffsetHours float64) Times {
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	day := float64(int(date.Sub(spreadsheetEpoch).Hours() / 24.0))

	offset := utcOffsetHours
	timeFrac := 0.5 // evaluate at local noon

	jday := day + 2415018.5 + timeFrac - offset/24.0
	jcent := (jday - 2451545.0) / 36525.0

	manom := 357.52911 + jcent*(35999.05029-0.0001537*jcent)
	mlong := 280.46646 + mod360(jcent*(36000.76983+jcent*0.0003032))
	eccent := 0.016708634 - jcent*(0.000042037+0.0001537*jcent)
	mobliq := 23.0 + (26.0+(21.448-jcent*(46.815+jcent*(0.00059-jcent*0.001813)))/60.0)/60.0
	obliq := mobliq + 0.00256*math.Cos(rad(125.04-1934.136*jcent))
	vary := math.Tan(rad(obliq/2)) * math.Tan(rad(obliq/2))
	seqcent := math.Sin(rad(manom))*(1.914602-jcent*(0.004817+0.000014*jcent)) +
		math.Sin(rad(2*manom))*(0.019993-0.000101*jcent) +
		math.Sin(rad(3*manom))*0.000289
	struelong := mlong + seqcent
	sapplong := struelong - 0.00569 - 0.00478*math.Sin(rad(125.04-1934.136*jcent))
	declination := deg(math.Asin(math.Sin(rad(obliq)) * math.Sin(rad(sapplong))))

	eqtime := 4 * deg(vary*math.Sin(2*rad(mlong))-
		2*eccent*math.Sin(rad(manom))+
		4*eccent*vary*math.Sin(rad(manom))*math.Cos(2*rad(mlong))-
		0.5*vary*vary*math.Sin(4*rad(mlong))-
		1.25*eccent*eccent*math.Sin(2*rad(manom)))

	// 90.833 degrees zenith: horizon dip plus atmospheric refraction.
	cosHA := math.Cos(rad(90.833))/(math.Cos(rad(lat))*math.Cos(rad(declination))) -
		math.Tan(rad(lat))*math.Tan(rad(declination))
	if cosHA > 1 {
		cosHA = 1
	} else if cosHA < -1 {
		cosHA = -1
	}
	hourangle := deg(math.Acos(cosHA))

	solarnoon := (720.0 - 4.0*lon - eqtime + offset*60.0) / 1440.0
	sunrise := solarnoon - hourangle*4.0/1440.0
	sunset := solarnoon + hourangle*4.0/1440.0

	return Times{
		Sunrise: clockFromDayFraction(sunrise),
		Noon:    clockFromDayFraction(solarnoon),
		Sunset:  clockFromDayFraction(sunset),
	}
}

func rad(d float64) float64 { return d * math.Pi / 180.0 }

func deg(r float64) float64 { return r * 180.0 / math.Pi }

// mod360 normalizes to [0, 360).
func mod360(v float64) float64 {
	m := math.Mod(v, 360.0)
	if m < 0 {
		m += 360.0
	}
	return m
}
