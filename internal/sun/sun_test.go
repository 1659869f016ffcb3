package sun

import (
	"math"
	"testing"
	"time"
)

var (
	cet  = time.FixedZone("CET", 1*3600)
	cest = time.FixedZone("CEST", 2*3600)
)

// Reference values for Stockholm (59.20N, 18.3E) from
// www.sunset-and-sunrise.com, the same table the original
// implementation was validated against.
func TestStockholmSunriseSunset(t *testing.T) {
	const tolerance = 6 * time.Minute

	tests := []struct {
		month, day         int
		tz                 *time.Location
		sunriseH, sunriseM int
		sunsetH, sunsetM   int
	}{
		{1, 1, cet, 8, 43, 14, 59},
		{1, 17, cet, 8, 26, 15, 29},
		{2, 1, cet, 7, 56, 16, 6},
		{2, 21, cet, 7, 10, 16, 51},
		{3, 15, cet, 6, 2, 17, 50},
		{3, 29, cet, 5, 21, 18, 23},
		{3, 30, cest, 6, 18, 19, 26}, // DST starts
		{4, 15, cest, 5, 31, 20, 4},
		{5, 15, cest, 4, 13, 21, 15},
		{6, 15, cest, 3, 30, 22, 5},
		{7, 15, cest, 3, 58, 21, 49},
		{8, 15, cest, 5, 6, 20, 37},
		{9, 15, cest, 6, 17, 19, 8},
		{10, 15, cest, 7, 26, 17, 40},
		{10, 25, cest, 7, 50, 17, 12},
		{10, 26, cet, 6, 53, 16, 9}, // DST ends
		{11, 15, cet, 7, 42, 15, 22},
		{12, 15, cet, 8, 38, 14, 47},
	}

	s := Sun{Lat: 59.20, Lon: 18.3}
	for _, tc := range tests {
		date := time.Date(2014, time.Month(tc.month), tc.day, 12, 0, 0, 0, tc.tz)
		times := s.Times(date)

		if d := clockDiff(times.Sunrise, Clock{Hour: tc.sunriseH, Minute: tc.sunriseM}); d > tolerance {
			t.Errorf("2014-%02d-%02d sunrise = %v, want %02d:%02d (off by %v)",
				tc.month, tc.day, times.Sunrise, tc.sunriseH, tc.sunriseM, d)
		}
		if d := clockDiff(times.Sunset, Clock{Hour: tc.sunsetH, Minute: tc.sunsetM}); d > tolerance {
			t.Errorf("2014-%02d-%02d sunset = %v, want %02d:%02d (off by %v)",
				tc.month, tc.day, times.Sunset, tc.sunsetH, tc.sunsetM, d)
		}
	}
}

func TestSunUp(t *testing.T) {
	// 2014-03-29 Stockholm: sunrise 05:21, sunset 18:23.
	s := Sun{Lat: 59.20, Lon: 18.3}

	tests := []struct {
		hour, minute int
		want         bool
	}{
		{5, 11, false}, // 10 min before sunrise
		{5, 31, true},  // 10 min after sunrise
		{18, 13, true}, // 10 min before sunset
		{18, 33, false},
	}
	for _, tc := range tests {
		at := time.Date(2014, 3, 29, tc.hour, tc.minute, 0, 0, cet)
		if got := s.Up(at); got != tc.want {
			t.Errorf("Up(%02d:%02d) = %v, want %v", tc.hour, tc.minute, got, tc.want)
		}
	}
}

// Polar night must not panic: the hour-angle cosine is clamped and
// sunrise/sunset collapse onto solar noon.
func TestPolarNight(t *testing.T) {
	times := ComputeWithOffset(79.0, 15.0, time.Date(2014, 12, 21, 12, 0, 0, 0, time.UTC), 1)

	if !times.Sunrise.Equal(times.Sunset) {
		t.Errorf("polar night: sunrise %v != sunset %v, want coincident", times.Sunrise, times.Sunset)
	}
	if !times.Sunrise.Equal(times.Noon) {
		t.Errorf("polar night: sunrise %v should collapse onto noon %v", times.Sunrise, times.Noon)
	}
}

func TestPolarDay(t *testing.T) {
	times := ComputeWithOffset(79.0, 15.0, time.Date(2014, 6, 21, 12, 0, 0, 0, time.UTC), 2)

	// Hour angle clamps to 180 degrees, so both bounds land 12h from noon.
	if !times.Sunrise.Equal(times.Sunset) {
		t.Errorf("polar day: sunrise %v != sunset %v, want coincident", times.Sunrise, times.Sunset)
	}
	d := clockDiff(times.Sunrise, times.Noon)
	if math.Abs(d.Hours()-12) > 0.1 {
		t.Errorf("polar day: sunrise %v should be 12h from noon %v, got %v", times.Sunrise, times.Noon, d)
	}
}

func TestClockComparisons(t *testing.T) {
	a := Clock{Hour: 10, Minute: 0}
	b := Clock{Hour: 10, Minute: 0, Second: 1}

	if !a.Before(b) || b.Before(a) {
		t.Error("Before should order by seconds within the day")
	}
	if !b.After(a) || a.After(b) {
		t.Error("After should order by seconds within the day")
	}
	if !a.Equal(a) || a.Equal(b) {
		t.Error("Equal should compare exact seconds")
	}
	if a.String() != "10:00:00" {
		t.Errorf("String() = %q, want %q", a.String(), "10:00:00")
	}
}

func TestClockFromDayFraction(t *testing.T) {
	tests := []struct {
		frac float64
		want Clock
	}{
		{0.5, Clock{Hour: 12}},
		{0.0, Clock{}},
		{1.25, Clock{Hour: 6}},   // wraps forward
		{-0.25, Clock{Hour: 18}}, // wraps backward
	}
	for _, tc := range tests {
		if got := clockFromDayFraction(tc.frac); !got.Equal(tc.want) {
			t.Errorf("clockFromDayFraction(%v) = %v, want %v", tc.frac, got, tc.want)
		}
	}
}

// clockDiff is the absolute difference of two times of day, ignoring
// wraparound (fine for the ranges tested here).
func clockDiff(a, b Clock) time.Duration {
	d := a.seconds() - b.seconds()
	if d < 0 {
		d = -d
	}
	return time.Duration(d) * time.Second
}
