package timetable

import "fmt"

// Time is minutes since midnight on the service day. Values above 1440
// are valid and represent a trip running past midnight (e.g. 25:30 for
// a night bus departing at 01:30 the following calendar day).
type Time int32

// TimeInfinity is strictly greater than any real time value a valid
// timetable can produce; used as the "unreached" sentinel throughout
// the router and result tables.
const TimeInfinity Time = 1<<31 - 1

// TimeOrigin is the smallest representable time, the zero value of the
// minute-resolution clock; it is the default lower bound passed to
// earliest_trip when no "after" constraint applies.
const TimeOrigin Time = 0

// Duration is a non-negative count of seconds. Addition of a Duration
// to a Time happens in seconds, then snaps to minute resolution with
// half-up rounding, per the design note on avoiding overflow by always
// computing in 64-bit seconds before converting back to minutes.
type Duration int64

// Seconds returns d as a plain integer count of seconds.
func (d Duration) Seconds() int64 { return int64(d) }

// DurationFromSeconds builds a Duration from a count of seconds.
func DurationFromSeconds(s int64) Duration { return Duration(s) }

// Add returns t shifted forward by d, rounded to the nearest minute
// (ties rounding up). Adding to TimeInfinity is a no-op: infinity plus
// anything is still infinity.
func (t Time) Add(d Duration) Time {
	if t == TimeInfinity {
		return TimeInfinity
	}
	totalSeconds := int64(t)*60 + int64(d)
	minutes := (totalSeconds + 30) / 60
	if minutes > int64(TimeInfinity) {
		return TimeInfinity
	}
	return Time(minutes)
}

// Sub returns the Duration between t and earlier, assuming t >= earlier.
func (t Time) Sub(earlier Time) Duration {
	return Duration(int64(t)-int64(earlier)) * 60
}

func (t Time) Before(other Time) bool { return t < other }
func (t Time) After(other Time) bool  { return t > other }
func (t Time) Equal(other Time) bool  { return t == other }

func MinTime(a, b Time) Time {
	if a < b {
		return a
	}
	return b
}

func MaxTime(a, b Time) Time {
	if a > b {
		return a
	}
	return b
}

// String renders t as HH:MM, allowing hours above 23 for next-day
// overflow (e.g. "25:30").
func (t Time) String() string {
	if t == TimeInfinity {
		return "infinity"
	}
	h := int(t) / 60
	m := int(t) % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}
