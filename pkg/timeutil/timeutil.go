// Package timeutil provides calendar helpers for event schedules.
// Events run in their own time zone, so every day-level helper takes an
// explicit *time.Location instead of assuming the server's.
package timeutil

import "time"

// In converts t to loc, treating a nil location as UTC.
func In(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc)
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = In(t, loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsSameDay reports whether t1 and t2 fall on the same calendar day.
// Both instants are compared in t1's location.
func IsSameDay(t1, t2 time.Time) bool {
	t2 = t2.In(t1.Location())
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// RangesIntersect reports whether [aStart, aEnd) and [bStart, bEnd) share
// any instant. Touching ranges do not intersect.
func RangesIntersect(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FormatRelative returns a short human-readable distance from now, e.g.
// "in 15m" or "2h ago", for log lines.
func FormatRelative(t, now time.Time) string {
	d := t.Sub(now)
	if d >= 0 {
		return "in " + roundDuration(d).String()
	}
	return roundDuration(-d).String() + " ago"
}

func roundDuration(d time.Duration) time.Duration {
	switch {
	case d >= time.Hour:
		return d.Round(time.Minute)
	case d >= time.Minute:
		return d.Round(time.Second)
	default:
		return d.Round(time.Millisecond)
	}
}
