// Package kst converts instants to Korea Standard Time and derives the
// calendar keys (date, month, week-of-month) used to group voice sessions.
package kst

import (
	"fmt"
	"time"
)

// Location is the display timezone. Korea has no DST, so a fixed zone is exact.
var Location = time.FixedZone("KST", 9*3600)

const (
	// DateLayout is the fixed-width date key stored on every session.
	// Zero padding keeps string comparison equal to date comparison.
	DateLayout = "2006-01-02"

	// DisplayLayout renders an instant for people.
	DisplayLayout = "2006년 01월 02일 15시 04분 05초"

	// Invalid is shown in place of a timestamp that is missing or unparseable.
	Invalid = "❌ 잘못된 시간"
)

// In converts t to KST.
func In(t time.Time) time.Time {
	return t.In(Location)
}

// Date returns the KST date key of t.
func Date(t time.Time) string {
	return In(t).Format(DateLayout)
}

// Format renders t in KST, or Invalid for the zero time.
func Format(t time.Time) string {
	if t.IsZero() {
		return Invalid
	}
	return In(t).Format(DisplayLayout)
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15-04-05",
}

// ParseInstant accepts RFC 3339 timestamps and the two legacy layouts
// found in older profile documents. Timestamps without an offset are UTC.
func ParseInstant(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// firstWeekday returns the weekday of the 1st of the month, Monday = 0.
func firstWeekday(year int, month time.Month) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, Location)
	return (int(first.Weekday()) + 6) % 7
}

// WeekOfMonth returns the week index of day within its month. Week 1
// starts on the 1st whatever weekday that is; later weeks start on Mondays.
func WeekOfMonth(year int, month time.Month, day int) int {
	return (day+firstWeekday(year, month)-1)/7 + 1
}

// WeekOf returns the KST week-of-month of t.
func WeekOf(t time.Time) int {
	k := In(t)
	return WeekOfMonth(k.Year(), k.Month(), k.Day())
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, Location).Day()
}

// WeekRange returns the first and last day of the month that belong to
// week, clamped to the month.
func WeekRange(year int, month time.Month, week int) (start, end int) {
	start = (week-1)*7 - firstWeekday(year, month) + 1
	end = start + 6
	if start < 1 {
		start = 1
	}
	if last := DaysIn(year, month); end > last {
		end = last
	}
	return start, end
}

// MonthsBefore returns the KST calendar date n months before t. The day is
// clamped to the target month, so 31 March minus one month is 28 or 29
// February.
func MonthsBefore(t time.Time, n int) time.Time {
	k := In(t)
	first := time.Date(k.Year(), k.Month()-time.Month(n), 1, 0, 0, 0, 0, Location)
	day := k.Day()
	if last := DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, Location)
}

// RetentionCutoff returns the date key of the first day of the month
// keepMonths-1 months before now's KST month. Sessions dated before it
// fall outside the retention window.
func RetentionCutoff(now time.Time, keepMonths int) string {
	if keepMonths < 1 {
		keepMonths = 1
	}
	k := In(now)
	cutoff := time.Date(k.Year(), k.Month()-time.Month(keepMonths-1), 1, 0, 0, 0, 0, Location)
	return cutoff.Format(DateLayout)
}

// WeekHeader is the "current week" line shown above leaderboards.
func WeekHeader(now time.Time) string {
	k := In(now)
	return fmt.Sprintf("이번 주차: %d년 %d월 %d주차", k.Year(), int(k.Month()), WeekOf(now))
}
