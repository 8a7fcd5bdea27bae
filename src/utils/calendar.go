package utils

import (
	"courtbook/src/types"
	"time"
)

const DATE_FORMAT = "2006-01-02"

// CustomDayOfWeek maps Sunday=0..Saturday=6 onto Monday=2..Sunday=8.
func CustomDayOfWeek(date time.Time) int {
	wd := int(date.Weekday())
	if wd == 0 {
		return 8
	}
	return wd + 1
}

func IsValidDayCode(code int) bool {
	return code >= 2 && code <= 8
}

// DayName returns the English weekday for a custom day code.
func DayName(code int) string {
	if !IsValidDayCode(code) {
		return "unknown day"
	}
	return time.Weekday((code - 1) % 7).String()
}

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DATE_FORMAT, s, time.UTC)
}

// EachDate calls fn for every calendar date in [from, to], stopping early when fn returns false.
func EachDate(from, to time.Time, fn func(date time.Time) bool) {
	to = DateOf(to)
	for d := DateOf(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		if !fn(d) {
			return
		}
	}
}

// DateRangesIntersect compares inclusive date ranges.
func DateRangesIntersect(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !DateOf(aStart).After(DateOf(bEnd)) && !DateOf(bStart).After(DateOf(aEnd))
}

// TimeRangesIntersect compares half-open [start, end) windows.
func TimeRangesIntersect(aStart, aEnd, bStart, bEnd types.TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

func MaxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func MinDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// At converts a venue-local wall clock on date into a UTC instant.
func At(date time.Time, tod types.TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, int(tod)/60, int(tod)%60, 0, 0, loc).UTC()
}
