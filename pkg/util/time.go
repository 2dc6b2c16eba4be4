package util

import (
	"time"
)

// TruncateToHour returns the start of the hour containing t as observed in loc
func TruncateToHour(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	offset := time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())

	// subtracting keeps the repeated hour of a DST fall back apart from the first one
	return local.Add(-offset)
}

// TruncateToDay returns local midnight of the calendar day containing t in loc
func TruncateToDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)

	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func SameDate(a time.Time, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
