// Package civildate provides a calendar-date value for "same day" and
// day-difference comparisons, ignoring time of day.
package civildate

import (
	"fmt"
	"time"
)

// Date is a year/month/day triple with no time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Of reduces t to its calendar date in t's location.
func Of(t time.Time) Date {
	year, month, day := t.Date()
	return Date{Year: year, Month: month, Day: day}
}

func (d Date) Equal(o Date) bool { return d == o }

// DaysSince returns the signed number of calendar days from o to d.
// Day arithmetic is done at midnight UTC so DST transitions cannot
// produce off-by-one results.
func (d Date) DaysSince(o Date) int {
	return int(d.utc().Sub(o.utc()) / (24 * time.Hour))
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	return Of(d.utc().AddDate(0, 0, 1))
}

// StartIn returns midnight of the date in the given location.
func (d Date) StartIn(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}
