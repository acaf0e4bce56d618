// Package session computes CME Globex trading session boundaries. The
// trading day closes at 16:00 Chicago time and the next session end skips
// weekends and US federal holidays.
package session

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"

	"futurescli/pkg/contracts/domain"
)

// CloseHour is the hour (Chicago time) at which the CME trading day ends.
const CloseHour = 16

// Chicago is the exchange location. It falls back to a fixed CST offset
// when the tz database is unavailable.
var Chicago = loadChicago()

var businessCalendar = newBusinessCalendar()

func loadChicago() *time.Location {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		return time.FixedZone("CST", -6*60*60)
	}
	return loc
}

func newBusinessCalendar() *cal.BusinessCalendar {
	c := cal.NewBusinessCalendar()
	c.AddHoliday(us.Holidays...)
	return c
}

// AsChicago converts t to Chicago time.
func AsChicago(t time.Time) time.Time {
	return t.In(Chicago)
}

// AsChicagoAll converts every timestamp in ts.
func AsChicagoAll(ts []time.Time) []time.Time {
	out := make([]time.Time, len(ts))
	for i, t := range ts {
		out[i] = t.In(Chicago)
	}
	return out
}

// End returns 16:00 Chicago on t's calendar date. The date is read in t's
// own location, so 23:00 on the 9th in any zone maps to the 9th's close.
func End(t time.Time) time.Time {
	return EndOn(domain.DateOf(t))
}

// EndOn returns 16:00 Chicago on d.
func EndOn(d domain.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, CloseHour, 0, 0, 0, Chicago)
}

// NextEnd returns the first session end at or after t: the close on t's
// date, or the close of the next US business day once that has passed.
func NextEnd(t time.Time) time.Time {
	end := End(t)
	if t.After(end) {
		return EndOn(AddBusinessDays(domain.DateOf(end), 1))
	}
	return end
}

// IsBusinessDay reports whether d is a weekday that is not a US federal
// holiday.
func IsBusinessDay(d domain.Date) bool {
	return businessCalendar.IsWorkday(d.In(time.UTC))
}

// AddBusinessDays moves n US business days from d. A negative n moves
// backwards. The start date itself is never counted.
func AddBusinessDays(d domain.Date, n int) domain.Date {
	step := 1
	if n < 0 {
		step, n = -1, -n
	}
	for n > 0 {
		d = d.AddDays(step)
		if IsBusinessDay(d) {
			n--
		}
	}
	return d
}

// BusinessDaysBetween lists the business days in [start, end).
func BusinessDaysBetween(start, end domain.Date) []domain.Date {
	var days []domain.Date
	for d := start; d.Before(end); d = d.AddDays(1) {
		if IsBusinessDay(d) {
			days = append(days, d)
		}
	}
	return days
}
