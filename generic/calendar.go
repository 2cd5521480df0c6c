/*
calendar.go - Business-day arithmetic

PURPOSE:
  Answers the two calendar questions a monthly run asks:
  - How many business days does the month have? (capacity of a worker)
  - On which day will the run be paid? (Nth business day rule)

BUSINESS DAY:
  Monday to Friday, minus the holidays of the configured calendar.

PAYMENT DATE:
  Work done in month M is billed in M+1 and paid on the Nth business day of
  M+2. PredictedPaymentDate receives M+1 (the billing month) and walks the
  month after it. A payment can never be backdated: when the predicted day
  is already behind "now", the processing time is used instead.

MEMOIZATION:
  BusinessDaysInMonth caches its answer per month. A Calendar belongs to a
  single run and is never shared across runs.

SEE ALSO:
  - holidays_br.go: Built-in Brazilian national holidays
  - store/sqlite: Custom holidays persisted per calendar
*/
package generic

import (
	"time"
)

// =============================================================================
// CALENDAR
// =============================================================================

// Calendar counts business days against one named holiday calendar.
type Calendar struct {
	Holidays   HolidayCalendar
	CalendarID string

	businessDays map[string]int
}

// NewCalendar creates a calendar. A nil holiday source means weekends only.
func NewCalendar(holidays HolidayCalendar, calendarID string) *Calendar {
	if holidays == nil {
		holidays = NoHolidays{}
	}
	return &Calendar{
		Holidays:     holidays,
		CalendarID:   calendarID,
		businessDays: make(map[string]int),
	}
}

// IsBusinessDay reports whether the day of t is a business day.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	return DayOf(t).IsBusinessDay(c.Holidays, c.CalendarID)
}

// NthBusinessDay walks forward from the first day of monthStart's month and
// returns the nth business day (n starts at 1). n < 1 is treated as 1.
func (c *Calendar) NthBusinessDay(monthStart time.Time, n int) time.Time {
	if n < 1 {
		n = 1
	}
	day := DayOf(StartOfMonth(monthStart))
	seen := 0
	for {
		if day.IsBusinessDay(c.Holidays, c.CalendarID) {
			seen++
			if seen == n {
				return day.Time
			}
		}
		day = day.AddDays(1)
	}
}

// NextBusinessDay returns the first business day strictly after t's day.
func (c *Calendar) NextBusinessDay(t time.Time) time.Time {
	day := DayOf(t).AddDays(1)
	for !day.IsBusinessDay(c.Holidays, c.CalendarID) {
		day = day.AddDays(1)
	}
	return day.Time
}

// BusinessDaysInMonth counts business days of the month, memoized per month.
func (c *Calendar) BusinessDaysInMonth(month Period) int {
	key := month.Key()
	if n, ok := c.businessDays[key]; ok {
		return n
	}
	count := 0
	end := DayOf(month.End)
	for day := DayOf(month.Start); day.BeforeOrEqual(end); day = day.AddDays(1) {
		if day.IsBusinessDay(c.Holidays, c.CalendarID) {
			count++
		}
	}
	c.businessDays[key] = count
	return count
}

// =============================================================================
// PAYMENT DATE
// =============================================================================

// PaymentDate is the predicted payment day plus the timestamp used to
// compute it, so a whole run shares one consistent "now".
type PaymentDate struct {
	Date        time.Time
	ProcessedAt time.Time
	Clipped     bool // true when the predicted day was already in the past
}

// PredictedPaymentDate returns the payOnBusinessDayN-th business day of the
// month after targetMonth. If that day is before now's day, now is returned
// when it is a business day, otherwise the next business day after now.
func (c *Calendar) PredictedPaymentDate(targetMonth Period, payOnBusinessDayN int, now time.Time) PaymentDate {
	predicted := c.NthBusinessDay(targetMonth.Next().Start, payOnBusinessDayN)
	if !DayOf(predicted).Before(DayOf(now)) {
		return PaymentDate{Date: predicted, ProcessedAt: now}
	}
	date := now
	if !c.IsBusinessDay(now) {
		date = c.NextBusinessDay(now)
	}
	return PaymentDate{Date: date, ProcessedAt: now, Clipped: true}
}
