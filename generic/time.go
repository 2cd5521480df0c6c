package generic

import (
	"time"
)

// =============================================================================
// TIME POINT - Calendar day abstraction used for business-day arithmetic
// =============================================================================

// TimePoint is a calendar day. Business-day logic never looks below the day.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates an instant to its calendar day, keeping the instant's location.
func DayOf(t time.Time) TimePoint {
	return TimePoint{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())}
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.key() < other.key() }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.key() == other.key() }
func (tp TimePoint) After(other TimePoint) bool         { return tp.key() > other.key() }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// key orders days independently of location.
func (tp TimePoint) key() int {
	return tp.Time.Year()*10000 + int(tp.Time.Month())*100 + tp.Time.Day()
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, n, 0)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsWeekend() bool       { wd := tp.Weekday(); return wd == time.Saturday || wd == time.Sunday }
func (tp TimePoint) IsWorkday() bool       { return !tp.IsWeekend() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string { return tp.Time.Format("2006-01-02") }

// =============================================================================
// HOLIDAY CALENDAR - Named holiday sets
// =============================================================================

// Holiday is a non-business day in a named calendar.
type Holiday struct {
	ID         string
	CalendarID string    // Empty string = applies to every calendar
	Date       TimePoint // The holiday date
	Name       string    // e.g., "Tiradentes", "Natal"
	Recurring  bool      // true = same month/day every year
}

// HolidayCalendar provides holiday lookup functionality.
type HolidayCalendar interface {
	// IsHoliday checks if a date is a holiday in the given calendar.
	IsHoliday(calendarID string, date TimePoint) bool

	// GetHolidays returns all holidays of a calendar in a given year.
	GetHolidays(calendarID string, year int) []Holiday
}

// NoHolidays is a calendar where only weekends are non-business days.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(string, TimePoint) bool  { return false }
func (NoHolidays) GetHolidays(string, int) []Holiday { return nil }

// MultiCalendar treats a day as a holiday when any member calendar does.
type MultiCalendar []HolidayCalendar

func (m MultiCalendar) IsHoliday(calendarID string, date TimePoint) bool {
	for _, c := range m {
		if c != nil && c.IsHoliday(calendarID, date) {
			return true
		}
	}
	return false
}

func (m MultiCalendar) GetHolidays(calendarID string, year int) []Holiday {
	var all []Holiday
	for _, c := range m {
		if c != nil {
			all = append(all, c.GetHolidays(calendarID, year)...)
		}
	}
	return all
}

// IsBusinessDay checks if a date is a working day, considering holidays.
func (tp TimePoint) IsBusinessDay(calendar HolidayCalendar, calendarID string) bool {
	if tp.IsWeekend() {
		return false
	}
	if calendar != nil && calendar.IsHoliday(calendarID, tp) {
		return false
	}
	return true
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// StartOfMonth returns the first instant of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns 23:59:59 of the last day of t's month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, -1).Add(23*time.Hour + 59*time.Minute + 59*time.Second)
}
