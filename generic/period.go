package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - The calendar month a run is computed for
// =============================================================================

// Period is a calendar month, bounded by its first and last instant.
//
// A run is always computed for a Period: worked time is read for the period
// itself, while the revenue that pays for it is recognized in the next one.
type Period struct {
	Start time.Time
	End   time.Time
}

// MonthOf returns the period containing t.
func MonthOf(t time.Time) Period {
	return Period{Start: StartOfMonth(t), End: EndOfMonth(t)}
}

// ParseMonth parses "2006-01" into a Period in UTC.
func ParseMonth(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if t is within [Start, End].
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Next returns the month following this one.
func (p Period) Next() Period {
	return MonthOf(p.Start.AddDate(0, 1, 0))
}

// Previous returns the month before this one.
func (p Period) Previous() Period {
	return MonthOf(p.Start.AddDate(0, -1, 0))
}

// NextMonthWindow returns the first and last instant of the next month.
func (p Period) NextMonthWindow() (time.Time, time.Time) {
	n := p.Next()
	return n.Start, n.End
}

func (p Period) Year() int         { return p.Start.Year() }
func (p Period) Month() time.Month { return p.Start.Month() }

// Key is the "2006-01" form used by stores and exports.
func (p Period) Key() string { return p.Start.Format("2006-01") }

func (p Period) String() string {
	return "[" + p.Start.Format(time.DateTime) + ", " + p.End.Format(time.DateTime) + "]"
}
