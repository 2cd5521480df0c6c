package generic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// customHolidays is a stored calendar stand-in.
type customHolidays map[string][]TimePoint

func (c customHolidays) IsHoliday(calendarID string, date TimePoint) bool {
	for _, d := range c[calendarID] {
		if d.Equal(date) {
			return true
		}
	}
	return false
}

func (c customHolidays) GetHolidays(calendarID string, year int) []Holiday {
	var out []Holiday
	for _, d := range c[calendarID] {
		if d.Year() == year {
			out = append(out, Holiday{CalendarID: calendarID, Date: d, Name: "custom"})
		}
	}
	return out
}

func TestEasterSunday(t *testing.T) {
	tests := []struct {
		year int
		want TimePoint
	}{
		{2023, NewTimePoint(2023, time.April, 9)},
		{2024, NewTimePoint(2024, time.March, 31)},
		{2025, NewTimePoint(2025, time.April, 20)},
	}
	for _, tt := range tests {
		assert.True(t, EasterSunday(tt.year).Equal(tt.want), "easter %d: got %s", tt.year, EasterSunday(tt.year))
	}
}

func TestBrazilianHolidays(t *testing.T) {
	br := BrazilianHolidays{}

	// Easter-derived days of 2024
	assert.True(t, br.IsHoliday("", NewTimePoint(2024, time.February, 12)), "carnival monday")
	assert.True(t, br.IsHoliday("", NewTimePoint(2024, time.February, 13)), "carnival tuesday")
	assert.True(t, br.IsHoliday("", NewTimePoint(2024, time.March, 29)), "good friday")
	assert.True(t, br.IsHoliday("", NewTimePoint(2024, time.May, 30)), "corpus christi")

	// Fixed days answer for any calendar id
	assert.True(t, br.IsHoliday("sp", NewTimePoint(2024, time.April, 21)))
	assert.False(t, br.IsHoliday("", NewTimePoint(2024, time.April, 22)))

	// Consciência Negra is national from 2024 on
	assert.False(t, br.IsHoliday("", NewTimePoint(2023, time.November, 20)))
	assert.True(t, br.IsHoliday("", NewTimePoint(2024, time.November, 20)))

	// 8 fixed + 4 Easter-derived, plus Consciência Negra from 2024
	assert.Len(t, br.GetHolidays("", 2023), 12)
	all := br.GetHolidays("", 2024)
	require.Len(t, all, 13)
	for _, h := range all {
		assert.Equal(t, 2024, h.Date.Year(), h.Name)
		assert.Equal(t, time.UTC, h.Date.Time.Location(), h.Name)
		if h.Name == "Corpus Christi" {
			assert.False(t, h.Recurring)
		}
		if h.Name == "Natal" {
			assert.True(t, h.Recurring)
		}
	}
}

func TestCalendar_BusinessDaysInMonth(t *testing.T) {
	may, err := ParseMonth("2024-05")
	require.NoError(t, err)

	// 23 weekdays, minus May 1st and Corpus Christi
	assert.Equal(t, 21, NewCalendar(BrazilianHolidays{}, "").BusinessDaysInMonth(may))
	assert.Equal(t, 23, NewCalendar(nil, "").BusinessDaysInMonth(may))

	// A stored calendar only applies to its own id
	custom := MultiCalendar{BrazilianHolidays{}, customHolidays{"poa": {NewTimePoint(2024, time.May, 2)}}}
	assert.Equal(t, 20, NewCalendar(custom, "poa").BusinessDaysInMonth(may))
	assert.Equal(t, 21, NewCalendar(custom, "sp").BusinessDaysInMonth(may))
}

func TestCalendar_NthBusinessDay(t *testing.T) {
	cal := NewCalendar(BrazilianHolidays{}, "")

	// May 2024 starts on a Wednesday holiday
	assert.Equal(t, day(2024, time.May, 2), cal.NthBusinessDay(day(2024, time.May, 1), 1))
	assert.Equal(t, day(2024, time.May, 8), cal.NthBusinessDay(day(2024, time.May, 1), 5))
	assert.Equal(t, day(2024, time.May, 2), cal.NthBusinessDay(day(2024, time.May, 1), 0), "n < 1 means the first")

	assert.Equal(t, day(2024, time.May, 6), cal.NextBusinessDay(day(2024, time.May, 3)))
}

func TestCalendar_PredictedPaymentDate(t *testing.T) {
	cal := NewCalendar(BrazilianHolidays{}, "")
	april, err := ParseMonth("2024-04")
	require.NoError(t, err)

	tests := []struct {
		name        string
		now         time.Time
		wantDate    time.Time
		wantClipped bool
	}{
		{"before the payment day", day(2024, time.May, 2), day(2024, time.May, 8), false},
		{"on the payment day", day(2024, time.May, 8), day(2024, time.May, 8), false},
		{"late on a business day", day(2024, time.May, 10), day(2024, time.May, 10), true},
		{"late on a saturday", day(2024, time.May, 11), day(2024, time.May, 13), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// billing month is April, so payment falls in May
			got := cal.PredictedPaymentDate(april, 5, tt.now)
			assert.Equal(t, tt.wantDate, DayOf(got.Date).Time)
			assert.Equal(t, tt.wantClipped, got.Clipped)
			assert.Equal(t, tt.now, got.ProcessedAt)
		})
	}
}

func TestPeriod(t *testing.T) {
	dec, err := ParseMonth("2023-12")
	require.NoError(t, err)

	assert.Equal(t, "2024-01", dec.Next().Key())
	assert.Equal(t, "2023-11", dec.Previous().Key())
	assert.True(t, dec.Contains(time.Date(2023, time.December, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, dec.Contains(day(2024, time.January, 1)))
	assert.NoError(t, dec.Validate())

	start, end := dec.NextMonthWindow()
	assert.Equal(t, day(2024, time.January, 1), start)
	assert.Equal(t, time.January, end.Month())
	assert.Equal(t, 31, end.Day())

	_, err = ParseMonth("2024-13")
	assert.Error(t, err)

	bad := Period{Start: day(2024, time.February, 1), End: day(2024, time.January, 1)}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPeriod)
}
