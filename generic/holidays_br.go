package generic

import (
	"time"

	"github.com/rickar/cal/v2"
)

// =============================================================================
// BRAZILIAN NATIONAL HOLIDAYS
// =============================================================================

// BrazilianHolidays is the national calendar: fixed-date holidays plus the
// Easter-derived ones (Carnival Monday/Tuesday, Good Friday, Corpus Christi).
// It answers for every calendar id; regional days belong in a stored calendar.
type BrazilianHolidays struct{}

// nationalHoliday pairs a cal rule with whether it falls on the same day
// every year.
type nationalHoliday struct {
	rule      *cal.Holiday
	recurring bool
}

func fixed(name string, month time.Month, day, startYear int) nationalHoliday {
	return nationalHoliday{
		rule: &cal.Holiday{
			Name:      name,
			Type:      cal.ObservancePublic,
			Month:     month,
			Day:       day,
			StartYear: startYear,
			Func:      cal.CalcDayOfMonth,
		},
		recurring: true,
	}
}

func fromEaster(name string, offset int) nationalHoliday {
	return nationalHoliday{
		rule: &cal.Holiday{
			Name:   name,
			Type:   cal.ObservancePublic,
			Offset: offset,
			Func:   cal.CalcEasterOffset,
		},
	}
}

var brazilianNational = []nationalHoliday{
	fixed("Confraternização Universal", time.January, 1, 0),
	fixed("Tiradentes", time.April, 21, 0),
	fixed("Dia do Trabalhador", time.May, 1, 0),
	fixed("Independência do Brasil", time.September, 7, 0),
	fixed("Nossa Senhora Aparecida", time.October, 12, 0),
	fixed("Finados", time.November, 2, 0),
	fixed("Proclamação da República", time.November, 15, 0),
	// national since Lei 14.759/2023
	fixed("Consciência Negra", time.November, 20, 2024),
	fixed("Natal", time.December, 25, 0),
	fromEaster("Carnaval (segunda)", -48),
	fromEaster("Carnaval (terça)", -47),
	fromEaster("Sexta-feira Santa", -2),
	fromEaster("Corpus Christi", 60),
}

var easter = &cal.Holiday{Name: "Páscoa", Func: cal.CalcEasterOffset}

func (BrazilianHolidays) GetHolidays(_ string, year int) []Holiday {
	holidays := make([]Holiday, 0, len(brazilianNational))
	for _, n := range brazilianNational {
		if n.rule.StartYear > 0 && year < n.rule.StartYear {
			continue
		}
		actual, _ := n.rule.Calc(year)
		if actual.IsZero() {
			continue
		}
		holidays = append(holidays, Holiday{Date: calendarDay(actual), Name: n.rule.Name, Recurring: n.recurring})
	}
	return holidays
}

func (b BrazilianHolidays) IsHoliday(calendarID string, date TimePoint) bool {
	for _, h := range b.GetHolidays(calendarID, date.Year()) {
		if h.Date.Equal(date) {
			return true
		}
	}
	return false
}

// EasterSunday returns the Western Easter of year.
func EasterSunday(year int) TimePoint {
	actual, _ := easter.Calc(year)
	return calendarDay(actual)
}

// calendarDay drops the location cal computes in.
func calendarDay(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}
