package recorder

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/ca"
)

// stJeanBaptiste is Quebec's Fete nationale, observed by the transit agency
// but not part of the national holiday set.
var stJeanBaptiste = &cal.Holiday{
	Name:  "Saint-Jean-Baptiste Day",
	Type:  cal.ObservancePublic,
	Month: time.June,
	Day:   24,
	Func:  cal.CalcDayOfMonth,
}

//transitHolidayCalendar holds the holidays observed by the transit agency,
//used to flag recorded observations that do not represent typical service
type transitHolidayCalendar struct {
	calendar *cal.BusinessCalendar
}

//makeTransitHolidayCalendar builds transitHolidayCalendar
//TODO:: should be customizable by transit agency rather than being hardcoded as it is now.
func makeTransitHolidayCalendar() *transitHolidayCalendar {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(
		ca.NewYear,
		ca.GoodFriday,
		ca.VictoriaDay,
		stJeanBaptiste,
		ca.CanadaDay,
		ca.LabourDay,
		ca.ThanksgivingDay,
		ca.ChristmasDay,
		ca.BoxingDay,
	)
	return &transitHolidayCalendar{calendar: calendar}
}

//isHoliday returns true if at is on a holiday observed by the transit agency
func (t *transitHolidayCalendar) isHoliday(at time.Time) bool {
	_, observed, _ := t.calendar.IsHoliday(at)
	return observed
}
