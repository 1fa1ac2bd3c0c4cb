package cohort

import (
	"fmt"
	"time"

	"cohort-retention/pkg/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const secondsPerDay = 24 * 60 * 60

// weekEpoch is the Monday all week indices are counted from.
var weekEpoch = time.Date(1970, 1, 5, 0, 0, 0, 0, time.UTC)

var printer = message.NewPrinter(language.English)

// PeriodIndex maps an instant to a globally comparable period number.
// day: days since 1970-01-01, week: weeks since Monday 1970-01-05, month: year*12+month.
func PeriodIndex(g models.Granularity, t time.Time) int64 {
	t = t.UTC()
	switch g {
	case models.Month:
		return int64(t.Year())*12 + int64(t.Month())
	case models.Week:
		return floorDiv(dayIndex(t)-dayIndex(weekEpoch), 7)
	default:
		return dayIndex(t)
	}
}

// PeriodStart is the inverse of PeriodIndex: the first instant of the period.
func PeriodStart(g models.Granularity, idx int64) time.Time {
	switch g {
	case models.Month:
		zero := idx - 1
		year := floorDiv(zero, 12)
		month := zero - year*12 + 1
		return time.Date(int(year), time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	case models.Week:
		return weekEpoch.AddDate(0, 0, int(idx*7))
	default:
		return time.Unix(idx*secondsPerDay, 0).UTC()
	}
}

// Truncate returns the start of the period containing t.
func Truncate(g models.Granularity, t time.Time) time.Time {
	return PeriodStart(g, PeriodIndex(g, t))
}

func dayIndex(t time.Time) int64 {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return d.Unix() / secondsPerDay
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// mondayIndex numbers weekdays 0=Mon..6=Sun.
func mondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekOfMonth of the Monday that starts t's week: 1 for days 1-7 of that Monday's month, and so on.
func WeekOfMonth(t time.Time) int {
	monday := Truncate(models.Week, t)
	return (monday.Day()-1)/7 + 1
}

// MonthLabel formats a bucket month as "YYYY-MM".
func MonthLabel(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// CohortLabel is the human readable name of a cohort anchor, without the sample size.
func CohortLabel(g models.Granularity, anchor time.Time) string {
	switch g {
	case models.Month:
		return MonthLabel(anchor)
	case models.Week:
		isoYear, isoWeek := anchor.ISOWeek()
		return fmt.Sprintf("%s W%d (%d-W%02d)", MonthLabel(anchor), WeekOfMonth(anchor), isoYear, isoWeek)
	default:
		return fmt.Sprintf("%s (%s, W%d)", anchor.Format("2006-01-02"), anchor.Format("Mon"), WeekOfMonth(anchor))
	}
}

// RowLabel appends the sample size to a cohort label, e.g. "2023-01 · N=1,204".
func RowLabel(g models.Granularity, anchor time.Time, size int) string {
	return CohortLabel(g, anchor) + " · N=" + printer.Sprintf("%d", size)
}
