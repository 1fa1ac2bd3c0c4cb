package cohort

import (
	"math"

	"cohort-retention/pkg/models"
)

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

const (
	weekdayGroup = 0
	weekendGroup = 1
)

type rateAcc struct {
	active   int
	exposure int
}

// Weekdays aggregates daily repeat activity (age ≥ 1) by weekday.
// Each cell contributes its active users to the numerator and its cohort size to the exposure.
// All seven weekdays and both weekend groups are always present.
func Weekdays(cells []models.CohortCell) *models.WeekdayReport {
	var byEvent, byCohort [7]rateAcc
	var split [2]rateAcc

	for _, c := range cells {
		if c.Age < 1 {
			continue
		}
		event := c.Cohort.AddDate(0, 0, c.Age)
		ew := mondayIndex(event)
		cw := mondayIndex(c.Cohort)

		byEvent[ew].add(c)
		byCohort[cw].add(c)
		if ew >= 5 {
			split[weekendGroup].add(c)
		} else {
			split[weekdayGroup].add(c)
		}
	}

	report := &models.WeekdayReport{
		ByEventWeekday:  make([]models.WeekdayRate, 0, 7),
		ByCohortWeekday: make([]models.WeekdayRate, 0, 7),
	}
	for d := 0; d < 7; d++ {
		report.ByEventWeekday = append(report.ByEventWeekday, byEvent[d].rate(d, weekdayLabels[d]))
		report.ByCohortWeekday = append(report.ByCohortWeekday, byCohort[d].rate(d, weekdayLabels[d]))
	}
	report.WeekendSplit = []models.WeekdayRate{
		split[weekdayGroup].rate(weekdayGroup, "Weekday (Mon-Fri)"),
		split[weekendGroup].rate(weekendGroup, "Weekend (Sat+Sun)"),
	}
	return report
}

func (r *rateAcc) add(c models.CohortCell) {
	r.active += c.ActiveUsers
	r.exposure += c.CohortSize
}

func (r rateAcc) rate(key int, label string) models.WeekdayRate {
	out := models.WeekdayRate{
		Key:         key,
		Label:       label,
		ActiveUsers: r.active,
		Exposure:    r.exposure,
		Rate:        math.NaN(),
	}
	if r.exposure > 0 {
		out.Rate = float64(r.active) / float64(r.exposure)
	}
	return out
}
