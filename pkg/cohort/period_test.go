package cohort

import (
	"testing"
	"time"

	"cohort-retention/pkg/models"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodIndex(t *testing.T) {
	tests := []struct {
		name string
		g    models.Granularity
		at   time.Time
		want int64
	}{
		{"month", models.Month, time.Date(2023, 1, 5, 10, 0, 0, 0, time.UTC), 2023*12 + 1},
		{"week epoch monday", models.Week, date(1970, 1, 5), 0},
		{"week epoch sunday", models.Week, time.Date(1970, 1, 11, 23, 59, 0, 0, time.UTC), 0},
		{"week after epoch", models.Week, date(1970, 1, 12), 1},
		{"week before epoch", models.Week, date(1970, 1, 4), -1},
		{"day", models.Day, time.Date(1970, 1, 2, 10, 0, 0, 0, time.UTC), 1},
		{"day before epoch", models.Day, time.Date(1969, 12, 31, 23, 0, 0, 0, time.UTC), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeriodIndex(tt.g, tt.at))
		})
	}
}

func TestPeriodStartRoundTrip(t *testing.T) {
	at := time.Date(2023, 3, 15, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, date(2023, 3, 1), Truncate(models.Month, at))
	assert.Equal(t, date(2023, 3, 13), Truncate(models.Week, at))
	assert.Equal(t, date(2023, 3, 15), Truncate(models.Day, at))
	assert.Equal(t, date(1969, 12, 29), PeriodStart(models.Week, -1))
	assert.Equal(t, date(2022, 12, 1), PeriodStart(models.Month, 2022*12+12))
}

func TestPeriodIndexUsesUTC(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	// 2023-02-01 08:00 in Seoul is still January in UTC.
	at := time.Date(2023, 2, 1, 8, 0, 0, 0, seoul)
	assert.Equal(t, int64(2023*12+1), PeriodIndex(models.Month, at))
}

func TestWeekOfMonth(t *testing.T) {
	assert.Equal(t, 1, WeekOfMonth(date(2023, 1, 5)))
	assert.Equal(t, 2, WeekOfMonth(date(2023, 1, 9)))
	// Monday of 2023-03-01 falls in February.
	assert.Equal(t, 4, WeekOfMonth(date(2023, 3, 1)))
}

func TestCohortLabels(t *testing.T) {
	assert.Equal(t, "2023-01", CohortLabel(models.Month, date(2023, 1, 1)))
	assert.Equal(t, "2023-01 W1 (2023-W01)", CohortLabel(models.Week, date(2023, 1, 2)))
	assert.Equal(t, "2023-01-05 (Thu, W1)", CohortLabel(models.Day, date(2023, 1, 5)))
	assert.Equal(t, "2023-01 · N=1,234", RowLabel(models.Month, date(2023, 1, 1), 1234))
}
