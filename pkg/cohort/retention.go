// Package cohort computes first-purchase cohorts and their repeat-purchase retention.
//
// Every function is pure: it reads an order snapshot and returns freshly built values.
// Period indices are comparable across cohorts at all granularities, which lets the
// same censoring rule (cohort + age <= last observed period) serve days, weeks and months.
package cohort

import (
	"fmt"
	"time"

	"cohort-retention/pkg/models"
)

// Validate rejects parameters the engine cannot honour.
func Validate(p models.Params) error {
	switch p.Granularity {
	case models.Day, models.Week, models.Month:
	default:
		return fmt.Errorf("%w: unknown granularity %q", ErrInvalidParams, p.Granularity)
	}
	if p.MaxAge < 0 {
		return fmt.Errorf("%w: max age %d < 0", ErrInvalidParams, p.MaxAge)
	}
	if p.Scope.Bucket != "" {
		if _, err := time.Parse("2006-01", p.Scope.Bucket); err != nil {
			return fmt.Errorf("%w: bucket %q is not YYYY-MM", ErrInvalidParams, p.Scope.Bucket)
		}
	}
	if p.Scope.WeekOfMonth < 0 || p.Scope.WeekOfMonth > 5 {
		return fmt.Errorf("%w: week of month %d not in 1..5", ErrInvalidParams, p.Scope.WeekOfMonth)
	}
	if p.Scope.WeekOfMonth != 0 && p.Granularity == models.Month {
		return fmt.Errorf("%w: week of month needs day or week granularity", ErrInvalidParams)
	}
	return nil
}

// Retention runs the full pipeline: normalize, assign, grid, count, assemble.
func Retention(table models.OrderTable, p models.Params) (*models.RetentionReport, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	orders, err := Normalize(table)
	if err != nil {
		return nil, err
	}
	// Censoring looks at the whole dataset, not just the scoped cohorts.
	last := LastPeriod(p.Granularity, orders)

	a, err := Assign(orders, p.Granularity, p.Scope)
	if err != nil {
		return nil, err
	}
	grid := BuildGrid(a.Keys, p.MaxAge, last)
	counts := CountActivity(orders, a, p.MaxAge)

	cells, matrix, err := Assemble(a, grid, counts, p.DropAgeZero)
	if err != nil {
		return nil, err
	}
	return &models.RetentionReport{
		Params:     p,
		LastPeriod: PeriodStart(p.Granularity, last),
		Orders:     len(orders),
		Matrix:     matrix,
		Cells:      cells,
	}, nil
}

// WeekdayRepeat computes daily retention for the scope and aggregates it by weekday.
// The granularity is forced to day.
func WeekdayRepeat(table models.OrderTable, p models.Params) (*models.WeekdayReport, error) {
	p.Granularity = models.Day
	p.DropAgeZero = false
	report, err := Retention(table, p)
	if err != nil {
		return nil, err
	}
	return Weekdays(report.Cells), nil
}
