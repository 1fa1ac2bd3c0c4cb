package cohort

import (
	"fmt"
	"sort"
	"time"

	"cohort-retention/pkg/models"
)

// Assignment maps every in-scope user to exactly one cohort.
type Assignment struct {
	Granularity models.Granularity
	Users       map[string]int64 // user id → cohort period index
	Sizes       map[int64]int    // cohort period index → distinct users
	Keys        []int64          // ascending
}

// Anchor is the first instant of a cohort bucket.
func (a *Assignment) Anchor(key int64) time.Time {
	return PeriodStart(a.Granularity, key)
}

// FirstPurchases returns the earliest order instant per user.
func FirstPurchases(orders []models.Order) map[string]time.Time {
	first := make(map[string]time.Time)
	for _, o := range orders {
		if t, ok := first[o.UserID]; !ok || o.CreatedAt.Before(t) {
			first[o.UserID] = o.CreatedAt
		}
	}
	return first
}

// Assign buckets users by first purchase and applies the scope filter.
func Assign(orders []models.Order, g models.Granularity, scope models.Scope) (*Assignment, error) {
	a := &Assignment{
		Granularity: g,
		Users:       make(map[string]int64),
		Sizes:       make(map[int64]int),
	}
	for user, first := range FirstPurchases(orders) {
		key := PeriodIndex(g, first)
		if !InScope(g, scope, PeriodStart(g, key)) {
			continue
		}
		a.Users[user] = key
		a.Sizes[key]++
	}
	if len(a.Users) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyScope, describeScope(g, scope))
	}
	a.Keys = make([]int64, 0, len(a.Sizes))
	for k := range a.Sizes {
		a.Keys = append(a.Keys, k)
	}
	sort.Slice(a.Keys, func(i, j int) bool { return a.Keys[i] < a.Keys[j] })
	return a, nil
}

// InScope tests a cohort anchor against the scope filter.
// Weeks are matched on the ISO year and the calendar month of their Monday.
func InScope(g models.Granularity, scope models.Scope, anchor time.Time) bool {
	if scope.Year != 0 {
		year := anchor.Year()
		if g == models.Week {
			year, _ = anchor.ISOWeek()
		}
		if year != scope.Year {
			return false
		}
	}
	if scope.Bucket != "" && MonthLabel(anchor) != scope.Bucket {
		return false
	}
	if scope.WeekOfMonth != 0 && g != models.Month && WeekOfMonth(anchor) != scope.WeekOfMonth {
		return false
	}
	return true
}

func describeScope(g models.Granularity, s models.Scope) string {
	desc := fmt.Sprintf("granularity=%s", g)
	if s.Year != 0 {
		desc += fmt.Sprintf(" year=%d", s.Year)
	}
	if s.Bucket != "" {
		desc += " bucket=" + s.Bucket
	}
	if s.WeekOfMonth != 0 {
		desc += fmt.Sprintf(" week=W%d", s.WeekOfMonth)
	}
	return desc
}
