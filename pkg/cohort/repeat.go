package cohort

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"cohort-retention/pkg/models"
)

// RepeatPurchasers reports, per order month of the given year, how many purchasers
// had already bought in an earlier month. year 0 keeps every month.
func RepeatPurchasers(table models.OrderTable, year int) ([]models.MonthlyRepeat, error) {
	orders, err := Normalize(table)
	if err != nil {
		return nil, err
	}

	cohortMonth := make(map[string]int64)
	for user, first := range FirstPurchases(orders) {
		cohortMonth[user] = PeriodIndex(models.Month, first)
	}

	type userMonth struct {
		user  string
		month int64
	}
	seen := make(map[userMonth]struct{})
	acc := make(map[int64]*models.MonthlyRepeat)
	for _, o := range orders {
		m := PeriodIndex(models.Month, o.CreatedAt)
		um := userMonth{user: o.UserID, month: m}
		if _, dup := seen[um]; dup {
			continue
		}
		seen[um] = struct{}{}

		start := PeriodStart(models.Month, m)
		if year != 0 && start.Year() != year {
			continue
		}
		r, ok := acc[m]
		if !ok {
			r = &models.MonthlyRepeat{Month: start, Label: MonthLabel(start)}
			acc[m] = r
		}
		r.Purchasers++
		if cohortMonth[o.UserID] < m {
			r.Returning++
		}
	}
	if len(acc) == 0 {
		return nil, fmt.Errorf("%w: no orders in year %d", ErrEmptyScope, year)
	}

	out := make([]models.MonthlyRepeat, 0, len(acc))
	for _, r := range acc {
		r.Rate = float64(r.Returning) / float64(r.Purchasers)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

// Seasonal weighs returning purchasers over purchasers for Jan–Oct and Nov–Dec separately.
func Seasonal(months []models.MonthlyRepeat) models.SeasonalSplit {
	var early, late rateAcc
	split := models.SeasonalSplit{}
	for _, m := range months {
		if m.Month.Month() >= 11 {
			late.active += m.Returning
			late.exposure += m.Purchasers
			split.LateMonths++
		} else {
			early.active += m.Returning
			early.exposure += m.Purchasers
			split.EarlyMonths++
		}
	}
	split.EarlyRate = ratio(early)
	split.LateRate = ratio(late)
	return split
}

func ratio(r rateAcc) float64 {
	if r.exposure == 0 {
		return math.NaN()
	}
	return float64(r.active) / float64(r.exposure)
}

// PurchaseDistribution counts users by their number of distinct order ids.
// When the source has no order id column every row counts as one order. When it
// has one, blank ids are ignored and a user whose ids are all blank lands in the
// zero-purchase bucket.
func PurchaseDistribution(table models.OrderTable) ([]models.PurchaseBucket, error) {
	orders, err := Normalize(table)
	if err != nil {
		return nil, err
	}

	perUser := make(map[string]map[string]struct{})
	for i, o := range orders {
		set, ok := perUser[o.UserID]
		if !ok {
			set = make(map[string]struct{})
			perUser[o.UserID] = set
		}
		id := o.OrderID
		if !table.HasOrderID {
			id = "#" + strconv.Itoa(i)
		}
		if id != "" {
			set[id] = struct{}{}
		}
	}

	byCount := make(map[int]int)
	for _, set := range perUser {
		byCount[len(set)]++
	}
	out := make([]models.PurchaseBucket, 0, len(byCount))
	for n, users := range byCount {
		out = append(out, models.PurchaseBucket{Purchases: n, Users: users})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Purchases < out[j].Purchases })
	return out, nil
}
