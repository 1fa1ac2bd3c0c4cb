package commands

import (
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"cohort-retention/pkg/models"

	"github.com/fatih/color"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
)

// printMatrix renders retention as percentages; censored cells stay blank.
func printMatrix(w io.Writer, m models.RetentionMatrix) {
	width := len("cohort")
	for _, row := range m.Rows {
		if n := utf8.RuneCountInString(row.Label); n > width {
			width = n
		}
	}

	_, _ = bold.Fprintf(w, "%-*s", width, "cohort")
	for _, age := range m.Ages {
		_, _ = bold.Fprintf(w, " %7s", strconv.Itoa(age))
	}
	fmt.Fprintln(w)

	for _, row := range m.Rows {
		fmt.Fprintf(w, "%-*s", width, row.Label)
		for _, v := range row.Values {
			if !v.Valid {
				fmt.Fprintf(w, " %7s", "")
				continue
			}
			fmt.Fprintf(w, " %6.1f%%", v.Float64*100)
		}
		fmt.Fprintln(w)
	}
}

func printWeekdayRates(w io.Writer, title string, rows []models.WeekdayRate) {
	_, _ = bold.Fprintln(w, title)
	fmt.Fprintf(w, "  %-20s %8s %9s %8s\n", "", "active", "exposure", "rate")
	for _, r := range rows {
		rate := yellow.Sprint("     n/a")
		if r.Exposure > 0 {
			rate = fmt.Sprintf("%7.2f%%", r.Rate*100)
		}
		fmt.Fprintf(w, "  %-20s %8d %9d %s\n", r.Label, r.ActiveUsers, r.Exposure, rate)
	}
	fmt.Fprintln(w)
}

func printWeekdayReport(w io.Writer, r *models.WeekdayReport) {
	printWeekdayRates(w, "Repeat rate by weekday of the repeat order:", r.ByEventWeekday)
	printWeekdayRates(w, "Repeat rate by weekday of the first order:", r.ByCohortWeekday)
	printWeekdayRates(w, "Weekday vs weekend:", r.WeekendSplit)
}

func printRepeat(w io.Writer, year int, months []models.MonthlyRepeat, split models.SeasonalSplit) {
	_, _ = bold.Fprintf(w, "Repeat purchasers in %d:\n", year)
	fmt.Fprintf(w, "  %-8s %11s %10s %8s\n", "month", "purchasers", "returning", "rate")
	for _, m := range months {
		fmt.Fprintf(w, "  %-8s %11d %10d %7.2f%%\n", m.Label, m.Purchasers, m.Returning, m.Rate*100)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Jan-Oct: %s over %d months\n", percentOrNA(split.EarlyRate, split.EarlyMonths), split.EarlyMonths)
	fmt.Fprintf(w, "  Nov-Dec: %s over %d months\n", percentOrNA(split.LateRate, split.LateMonths), split.LateMonths)
}

func percentOrNA(rate float64, months int) string {
	if months == 0 {
		return yellow.Sprint("n/a")
	}
	return fmt.Sprintf("%.2f%%", rate*100)
}

func printDistribution(w io.Writer, buckets []models.PurchaseBucket) {
	_, _ = bold.Fprintln(w, "Users by number of orders:")
	fmt.Fprintf(w, "  %-8s %8s\n", "orders", "users")
	for _, b := range buckets {
		fmt.Fprintf(w, "  %-8d %8d\n", b.Purchases, b.Users)
	}
}
