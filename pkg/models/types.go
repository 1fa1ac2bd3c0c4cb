package models

import (
	"database/sql"
	"time"
)

/*
LOAD → simple types for the raw order rows handed over by a loader (CSV, SQL).
*/

// RawOrder is one order row as read from the source, before any coercion.
type RawOrder struct {
	OrderID   string // optional, empty when the source has no order_id column
	UserID    string // empty means missing
	CreatedAt string // ISO-8601 text, naive values are UTC
	Status    string // only meaningful when the table HasStatus
}

// OrderTable is an immutable snapshot of raw order rows.
type OrderTable struct {
	Rows       []RawOrder
	HasStatus  bool // the source carries a status column
	HasOrderID bool // the source carries an order id column
}

// Order is a normalized order: valid user id, UTC instant.
type Order struct {
	OrderID   string
	UserID    string
	CreatedAt time.Time
}

/*
CONFIG → analysis parameters.
*/

// Granularity is the time bucket used for cohorts and ages.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// Scope restricts which cohorts take part in an analysis.
type Scope struct {
	Year        int    // calendar year of the cohort anchor (ISO year for weeks), 0 = any
	Bucket      string // "YYYY-MM" month of the cohort anchor, empty = any
	WeekOfMonth int    // 1..5 on the anchor's Monday, 0 = all
}

// Params are the inputs of one retention analysis.
type Params struct {
	Granularity     Granularity
	MaxAge          int
	Scope           Scope
	DropAgeZero     bool
	ShowAnnotations bool // presentation only
}

/*
COMPUTE → results returned to the presentation layer.
*/

// CohortCell is one row of the long-form retention table.
type CohortCell struct {
	Cohort        time.Time // anchor of the cohort bucket (UTC)
	CohortLabel   string
	Age           int
	ActiveUsers   int
	CohortSize    int
	RetentionRate float64
}

// MatrixRow is one cohort of the pivoted retention matrix.
type MatrixRow struct {
	Cohort time.Time
	Label  string // includes the sample size, e.g. "2023-01 · N=1,204"
	Size   int
	Values []sql.NullFloat64 // aligned with RetentionMatrix.Ages, invalid = censored
}

// RetentionMatrix is the cohort × age view used for heatmaps.
type RetentionMatrix struct {
	Granularity Granularity
	Ages        []int
	Rows        []MatrixRow
}

// RetentionReport bundles the matrix and the long table it was pivoted from.
type RetentionReport struct {
	Params     Params
	LastPeriod time.Time // start of the last period observed in the data
	Orders     int       // orders left after normalization, before scoping
	Matrix     RetentionMatrix
	Cells      []CohortCell
}

// WeekdayRate aggregates repeat activity for one weekday or weekday group.
type WeekdayRate struct {
	Key         int    // 0=Mon..6=Sun, or 0=weekday / 1=weekend
	Label       string // "Mon", "Weekday (Mon-Fri)", ...
	ActiveUsers int
	Exposure    int     // summed cohort sizes
	Rate        float64 // NaN when Exposure is 0
}

// WeekdayReport holds the three weekday breakdowns of daily repeat activity.
type WeekdayReport struct {
	ByEventWeekday  []WeekdayRate
	ByCohortWeekday []WeekdayRate
	WeekendSplit    []WeekdayRate
}

// MonthlyRepeat is the share of returning purchasers in one order month.
type MonthlyRepeat struct {
	Month      time.Time
	Label      string // "2023-04"
	Purchasers int
	Returning  int
	Rate       float64
}

// SeasonalSplit compares weighted repeat rates of Jan–Oct and Nov–Dec.
type SeasonalSplit struct {
	EarlyRate   float64 // NaN when no purchasers
	LateRate    float64
	EarlyMonths int
	LateMonths  int
}

// PurchaseBucket counts users with a given number of distinct orders.
type PurchaseBucket struct {
	Purchases int
	Users     int
}

// DrilldownResult is one month of a multi-month drill-down.
type DrilldownResult struct {
	Month   string // "YYYY-MM"
	Report  *RetentionReport
	Skipped bool // no cohorts started in the month
}
