// Package export writes retention results as JSON, CSV or XLSX.
// Censored cells and undefined rates are written as JSON null or empty cells, never as 0.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cohort-retention/pkg/models"
)

// MatrixDoc is the JSON shape of a retention matrix.
type MatrixDoc struct {
	Granularity models.Granularity `json:"granularity"`
	Ages        []int              `json:"ages"`
	Rows        []MatrixRowDoc     `json:"rows"`
}

type MatrixRowDoc struct {
	Cohort string     `json:"cohort"`
	Label  string     `json:"label"`
	Size   int        `json:"size"`
	Values []*float64 `json:"values"`
}

type CellDoc struct {
	Cohort        string  `json:"cohort"`
	CohortLabel   string  `json:"cohort_label"`
	Age           int     `json:"age"`
	ActiveUsers   int     `json:"active_users"`
	CohortSize    int     `json:"cohort_size"`
	RetentionRate float64 `json:"retention_rate"`
}

type ReportDoc struct {
	Granularity models.Granularity `json:"granularity"`
	MaxAge      int                `json:"max_age"`
	LastPeriod  string             `json:"last_period"`
	Matrix      MatrixDoc          `json:"matrix"`
	Cells       []CellDoc          `json:"cells"`
}

type WeekdayDoc struct {
	Key         int      `json:"key"`
	Label       string   `json:"label"`
	ActiveUsers int      `json:"active_users"`
	Exposure    int      `json:"exposure"`
	Rate        *float64 `json:"rate"`
}

type WeekdayReportDoc struct {
	ByEventWeekday  []WeekdayDoc `json:"by_event_weekday"`
	ByCohortWeekday []WeekdayDoc `json:"by_cohort_weekday"`
	WeekendSplit    []WeekdayDoc `json:"weekend_split"`
}

func isoDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// NewReportDoc converts a report to its JSON shape.
func NewReportDoc(r *models.RetentionReport) ReportDoc {
	doc := ReportDoc{
		Granularity: r.Params.Granularity,
		MaxAge:      r.Params.MaxAge,
		LastPeriod:  isoDate(r.LastPeriod),
		Matrix:      NewMatrixDoc(r.Matrix),
		Cells:       make([]CellDoc, 0, len(r.Cells)),
	}
	for _, c := range r.Cells {
		doc.Cells = append(doc.Cells, CellDoc{
			Cohort:        isoDate(c.Cohort),
			CohortLabel:   c.CohortLabel,
			Age:           c.Age,
			ActiveUsers:   c.ActiveUsers,
			CohortSize:    c.CohortSize,
			RetentionRate: c.RetentionRate,
		})
	}
	return doc
}

func NewMatrixDoc(m models.RetentionMatrix) MatrixDoc {
	doc := MatrixDoc{Granularity: m.Granularity, Ages: m.Ages, Rows: make([]MatrixRowDoc, 0, len(m.Rows))}
	if doc.Ages == nil {
		doc.Ages = []int{}
	}
	for _, row := range m.Rows {
		values := make([]*float64, len(row.Values))
		for i, v := range row.Values {
			if v.Valid {
				f := v.Float64
				values[i] = &f
			}
		}
		doc.Rows = append(doc.Rows, MatrixRowDoc{
			Cohort: isoDate(row.Cohort),
			Label:  row.Label,
			Size:   row.Size,
			Values: values,
		})
	}
	return doc
}

func NewWeekdayReportDoc(r *models.WeekdayReport) WeekdayReportDoc {
	return WeekdayReportDoc{
		ByEventWeekday:  weekdayDocs(r.ByEventWeekday),
		ByCohortWeekday: weekdayDocs(r.ByCohortWeekday),
		WeekendSplit:    weekdayDocs(r.WeekendSplit),
	}
}

func weekdayDocs(rows []models.WeekdayRate) []WeekdayDoc {
	out := make([]WeekdayDoc, 0, len(rows))
	for _, r := range rows {
		out = append(out, WeekdayDoc{
			Key:         r.Key,
			Label:       r.Label,
			ActiveUsers: r.ActiveUsers,
			Exposure:    r.Exposure,
			Rate:        finite(r.Rate),
		})
	}
	return out
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// WriteJSON encodes v with indentation.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

// TimestampedFilename returns dir/name_YYYYMMDD_HHMMSS.ext.
func TimestampedFilename(dir, name, ext string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", name, now.Format("20060102_150405"), strings.TrimPrefix(ext, ".")))
}

// ReportToFile picks the format from the file extension: .json, .csv or .xlsx.
// CSV files hold the long table; XLSX files hold both the matrix and the long table.
func ReportToFile(path string, r *models.RetentionReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return WriteXLSX(path, r)
	case ".csv":
		return writeFile(path, func(w io.Writer) error { return WriteCellsCSV(w, r.Cells) })
	case ".json":
		return writeFile(path, func(w io.Writer) error { return WriteJSON(w, NewReportDoc(r)) })
	default:
		return fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type MonthlyRepeatDoc struct {
	Month      string  `json:"month"`
	Purchasers int     `json:"purchasers"`
	Returning  int     `json:"returning"`
	Rate       float64 `json:"rate"`
}

type SeasonalDoc struct {
	EarlyRate   *float64 `json:"jan_oct_rate"`
	LateRate    *float64 `json:"nov_dec_rate"`
	EarlyMonths int      `json:"jan_oct_months"`
	LateMonths  int      `json:"nov_dec_months"`
}

type RepeatDoc struct {
	Year     int                `json:"year"`
	Months   []MonthlyRepeatDoc `json:"months"`
	Seasonal SeasonalDoc        `json:"seasonal"`
}

func NewRepeatDoc(year int, months []models.MonthlyRepeat, split models.SeasonalSplit) RepeatDoc {
	doc := RepeatDoc{
		Year:   year,
		Months: make([]MonthlyRepeatDoc, 0, len(months)),
		Seasonal: SeasonalDoc{
			EarlyRate:   finite(split.EarlyRate),
			LateRate:    finite(split.LateRate),
			EarlyMonths: split.EarlyMonths,
			LateMonths:  split.LateMonths,
		},
	}
	for _, m := range months {
		doc.Months = append(doc.Months, MonthlyRepeatDoc{
			Month:      m.Label,
			Purchasers: m.Purchasers,
			Returning:  m.Returning,
			Rate:       m.Rate,
		})
	}
	return doc
}

type PurchaseBucketDoc struct {
	Purchases int `json:"purchases"`
	Users     int `json:"users"`
}

func NewDistributionDoc(buckets []models.PurchaseBucket) []PurchaseBucketDoc {
	out := make([]PurchaseBucketDoc, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, PurchaseBucketDoc{Purchases: b.Purchases, Users: b.Users})
	}
	return out
}

type DrilldownDoc struct {
	Month   string     `json:"month"`
	Skipped bool       `json:"skipped"`
	Matrix  *MatrixDoc `json:"matrix,omitempty"`
}

func NewDrilldownDocs(results []models.DrilldownResult) []DrilldownDoc {
	out := make([]DrilldownDoc, 0, len(results))
	for _, r := range results {
		doc := DrilldownDoc{Month: r.Month, Skipped: r.Skipped}
		if r.Report != nil {
			m := NewMatrixDoc(r.Report.Matrix)
			doc.Matrix = &m
		}
		out = append(out, doc)
	}
	return out
}
