package export

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cohort-retention/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReport() *models.RetentionReport {
	jan := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	return &models.RetentionReport{
		Params:     models.Params{Granularity: models.Month, MaxAge: 2, DropAgeZero: true},
		LastPeriod: feb,
		Matrix: models.RetentionMatrix{
			Granularity: models.Month,
			Ages:        []int{1},
			Rows: []models.MatrixRow{
				{Cohort: jan, Label: "2023-01 · N=2", Size: 2, Values: []sql.NullFloat64{{Float64: 0.5, Valid: true}}},
				{Cohort: feb, Label: "2023-02 · N=1", Size: 1, Values: []sql.NullFloat64{{}}},
			},
		},
		Cells: []models.CohortCell{
			{Cohort: jan, CohortLabel: "2023-01", Age: 0, ActiveUsers: 2, CohortSize: 2, RetentionRate: 1},
			{Cohort: jan, CohortLabel: "2023-01", Age: 1, ActiveUsers: 1, CohortSize: 2, RetentionRate: 0.5},
			{Cohort: feb, CohortLabel: "2023-02", Age: 0, ActiveUsers: 1, CohortSize: 1, RetentionRate: 1},
		},
	}
}

func TestReportDocCensoredIsNull(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, NewReportDoc(sampleReport())))

	var decoded struct {
		LastPeriod string `json:"last_period"`
		Matrix     struct {
			Rows []struct {
				Values []*float64 `json:"values"`
			} `json:"rows"`
		} `json:"matrix"`
		Cells []CellDoc `json:"cells"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "2023-02-01", decoded.LastPeriod)
	require.Len(t, decoded.Matrix.Rows, 2)
	require.NotNil(t, decoded.Matrix.Rows[0].Values[0])
	assert.Equal(t, 0.5, *decoded.Matrix.Rows[0].Values[0])
	assert.Nil(t, decoded.Matrix.Rows[1].Values[0])
	assert.Len(t, decoded.Cells, 3)
	assert.Contains(t, buf.String(), `"values": [
          null
        ]`)
}

func TestWeekdayDocNaNIsNull(t *testing.T) {
	doc := NewWeekdayReportDoc(&models.WeekdayReport{
		WeekendSplit: []models.WeekdayRate{
			{Key: 0, Label: "Weekday (Mon-Fri)", Rate: math.NaN()},
			{Key: 1, Label: "Weekend (Sat+Sun)", ActiveUsers: 1, Exposure: 4, Rate: 0.25},
		},
	})
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))
	assert.Nil(t, doc.WeekendSplit[0].Rate)
	assert.Equal(t, 0.25, *doc.WeekendSplit[1].Rate)
	assert.NotNil(t, doc.ByEventWeekday, "empty tables encode as []")
}

func TestWriteMatrixCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMatrixCSV(&buf, sampleReport().Matrix))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "cohort,1", lines[0])
	assert.Equal(t, "2023-01 · N=2,0.5", lines[1])
	assert.Equal(t, "2023-02 · N=1,", lines[2])
}

func TestWriteCellsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCellsCSV(&buf, sampleReport().Cells))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "cohort,cohort_label,age,active_users,cohort_size,retention_rate", lines[0])
	assert.Equal(t, "2023-01-01,2023-01,1,1,2,0.5", lines[2])
}

func TestWriteWeekdayCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWeekdayCSV(&buf, []models.WeekdayRate{
		{Key: 0, Label: "Mon", Rate: math.NaN()},
		{Key: 5, Label: "Sat", ActiveUsers: 2, Exposure: 3, Rate: 2.0 / 3.0},
	}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "0,Mon,0,0,", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "5,Sat,2,3,0.666"))
}

func TestReportToFileXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "retention.xlsx")
	require.NoError(t, ReportToFile(path, sampleReport()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(matrixSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "0.5", v)
	v, err = f.GetCellValue(matrixSheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "", v, "censored cell stays blank")
	v, err = f.GetCellValue(cellsSheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, "2023-02", v)
}

func TestReportToFileUnsupported(t *testing.T) {
	err := ReportToFile(filepath.Join(t.TempDir(), "r.parquet"), sampleReport())
	assert.ErrorContains(t, err, "unsupported")
}

func TestTimestampedFilename(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, filepath.Join("reports", "retention_20240309_140507.xlsx"), TimestampedFilename("reports", "retention", ".xlsx", now))
}

func TestRepeatDoc(t *testing.T) {
	doc := NewRepeatDoc(2023,
		[]models.MonthlyRepeat{{Label: "2023-01", Purchasers: 4, Returning: 1, Rate: 0.25}},
		models.SeasonalSplit{EarlyRate: 0.25, LateRate: math.NaN(), EarlyMonths: 1},
	)
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))
	assert.Contains(t, buf.String(), `"nov_dec_rate": null`)
	assert.Equal(t, "2023-01", doc.Months[0].Month)
}

func TestDrilldownDocs(t *testing.T) {
	docs := NewDrilldownDocs([]models.DrilldownResult{
		{Month: "2022-12", Skipped: true},
		{Month: "2023-01", Report: sampleReport()},
	})
	require.Len(t, docs, 2)
	assert.Nil(t, docs[0].Matrix)
	require.NotNil(t, docs[1].Matrix)
	assert.Len(t, docs[1].Matrix.Rows, 2)
}
