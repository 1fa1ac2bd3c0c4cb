package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"cohort-retention/pkg/models"

	"github.com/xuri/excelize/v2"
)

const (
	matrixSheet = "matrix"
	cellsSheet  = "cells"
)

var cellHeader = []string{"cohort", "cohort_label", "age", "active_users", "cohort_size", "retention_rate"}

func formatRate(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// WriteCellsCSV writes the long-form table.
func WriteCellsCSV(w io.Writer, cells []models.CohortCell) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cellHeader); err != nil {
		return err
	}
	for _, c := range cells {
		if err := cw.Write([]string{
			isoDate(c.Cohort),
			c.CohortLabel,
			strconv.Itoa(c.Age),
			strconv.Itoa(c.ActiveUsers),
			strconv.Itoa(c.CohortSize),
			formatRate(c.RetentionRate),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMatrixCSV writes one row per cohort; censored cells are empty.
func WriteMatrixCSV(w io.Writer, m models.RetentionMatrix) error {
	cw := csv.NewWriter(w)
	header := []string{"cohort"}
	for _, age := range m.Ages {
		header = append(header, strconv.Itoa(age))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range m.Rows {
		rec := []string{row.Label}
		for _, v := range row.Values {
			if v.Valid {
				rec = append(rec, formatRate(v.Float64))
			} else {
				rec = append(rec, "")
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteWeekdayCSV writes one weekday breakdown; an undefined rate is empty.
func WriteWeekdayCSV(w io.Writer, rows []models.WeekdayRate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"key", "label", "active_users", "exposure", "rate"}); err != nil {
		return err
	}
	for _, r := range rows {
		rate := ""
		if f := finite(r.Rate); f != nil {
			rate = formatRate(*f)
		}
		if err := cw.Write([]string{strconv.Itoa(r.Key), r.Label, strconv.Itoa(r.ActiveUsers), strconv.Itoa(r.Exposure), rate}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX stores the matrix and the long table on two sheets.
func WriteXLSX(path string, r *models.RetentionReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", matrixSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(cellsSheet); err != nil {
		return err
	}

	if err := setRow(f, matrixSheet, 1, matrixHeader(r.Matrix)); err != nil {
		return err
	}
	for i, row := range r.Matrix.Rows {
		values := make([]any, 0, len(row.Values)+1)
		values = append(values, row.Label)
		for _, v := range row.Values {
			if v.Valid {
				values = append(values, v.Float64)
			} else {
				values = append(values, nil)
			}
		}
		if err := setRow(f, matrixSheet, i+2, values); err != nil {
			return err
		}
	}

	header := make([]any, len(cellHeader))
	for i, h := range cellHeader {
		header[i] = h
	}
	if err := setRow(f, cellsSheet, 1, header); err != nil {
		return err
	}
	for i, c := range r.Cells {
		if err := setRow(f, cellsSheet, i+2, []any{
			isoDate(c.Cohort), c.CohortLabel, c.Age, c.ActiveUsers, c.CohortSize, c.RetentionRate,
		}); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

func matrixHeader(m models.RetentionMatrix) []any {
	header := []any{"cohort"}
	for _, age := range m.Ages {
		header = append(header, age)
	}
	return header
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}
