// Package dataset reads order snapshots from flat files and fingerprints them.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cohort-retention/pkg/models"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing required column")

const (
	colOrderID   = "order_id"
	colUserID    = "user_id"
	colCreatedAt = "created_at"
	colStatus    = "status"
)

// ReadCSV reads an orders table. user_id and created_at are required;
// status and order_id are optional and recorded in the table schema.
func ReadCSV(r io.Reader, comma rune) (models.OrderTable, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return models.OrderTable{}, fmt.Errorf("reading header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	for _, col := range []string{colUserID, colCreatedAt} {
		if _, ok := idx[col]; !ok {
			return models.OrderTable{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	statusIdx, hasStatus := idx[colStatus]
	orderIdx, hasOrder := idx[colOrderID]

	table := models.OrderTable{HasStatus: hasStatus, HasOrderID: hasOrder}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return models.OrderTable{}, fmt.Errorf("line %d: %w", line, err)
		}
		row := models.RawOrder{
			UserID:    field(rec, idx[colUserID]),
			CreatedAt: field(rec, idx[colCreatedAt]),
		}
		if hasStatus {
			row.Status = field(rec, statusIdx)
		}
		if hasOrder {
			row.OrderID = field(rec, orderIdx)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// LoadFile reads a .csv or .tsv file.
func LoadFile(path string) (models.OrderTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.OrderTable{}, err
	}
	defer f.Close()

	table, err := ReadCSV(f, sniffDelimiter(path))
	if err != nil {
		return models.OrderTable{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return table, nil
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	v := strings.TrimSpace(rec[i])
	// pandas writes missing values as NaN or empty cells
	if strings.EqualFold(v, "nan") || strings.EqualFold(v, "null") {
		return ""
	}
	return v
}
