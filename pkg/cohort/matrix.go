package cohort

import (
	"database/sql"
	"fmt"
	"sort"

	"cohort-retention/pkg/models"
)

// Assemble joins activity counts onto the censored grid and pivots the result.
// The long table keeps age 0; the matrix drops it when dropAgeZero is set.
func Assemble(a *Assignment, grid []CellKey, counts map[CellKey]int, dropAgeZero bool) ([]models.CohortCell, models.RetentionMatrix, error) {
	matrix := models.RetentionMatrix{Granularity: a.Granularity}

	sorted := make([]CellKey, len(grid))
	copy(sorted, grid)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Cohort != sorted[j].Cohort {
			return sorted[i].Cohort < sorted[j].Cohort
		}
		return sorted[i].Age < sorted[j].Age
	})

	cells := make([]models.CohortCell, 0, len(sorted))
	rates := make(map[CellKey]float64, len(sorted))
	ageSet := make(map[int]struct{})
	for _, k := range sorted {
		size := a.Sizes[k.Cohort]
		if size <= 0 {
			return nil, matrix, fmt.Errorf("%w: cohort %s", ErrDegenerateCohort, CohortLabel(a.Granularity, a.Anchor(k.Cohort)))
		}
		active := counts[k]
		rate := float64(active) / float64(size)
		anchor := a.Anchor(k.Cohort)
		cells = append(cells, models.CohortCell{
			Cohort:        anchor,
			CohortLabel:   CohortLabel(a.Granularity, anchor),
			Age:           k.Age,
			ActiveUsers:   active,
			CohortSize:    size,
			RetentionRate: rate,
		})
		rates[k] = rate
		if k.Age == 0 && dropAgeZero {
			continue
		}
		ageSet[k.Age] = struct{}{}
	}

	for age := range ageSet {
		matrix.Ages = append(matrix.Ages, age)
	}
	sort.Ints(matrix.Ages)

	for _, key := range a.Keys {
		anchor := a.Anchor(key)
		row := models.MatrixRow{
			Cohort: anchor,
			Label:  RowLabel(a.Granularity, anchor, a.Sizes[key]),
			Size:   a.Sizes[key],
			Values: make([]sql.NullFloat64, len(matrix.Ages)),
		}
		for i, age := range matrix.Ages {
			if r, ok := rates[CellKey{Cohort: key, Age: age}]; ok {
				row.Values[i] = sql.NullFloat64{Float64: r, Valid: true}
			}
		}
		matrix.Rows = append(matrix.Rows, row)
	}
	return cells, matrix, nil
}
