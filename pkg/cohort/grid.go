package cohort

// CellKey addresses one (cohort, age) cell of the retention grid.
type CellKey struct {
	Cohort int64
	Age    int
}

// BuildGrid lists every observable (cohort, age) pair: ages run from 0 to maxAge
// but stop at lastPeriod, so young cohorts are right-censored instead of padded with zeros.
func BuildGrid(keys []int64, maxAge int, lastPeriod int64) []CellKey {
	grid := make([]CellKey, 0, len(keys)*(maxAge+1))
	for _, k := range keys {
		for age := 0; age <= maxAge; age++ {
			if k+int64(age) > lastPeriod {
				break
			}
			grid = append(grid, CellKey{Cohort: k, Age: age})
		}
	}
	return grid
}
