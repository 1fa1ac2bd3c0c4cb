package cohort

import "cohort-retention/pkg/models"

// CountActivity counts distinct active users per (cohort, age) for in-scope users.
// Cells without activity are absent from the result.
func CountActivity(orders []models.Order, a *Assignment, maxAge int) map[CellKey]int {
	seen := make(map[CellKey]map[string]struct{})
	for _, o := range orders {
		cohort, ok := a.Users[o.UserID]
		if !ok {
			continue
		}
		age := int(PeriodIndex(a.Granularity, o.CreatedAt) - cohort)
		if age < 0 || age > maxAge {
			continue
		}
		key := CellKey{Cohort: cohort, Age: age}
		users, ok := seen[key]
		if !ok {
			users = make(map[string]struct{})
			seen[key] = users
		}
		users[o.UserID] = struct{}{}
	}

	counts := make(map[CellKey]int, len(seen))
	for k, users := range seen {
		counts[k] = len(users)
	}
	return counts
}
