package dataset

import (
	"strconv"

	"cohort-retention/pkg/models"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes every row and the schema flags. Any change to the table,
// including row order, yields a different value.
func Fingerprint(table models.OrderTable) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.FormatBool(table.HasStatus))
	_, _ = d.WriteString(strconv.FormatBool(table.HasOrderID))
	_, _ = d.WriteString(strconv.Itoa(len(table.Rows)))
	for _, r := range table.Rows {
		for _, f := range [...]string{r.OrderID, r.UserID, r.CreatedAt, r.Status} {
			_, _ = d.WriteString(strconv.Itoa(len(f)))
			_, _ = d.WriteString(":")
			_, _ = d.WriteString(f)
		}
	}
	return d.Sum64()
}
