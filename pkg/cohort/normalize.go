package cohort

import (
	"fmt"
	"strings"
	"time"

	"cohort-retention/pkg/models"
)

const completeStatus = "complete"

// Layouts without a zone are read as UTC. Offsets may be +hh:mm, +hhmm or +hh.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999 Z07:00",
	"2006-01-02 15:04:05.999999999 Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// utcSuffixes are the only zone abbreviations accepted. Any other abbreviation has
// no fixed offset and the row is dropped.
var utcSuffixes = []string{" UTC", " GMT"}

// ParseTimestamp coerces an order timestamp to a UTC instant.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, z := range utcSuffixes {
		if strings.HasSuffix(s, z) {
			s = strings.TrimSuffix(s, z)
			break
		}
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// IsComplete reports whether a free-text status selects a qualifying order.
func IsComplete(status string) bool {
	return strings.ToLower(strings.TrimSpace(status)) == completeStatus
}

// Normalize keeps complete orders with a user id and a parseable timestamp.
// Rows failing coercion are dropped silently; an empty result is ErrEmptyInput.
func Normalize(table models.OrderTable) ([]models.Order, error) {
	out := make([]models.Order, 0, len(table.Rows))
	for _, r := range table.Rows {
		uid := strings.TrimSpace(r.UserID)
		if uid == "" {
			continue
		}
		if table.HasStatus && !IsComplete(r.Status) {
			continue
		}
		at, ok := ParseTimestamp(r.CreatedAt)
		if !ok {
			continue
		}
		out = append(out, models.Order{
			OrderID:   strings.TrimSpace(r.OrderID),
			UserID:    uid,
			CreatedAt: at,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %d rows read, none complete with a user and a valid timestamp", ErrEmptyInput, len(table.Rows))
	}
	return out, nil
}

// LastPeriod is the highest period index present in the orders.
func LastPeriod(g models.Granularity, orders []models.Order) int64 {
	var last int64
	for i, o := range orders {
		p := PeriodIndex(g, o.CreatedAt)
		if i == 0 || p > last {
			last = p
		}
	}
	return last
}
