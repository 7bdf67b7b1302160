package chat

import (
	"sort"
	"time"
)

// timestampLayout is fixed-width so stored timestamps also sort as strings.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// SortNewestFirst orders by date descending, then most recently updated,
// then id ascending. The result is deterministic for duplicate dates.
func SortNewestFirst(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return newer(convs[i], convs[j])
	})
}

func newer(a, b Conversation) bool {
	if a.Date != b.Date {
		return a.Date > b.Date
	}
	if c := compareTimestamps(a.UpdatedAt, b.UpdatedAt); c != 0 {
		return c > 0
	}
	return a.ID < b.ID
}

func compareTimestamps(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
