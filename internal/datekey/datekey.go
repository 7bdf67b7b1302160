// Package datekey converts between calendar dates and canonical YYYY-MM-DD keys.
//
// Keys always use the local calendar date, never the UTC date, so a message
// written just before midnight lands on the day the user sees on the clock.
package datekey

import (
	"regexp"
	"strings"
	"time"

	"aidiary/internal/apperr"
)

const layout = "2006-01-02"

var keyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T. Intended for tests and replay.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// ToKey formats t as the local calendar date.
func ToKey(t time.Time) string {
	return t.In(time.Local).Format(layout)
}

// FromKey parses a key into local midnight of that day.
func FromKey(key string) (time.Time, error) {
	if !keyPattern.MatchString(key) {
		return time.Time{}, apperr.Validation("datekey", "malformed date key %q", key)
	}
	t, err := time.ParseInLocation(layout, key, time.Local)
	if err != nil {
		return time.Time{}, apperr.Validation("datekey", "invalid date key %q", key)
	}
	return t, nil
}

// Valid reports whether key is a well-formed, existing calendar date.
func Valid(key string) bool {
	_, err := FromKey(key)
	return err == nil
}

// Compare orders keys chronologically. For valid keys this is exactly
// lexicographic order.
func Compare(a, b string) int {
	return strings.Compare(a, b)
}

// Today returns the key for the clock's current local date.
func Today(c Clock) string {
	if c == nil {
		c = SystemClock{}
	}
	return ToKey(c.Now())
}

// InRange reports whether from <= key <= to.
func InRange(key, from, to string) bool {
	return Compare(key, from) >= 0 && Compare(key, to) <= 0
}
