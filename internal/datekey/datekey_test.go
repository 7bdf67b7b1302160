package datekey

import (
	"errors"
	"strings"
	"testing"
	"time"

	"aidiary/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToKeyUsesLocalDate(t *testing.T) {
	d := time.Date(2024, 6, 1, 23, 59, 0, 0, time.Local)
	assert.Equal(t, "2024-06-01", ToKey(d))

	// Zero padding on single-digit months and days.
	assert.Equal(t, "2024-01-09", ToKey(time.Date(2024, 1, 9, 8, 0, 0, 0, time.Local)))
}

func TestFromKeyRoundTrip(t *testing.T) {
	for _, key := range []string{"2024-06-01", "1999-12-31", "2024-02-29"} {
		parsed, err := FromKey(key)
		require.NoError(t, err, key)
		assert.Equal(t, key, ToKey(parsed))
		assert.Equal(t, 0, parsed.Hour())
	}
}

func TestFromKeyRejectsMalformed(t *testing.T) {
	bad := []string{"", "2024-6-1", "2024/06/01", "20240601", "2024-13-01", "2023-02-29", " 2024-06-01", "2024-06-01T00:00"}
	for _, key := range bad {
		_, err := FromKey(key)
		require.Error(t, err, "key %q", key)
		assert.True(t, errors.Is(err, apperr.ErrValidation), "key %q", key)
		assert.False(t, Valid(key))
	}
}

func TestCompareAgreesWithChronologyAndLexicographicOrder(t *testing.T) {
	base := time.Date(2023, 12, 25, 12, 0, 0, 0, time.Local)
	offsets := []int{-400, -31, -1, 0, 1, 7, 30, 366}
	for _, a := range offsets {
		for _, b := range offsets {
			d1 := base.AddDate(0, 0, a)
			d2 := base.AddDate(0, 0, b)
			k1, k2 := ToKey(d1), ToKey(d2)

			got := Compare(k1, k2)
			want := sign(a - b)
			if got != want {
				t.Fatalf("Compare(%s, %s)=%d, want %d", k1, k2, got, want)
			}
			if lex := sign(strings.Compare(k1, k2)); lex != want {
				t.Fatalf("lexicographic(%s, %s)=%d, want %d", k1, k2, lex, want)
			}
		}
	}
}

func TestTodayWithFixedClock(t *testing.T) {
	c := FixedClock{T: time.Date(2024, 6, 2, 0, 0, 1, 0, time.Local)}
	assert.Equal(t, "2024-06-02", Today(c))
}

func TestInRangeInclusive(t *testing.T) {
	assert.True(t, InRange("2024-06-01", "2024-06-01", "2024-06-30"))
	assert.True(t, InRange("2024-06-30", "2024-06-01", "2024-06-30"))
	assert.False(t, InRange("2024-07-01", "2024-06-01", "2024-06-30"))
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
