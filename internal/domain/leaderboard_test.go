package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekStartOf(t *testing.T) {
	// 2026-08-24 is a Monday.
	monday := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-24", WeekStartOf(monday))

	wednesday := time.Date(2026, 8, 26, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-24", WeekStartOf(wednesday))

	// Sunday closes the week the previous Monday opened.
	sunday := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-24", WeekStartOf(sunday))

	nextMonday := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-31", WeekStartOf(nextMonday))
}

func TestWeekEndOf(t *testing.T) {
	assert.Equal(t, "2026-08-30", WeekEndOf("2026-08-24"))
	assert.Equal(t, "2027-01-03", WeekEndOf("2026-12-28"), "week spanning a year boundary")
}

func TestPreviousWeekStart(t *testing.T) {
	assert.Equal(t, "2026-08-17", PreviousWeekStart("2026-08-24"))
}

func TestIsWeekStart(t *testing.T) {
	assert.True(t, IsWeekStart("2026-08-24"))
	assert.False(t, IsWeekStart("2026-08-25"))
	assert.False(t, IsWeekStart("not-a-date"))
}

func TestDateOf(t *testing.T) {
	// 23:30 UTC-5 is already the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	late := time.Date(2026, 8, 24, 23, 30, 0, 0, loc)
	assert.Equal(t, "2026-08-25", DateOf(late))
}
