package domain

import "time"

// StatsDimension selects the window a reading-stats query aggregates
// over.
type StatsDimension string

// Supported stats dimensions.
const (
	StatsDimensionWeek     StatsDimension = "week"
	StatsDimensionMonth    StatsDimension = "month"
	StatsDimensionYear     StatsDimension = "year"
	StatsDimensionTotal    StatsDimension = "total"
	StatsDimensionCalendar StatsDimension = "calendar"
)

// Valid reports whether the dimension is one of the supported values.
func (d StatsDimension) Valid() bool {
	switch d {
	case StatsDimensionWeek, StatsDimensionMonth, StatsDimensionYear,
		StatsDimensionTotal, StatsDimensionCalendar:
		return true
	}
	return false
}

// Bounds returns the inclusive date range [start, end] the dimension
// covers for a reference time. Total returns empty strings, meaning
// unbounded.
func (d StatsDimension) Bounds(ref time.Time) (start, end string) {
	ref = ref.UTC()
	switch d {
	case StatsDimensionWeek:
		start = WeekStartOf(ref)
		return start, WeekEndOf(start)
	case StatsDimensionMonth, StatsDimensionCalendar:
		first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1)
		return first.Format(DateLayout), last.Format(DateLayout)
	case StatsDimensionYear:
		first := time.Date(ref.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		last := time.Date(ref.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
		return first.Format(DateLayout), last.Format(DateLayout)
	}
	return "", ""
}

// PreviousBounds returns the equivalent range immediately before the
// dimension's window, used for percentage-delta comparisons. Total and
// calendar have no comparison range.
func (d StatsDimension) PreviousBounds(ref time.Time) (start, end string) {
	ref = ref.UTC()
	switch d {
	case StatsDimensionWeek:
		return d.Bounds(ref.AddDate(0, 0, -7))
	case StatsDimensionMonth:
		return d.Bounds(time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0))
	case StatsDimensionYear:
		return d.Bounds(ref.AddDate(-1, 0, 0))
	}
	return "", ""
}
