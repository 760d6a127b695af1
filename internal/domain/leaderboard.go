package domain

import "time"

// WeeklyLeaderboardEntry is one user's settled rank for one ISO week.
// The whole set of entries for a week is written in a single settlement
// batch and never updated afterwards; the in-progress week is always
// computed live from daily aggregates instead.
type WeeklyLeaderboardEntry struct {
	UserID    string `json:"user_id"`
	WeekStart string `json:"week_start"`
	WeekEnd   string `json:"week_end"`

	TotalDurationSeconds int64 `json:"total_duration_seconds"`

	// Rank is 1-based. Ordering is duration descending with ties broken
	// by user id ascending, so ranks are a total order.
	Rank int `json:"rank"`

	// RankChange is previous rank minus current rank: positive means the
	// user moved up, zero means no previous entry or no movement.
	RankChange int `json:"rank_change"`

	ReadingDays   int `json:"reading_days"`
	BooksRead     int `json:"books_read"`
	LikesReceived int `json:"likes_received"`

	CreatedAt time.Time `json:"created_at"`
}

// WeekStartOf returns the Monday of the ISO week containing t, as a
// canonical UTC date string.
func WeekStartOf(t time.Time) string {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week started the previous Monday.
	}
	monday := t.AddDate(0, 0, -(weekday - 1))
	return monday.Format(DateLayout)
}

// WeekEndOf returns the Sunday that closes the week opened by weekStart.
func WeekEndOf(weekStart string) string {
	t, err := time.Parse(DateLayout, weekStart)
	if err != nil {
		return weekStart
	}
	return t.AddDate(0, 0, 6).Format(DateLayout)
}

// PreviousWeekStart returns the Monday one week before weekStart.
func PreviousWeekStart(weekStart string) string {
	t, err := time.Parse(DateLayout, weekStart)
	if err != nil {
		return weekStart
	}
	return t.AddDate(0, 0, -7).Format(DateLayout)
}

// IsWeekStart reports whether the date string is a Monday.
func IsWeekStart(date string) bool {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return false
	}
	return t.Weekday() == time.Monday
}
