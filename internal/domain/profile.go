package domain

import "time"

// UserReadingProfile carries the per-user cumulative reading fields:
// all-time totals, streak state and the last contributing date.
//
// Streak fields are maintained incrementally on session finalization;
// they are only ever recomputed from scratch by the reconciliation job.
type UserReadingProfile struct {
	UserID string `json:"user_id"`

	TotalDurationSeconds int64 `json:"total_duration_seconds"`
	TotalReadingDays     int   `json:"total_reading_days"`

	CurrentStreakDays int    `json:"current_streak_days"`
	MaxStreakDays     int    `json:"max_streak_days"`
	LastReadingDate   string `json:"last_reading_date,omitempty"`

	BooksRead     int `json:"books_read"`
	BooksFinished int `json:"books_finished"`

	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyReadingDay folds one contributing calendar date into the streak
// state:
//
//   - same date as LastReadingDate: no change (already counted today)
//   - exactly one day later: streak extends by one
//   - anything else (gap, or no previous date): streak resets to one
//
// The distinct-day counter advances exactly when the date is new, so two
// sessions finalizing on the same day count it once. Dates earlier than
// LastReadingDate are stale deliveries and ignored entirely.
func (p *UserReadingProfile) ApplyReadingDay(date string) {
	if p.LastReadingDate == date {
		return
	}
	if p.LastReadingDate != "" && date < p.LastReadingDate {
		return
	}

	if p.LastReadingDate != "" && NextDate(p.LastReadingDate) == date {
		p.CurrentStreakDays++
	} else {
		p.CurrentStreakDays = 1
	}

	if p.CurrentStreakDays > p.MaxStreakDays {
		p.MaxStreakDays = p.CurrentStreakDays
	}
	p.TotalReadingDays++
	p.LastReadingDate = date
}

// NextDate returns the calendar date one day after the given date.
// Malformed input is returned unchanged so it can never match a real
// date.
func NextDate(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, 1).Format(DateLayout)
}
