package domain

import "time"

// DateLayout is the canonical calendar-date format for day buckets,
// streak dates and week boundaries. All dates are UTC: a session's
// contributing date is its end time's calendar date in UTC.
const DateLayout = "2006-01-02"

// DateOf returns the canonical calendar date for a timestamp.
func DateOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DailyAggregate is the per-user-per-date running total of reading
// duration and related counters. Rows are upserted with additive deltas
// and never deleted; the total is monotonically non-decreasing within a
// day.
type DailyAggregate struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`

	TotalDurationSeconds int64 `json:"total_duration_seconds"`
	BooksRead            int   `json:"books_read"`
	BooksFinished        int   `json:"books_finished"`
	PagesRead            int   `json:"pages_read"`
	NotesCreated         int   `json:"notes_created"`
	HighlightsCreated    int   `json:"highlights_created"`

	// Duration split by book category and by individual book.
	CategoryDurations map[string]int64 `json:"category_durations,omitempty"`
	BookDurations     map[string]int64 `json:"book_durations,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Contribution is one additive delta folded into a day bucket. All fields
// are increments, not replacements.
type Contribution struct {
	DurationSeconds   int64
	PagesRead         int
	BooksFinished     int
	NotesCreated      int
	HighlightsCreated int

	// When set, DurationSeconds is also attributed to this book and its
	// category in the per-book / per-category maps.
	BookID   string
	Category string
}

// Zero reports whether the contribution carries nothing worth persisting.
func (c Contribution) Zero() bool {
	return c.DurationSeconds == 0 && c.PagesRead == 0 && c.BooksFinished == 0 &&
		c.NotesCreated == 0 && c.HighlightsCreated == 0
}
