package domain

import "time"

// BookType identifies the kind of catalog item a session is reading.
type BookType string

// Supported book types.
const (
	BookTypeEbook     BookType = "ebook"
	BookTypeMagazine  BookType = "magazine"
	BookTypeAudiobook BookType = "audiobook"
)

// Valid reports whether the book type is one of the supported values.
func (t BookType) Valid() bool {
	switch t {
	case BookTypeEbook, BookTypeMagazine, BookTypeAudiobook:
		return true
	}
	return false
}

// ReadingSession is one continuous reading interval for one book on one
// device. Sessions are append-only history: created on start, mutated on
// heartbeat/end, never deleted.
//
// DurationSeconds is the session's high-water mark - the total elapsed
// time last reported for it. Aggregate contributions are always the delta
// against this value, never the cumulative duration again.
type ReadingSession struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	BookID   string   `json:"book_id"`
	BookType BookType `json:"book_type"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	StartPosition string `json:"start_position,omitempty"`
	EndPosition   string `json:"end_position,omitempty"`
	StartChapter  int    `json:"start_chapter"`
	EndChapter    int    `json:"end_chapter"`
	PagesRead     int    `json:"pages_read"`

	DeviceType string `json:"device_type,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`

	Active          bool  `json:"active"`
	DurationSeconds int64 `json:"duration_seconds"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ElapsedSeconds returns the wall-clock seconds between the session start
// and now, floored at zero so clock skew can never produce a negative
// duration.
func (s *ReadingSession) ElapsedSeconds(now time.Time) int64 {
	elapsed := int64(now.Sub(s.StartTime) / time.Second)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Book is the minimal catalog view the pipeline needs: enough to validate
// that a session's target exists and to bucket durations per category.
type Book struct {
	ID        string    `json:"id"`
	Type      BookType  `json:"type"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
