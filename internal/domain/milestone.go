package domain

import (
	"fmt"
	"time"
)

// MilestoneType classifies which cumulative metric a milestone tracks.
type MilestoneType string

// Milestone types. The threshold-table types are checked against running
// totals; the "first" types are one-shot events recorded directly by the
// session pipeline.
const (
	MilestoneTotalHours    MilestoneType = "total_hours"
	MilestoneStreakDays    MilestoneType = "streak_days"
	MilestoneTotalDays     MilestoneType = "total_days"
	MilestoneBooksFinished MilestoneType = "books_finished"

	MilestoneStartedBook    MilestoneType = "started_book"
	MilestoneFinishedBook   MilestoneType = "finished_book"
	MilestoneFirstHighlight MilestoneType = "first_highlight"
	MilestoneFirstNote      MilestoneType = "first_note"
)

// Fixed ascending threshold tables. A milestone row exists for each
// threshold a user's cumulative value has crossed; uniqueness on
// (user, type, value) makes detection idempotent.
var (
	HourThresholds          = []int64{10, 50, 100, 500, 1000, 2000, 3000, 5000}
	StreakDayThresholds     = []int64{7, 30, 90, 180, 365, 500, 1000}
	TotalDayThresholds      = []int64{7, 30, 100, 365, 500, 1000}
	BooksFinishedThresholds = []int64{1, 5, 10, 25, 50, 100, 200, 500}
)

// Milestone is a one-time achievement record, immutable once created.
type Milestone struct {
	ID     string        `json:"id"`
	UserID string        `json:"user_id"`
	Type   MilestoneType `json:"type"`
	Value  int64         `json:"value"`

	BookID      string    `json:"book_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	AchievedAt  time.Time `json:"achieved_at"`
}

// ThresholdsCrossed returns every threshold in the ascending table that
// the current value has reached or passed.
func ThresholdsCrossed(table []int64, value int64) []int64 {
	var crossed []int64
	for _, threshold := range table {
		if value < threshold {
			break
		}
		crossed = append(crossed, threshold)
	}
	return crossed
}

// MilestoneTitle produces the display copy for a milestone.
func MilestoneTitle(t MilestoneType, value int64) string {
	switch t {
	case MilestoneTotalHours:
		return fmt.Sprintf("Read %d hours in total", value)
	case MilestoneStreakDays:
		return fmt.Sprintf("%d-day reading streak", value)
	case MilestoneTotalDays:
		return fmt.Sprintf("Read on %d days", value)
	case MilestoneBooksFinished:
		if value == 1 {
			return "Finished your first book"
		}
		return fmt.Sprintf("Finished %d books", value)
	case MilestoneStartedBook:
		return "Started your first book"
	case MilestoneFinishedBook:
		return "Finished a book cover to cover"
	case MilestoneFirstHighlight:
		return "Made your first highlight"
	case MilestoneFirstNote:
		return "Wrote your first note"
	}
	return string(t)
}
