package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/readmarkapp/readmark-server/internal/domain"
	domainerrors "github.com/readmarkapp/readmark-server/internal/errors"
	"github.com/readmarkapp/readmark-server/internal/store/sqlite"
)

// StatsService composes read-only rollups from day buckets, profiles
// and milestones. Missing data always yields zeroed summaries, never an
// error.
type StatsService struct {
	store  *sqlite.Store
	logger *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewStatsService creates a new stats service.
func NewStatsService(store *sqlite.Store, logger *slog.Logger) *StatsService {
	return &StatsService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// StatsSummary is one dimension's rollup for one user.
type StatsSummary struct {
	Dimension domain.StatsDimension
	StartDate string // empty for the total dimension
	EndDate   string

	DurationSeconds   int64
	ReadingDays       int
	BooksRead         int
	BooksFinished     int
	PagesRead         int
	NotesCreated      int
	HighlightsCreated int

	CategoryDurations map[string]int64

	// ChangePercent compares against the equivalent prior range. Nil
	// when there is no comparison range or the prior range had no
	// duration.
	ChangePercent *float64

	// Streak state, populated for the total dimension only.
	Profile *domain.UserReadingProfile

	// Day-by-day grid plus the month's milestones, populated for the
	// calendar dimension only.
	Calendar *CalendarView
}

// CalendarView is a month of day buckets with the milestones achieved
// in it.
type CalendarView struct {
	Days       []*domain.DailyAggregate
	Milestones []*domain.Milestone
}

// GetStats returns the rollup for one dimension anchored at ref.
func (s *StatsService) GetStats(ctx context.Context, userID string, dimension domain.StatsDimension, ref time.Time) (*StatsSummary, error) {
	if !dimension.Valid() {
		return nil, domainerrors.Validationf("unknown stats dimension %q", dimension)
	}
	if ref.IsZero() {
		ref = s.now()
	}

	start, end := dimension.Bounds(ref)

	totals, err := s.store.SumRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("sum range: %w", err)
	}
	categories, err := s.store.CategoryDurationsInRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("category durations: %w", err)
	}

	summary := &StatsSummary{
		Dimension:         dimension,
		StartDate:         start,
		EndDate:           end,
		DurationSeconds:   totals.DurationSeconds,
		ReadingDays:       totals.ReadingDays,
		BooksRead:         totals.BooksRead,
		BooksFinished:     totals.BooksFinished,
		PagesRead:         totals.PagesRead,
		NotesCreated:      totals.NotesCreated,
		HighlightsCreated: totals.HighlightsCreated,
		CategoryDurations: categories,
	}

	summary.ChangePercent, err = s.changePercent(ctx, userID, dimension, ref, totals)
	if err != nil {
		return nil, err
	}

	switch dimension {
	case domain.StatsDimensionTotal:
		profile, err := s.store.GetProfile(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("get profile: %w", err)
		}
		if profile == nil {
			profile = &domain.UserReadingProfile{UserID: userID}
		}
		summary.Profile = profile

	case domain.StatsDimensionCalendar:
		summary.Calendar, err = s.calendar(ctx, userID, start, end)
		if err != nil {
			return nil, err
		}
	}

	return summary, nil
}

// changePercent compares the range's duration against the equivalent
// prior range.
func (s *StatsService) changePercent(ctx context.Context, userID string, dimension domain.StatsDimension, ref time.Time, current sqlite.RangeTotals) (*float64, error) {
	prevStart, prevEnd := dimension.PreviousBounds(ref)
	if prevStart == "" {
		return nil, nil
	}

	prev, err := s.store.SumRange(ctx, userID, prevStart, prevEnd)
	if err != nil {
		return nil, fmt.Errorf("sum prior range: %w", err)
	}
	if prev.DurationSeconds == 0 {
		return nil, nil
	}

	change := float64(current.DurationSeconds-prev.DurationSeconds) / float64(prev.DurationSeconds) * 100
	return &change, nil
}

// calendar assembles the month grid and its milestones.
func (s *StatsService) calendar(ctx context.Context, userID, start, end string) (*CalendarView, error) {
	days, err := s.store.ListDailyAggregates(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list day buckets: %w", err)
	}
	milestones, err := s.store.ListMilestonesInRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return &CalendarView{
		Days:       days,
		Milestones: milestones,
	}, nil
}
