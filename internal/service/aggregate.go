package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/readmarkapp/readmark-server/internal/domain"
	"github.com/readmarkapp/readmark-server/internal/store/sqlite"
)

// DailyAggregator folds additive deltas into per-user day buckets.
// Buckets only ever grow; negative deltas are anomalies and get clamped
// to zero before they can reach storage.
type DailyAggregator struct {
	store  *sqlite.Store
	logger *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewDailyAggregator creates a new daily aggregator.
func NewDailyAggregator(store *sqlite.Store, logger *slog.Logger) *DailyAggregator {
	return &DailyAggregator{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Contribute applies one additive delta to the user's bucket for the
// date of at. Returns the bucket's duration total after the write.
func (a *DailyAggregator) Contribute(ctx context.Context, userID string, at time.Time, c domain.Contribution) (int64, error) {
	date := domain.DateOf(at)

	c = a.clamp(userID, c)
	if c.Zero() {
		return a.DayTotal(ctx, userID, date)
	}

	newTotal, err := a.store.AddDailyContribution(ctx, userID, date, c, a.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("add daily contribution: %w", err)
	}
	return newTotal, nil
}

// DayTotal returns the duration total for one day bucket, zero when the
// day has no contributions.
func (a *DailyAggregator) DayTotal(ctx context.Context, userID, date string) (int64, error) {
	total, err := a.store.GetDayDuration(ctx, userID, date)
	if err != nil {
		return 0, fmt.Errorf("get day duration: %w", err)
	}
	return total, nil
}

// TodayTotal returns the duration total for the user's current UTC day.
func (a *DailyAggregator) TodayTotal(ctx context.Context, userID string) (int64, error) {
	return a.DayTotal(ctx, userID, domain.DateOf(a.now()))
}

// BookTotal returns the user's all-time duration for one book, summed
// from session history rather than day buckets.
func (a *DailyAggregator) BookTotal(ctx context.Context, userID, bookID string) (int64, error) {
	total, err := a.store.SumBookDuration(ctx, userID, bookID)
	if err != nil {
		return 0, fmt.Errorf("sum book duration: %w", err)
	}
	return total, nil
}

// Day returns the user's bucket for a date. Missing days come back as a
// zeroed bucket, never an error.
func (a *DailyAggregator) Day(ctx context.Context, userID, date string) (*domain.DailyAggregate, error) {
	agg, err := a.store.GetDailyAggregate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("get daily aggregate: %w", err)
	}
	if agg == nil {
		return &domain.DailyAggregate{UserID: userID, Date: date}, nil
	}
	return agg, nil
}

// Range returns the user's buckets in the inclusive date range, oldest
// first. Days without contributions are absent.
func (a *DailyAggregator) Range(ctx context.Context, userID, startDate, endDate string) ([]*domain.DailyAggregate, error) {
	return a.store.ListDailyAggregates(ctx, userID, startDate, endDate)
}

// clamp floors negative increments at zero. A negative delta means an
// upstream accounting bug, so it is logged loudly rather than silently
// shrinking a bucket.
func (a *DailyAggregator) clamp(userID string, c domain.Contribution) domain.Contribution {
	report := func(field string, value int64) {
		a.logger.Error("negative aggregate delta clamped to zero",
			"user_id", userID,
			"field", field,
			"value", value,
		)
	}

	if c.DurationSeconds < 0 {
		report("duration_seconds", c.DurationSeconds)
		c.DurationSeconds = 0
	}
	if c.PagesRead < 0 {
		report("pages_read", int64(c.PagesRead))
		c.PagesRead = 0
	}
	if c.BooksFinished < 0 {
		report("books_finished", int64(c.BooksFinished))
		c.BooksFinished = 0
	}
	if c.NotesCreated < 0 {
		report("notes_created", int64(c.NotesCreated))
		c.NotesCreated = 0
	}
	if c.HighlightsCreated < 0 {
		report("highlights_created", int64(c.HighlightsCreated))
		c.HighlightsCreated = 0
	}
	return c
}
