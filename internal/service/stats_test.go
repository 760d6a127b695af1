package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmarkapp/readmark-server/internal/domain"
	domainerrors "github.com/readmarkapp/readmark-server/internal/errors"
	"github.com/readmarkapp/readmark-server/internal/store/sqlite"
)

func setupTestStats(t *testing.T) (*StatsService, *sqlite.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "stats-service-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	testStore, err := sqlite.Open(dbPath, nil)
	require.NoError(t, err)

	svc := NewStatsService(testStore, slog.New(slog.DiscardHandler))
	svc.now = func() time.Time {
		return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	}

	cleanup := func() {
		testStore.Close()
		os.RemoveAll(tmpDir)
	}
	return svc, testStore, cleanup
}

func contribute(t *testing.T, s *sqlite.Store, userID, date string, c domain.Contribution) {
	t.Helper()
	_, err := s.AddDailyContribution(context.Background(), userID, date, c, time.Now().UTC())
	require.NoError(t, err)
}

func TestGetStats_UnknownDimension(t *testing.T) {
	svc, _, cleanup := setupTestStats(t)
	defer cleanup()

	_, err := svc.GetStats(context.Background(), "user-1", "decade", time.Time{})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestGetStats_EmptyWeekIsZeroed(t *testing.T) {
	svc, _, cleanup := setupTestStats(t)
	defer cleanup()

	summary, err := svc.GetStats(context.Background(), "user-1", domain.StatsDimensionWeek, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "2026-08-24", summary.StartDate)
	assert.Equal(t, "2026-08-30", summary.EndDate)
	assert.Zero(t, summary.DurationSeconds)
	assert.Zero(t, summary.ReadingDays)
	assert.Zero(t, summary.BooksRead)
	assert.Nil(t, summary.ChangePercent)
	assert.Empty(t, summary.CategoryDurations)
}

func TestGetStats_WeekRollupWithChange(t *testing.T) {
	svc, testStore, cleanup := setupTestStats(t)
	defer cleanup()

	// Prior week: 200s. Current week: 300s over two days.
	contribute(t, testStore, "user-1", "2026-08-19", domain.Contribution{
		DurationSeconds: 200, BookID: "book-1", Category: "ebook",
	})
	contribute(t, testStore, "user-1", "2026-08-24", domain.Contribution{
		DurationSeconds: 100, PagesRead: 5, BookID: "book-1", Category: "ebook",
	})
	contribute(t, testStore, "user-1", "2026-08-25", domain.Contribution{
		DurationSeconds: 200, PagesRead: 7, BookID: "book-2", Category: "audiobook",
	})

	summary, err := svc.GetStats(context.Background(), "user-1", domain.StatsDimensionWeek, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(300), summary.DurationSeconds)
	assert.Equal(t, 2, summary.ReadingDays)
	assert.Equal(t, 2, summary.BooksRead)
	assert.Equal(t, 12, summary.PagesRead)
	assert.Equal(t, int64(100), summary.CategoryDurations["ebook"])
	assert.Equal(t, int64(200), summary.CategoryDurations["audiobook"])

	require.NotNil(t, summary.ChangePercent)
	assert.InDelta(t, 50.0, *summary.ChangePercent, 0.001)
}

func TestGetStats_ChangeNilWithoutPriorData(t *testing.T) {
	svc, testStore, cleanup := setupTestStats(t)
	defer cleanup()

	contribute(t, testStore, "user-1", "2026-08-24", domain.Contribution{DurationSeconds: 100})

	summary, err := svc.GetStats(context.Background(), "user-1", domain.StatsDimensionWeek, time.Time{})
	require.NoError(t, err)
	assert.Nil(t, summary.ChangePercent)
}

func TestGetStats_ExplicitReferenceDate(t *testing.T) {
	svc, testStore, cleanup := setupTestStats(t)
	defer cleanup()

	contribute(t, testStore, "user-1", "2026-03-10", domain.Contribution{DurationSeconds: 450})

	ref := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	summary, err := svc.GetStats(context.Background(), "user-1", domain.StatsDimensionMonth, ref)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", summary.StartDate)
	assert.Equal(t, "2026-03-31", summary.EndDate)
	assert.Equal(t, int64(450), summary.DurationSeconds)
}

func TestGetStats_TotalIncludesProfile(t *testing.T) {
	svc, testStore, cleanup := setupTestStats(t)
	defer cleanup()
	ctx := context.Background()

	contribute(t, testStore, "user-1", "2026-08-24", domain.Contribution{DurationSeconds: 100})
	require.NoError(t, testStore.IncrementProfileDuration(ctx, "user-1", 100))
	_, err := testStore.ApplyReadingDay(ctx, "user-1", "2026-08-24")
	require.NoError(t, err)

	summary, err := svc.GetStats(ctx, "user-1", domain.StatsDimensionTotal, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, summary.StartDate)
	require.NotNil(t, summary.Profile)
	assert.Equal(t, int64(100), summary.Profile.TotalDurationSeconds)
	assert.Equal(t, 1, summary.Profile.CurrentStreakDays)

	// Unknown users get a zeroed profile.
	summary, err = svc.GetStats(ctx, "user-ghost", domain.StatsDimensionTotal, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, summary.Profile)
	assert.Zero(t, summary.Profile.TotalDurationSeconds)
}

func TestGetStats_CalendarMonth(t *testing.T) {
	svc, testStore, cleanup := setupTestStats(t)
	defer cleanup()
	ctx := context.Background()

	contribute(t, testStore, "user-1", "2026-08-03", domain.Contribution{DurationSeconds: 100, BookID: "book-1"})
	contribute(t, testStore, "user-1", "2026-08-24", domain.Contribution{DurationSeconds: 200, BookID: "book-1"})
	contribute(t, testStore, "user-1", "2026-07-31", domain.Contribution{DurationSeconds: 999, BookID: "book-1"})

	inserted, err := testStore.InsertMilestone(ctx, &domain.Milestone{
		ID:         "ms_1",
		UserID:     "user-1",
		Type:       domain.MilestoneTotalDays,
		Value:      7,
		Title:      domain.MilestoneTitle(domain.MilestoneTotalDays, 7),
		AchievedAt: time.Date(2026, 8, 24, 21, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.True(t, inserted)

	summary, err := svc.GetStats(ctx, "user-1", domain.StatsDimensionCalendar, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, summary.Calendar)

	// Only August's days, oldest first.
	require.Len(t, summary.Calendar.Days, 2)
	assert.Equal(t, "2026-08-03", summary.Calendar.Days[0].Date)
	assert.Equal(t, "2026-08-24", summary.Calendar.Days[1].Date)

	require.Len(t, summary.Calendar.Milestones, 1)
	assert.Equal(t, "ms_1", summary.Calendar.Milestones[0].ID)
}
