package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmarkapp/readmark-server/internal/domain"
)

func TestEnsureProfile_Idempotent(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, s.EnsureProfile(ctx, "user-1"))
	require.NoError(t, s.IncrementProfileDuration(ctx, "user-1", 100))

	// A second ensure must not reset accumulated state.
	require.NoError(t, s.EnsureProfile(ctx, "user-1"))

	p, err := s.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(100), p.TotalDurationSeconds)
}

func TestGetProfile_Missing(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	p, err := s.GetProfile(context.Background(), "user-missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestIncrementProfileDuration_Accumulates(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, s.IncrementProfileDuration(ctx, "user-1", 60))
	require.NoError(t, s.IncrementProfileDuration(ctx, "user-1", 40))

	p, err := s.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(100), p.TotalDurationSeconds)
}

func TestIncrementBooksFinished_FloorsAtZero(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, s.IncrementBooksFinished(ctx, "user-1", 2))
	require.NoError(t, s.IncrementBooksFinished(ctx, "user-1", -5))

	p, err := s.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 0, p.BooksFinished)
}

func TestApplyReadingDay_StreakProgression(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	p, err := s.ApplyReadingDay(ctx, "user-1", "2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentStreakDays)
	assert.Equal(t, 1, p.TotalReadingDays)
	assert.Equal(t, "2026-08-24", p.LastReadingDate)

	// Same day twice is a no-op.
	p, err = s.ApplyReadingDay(ctx, "user-1", "2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentStreakDays)
	assert.Equal(t, 1, p.TotalReadingDays)

	// Next day extends the streak.
	p, err = s.ApplyReadingDay(ctx, "user-1", "2026-08-25")
	require.NoError(t, err)
	assert.Equal(t, 2, p.CurrentStreakDays)
	assert.Equal(t, 2, p.MaxStreakDays)
	assert.Equal(t, 2, p.TotalReadingDays)

	// A gap resets the current streak; the max survives.
	p, err = s.ApplyReadingDay(ctx, "user-1", "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentStreakDays)
	assert.Equal(t, 2, p.MaxStreakDays)
	assert.Equal(t, 3, p.TotalReadingDays)

	// The transaction persists what it returns.
	got, err := s.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.CurrentStreakDays, got.CurrentStreakDays)
	assert.Equal(t, p.MaxStreakDays, got.MaxStreakDays)
	assert.Equal(t, p.TotalReadingDays, got.TotalReadingDays)
	assert.Equal(t, "2026-08-28", got.LastReadingDate)
}

func TestHasProfilesAndListProfiles(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	has, err := s.HasProfiles(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.EnsureProfile(ctx, "user-1"))
	require.NoError(t, s.EnsureProfile(ctx, "user-2"))

	has, err = s.HasProfiles(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	profiles, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestSetProfile_Overwrites(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.IncrementProfileDuration(ctx, "user-1", 999))

	want := &domain.UserReadingProfile{
		UserID:               "user-1",
		TotalDurationSeconds: 3600,
		TotalReadingDays:     5,
		CurrentStreakDays:    2,
		MaxStreakDays:        3,
		LastReadingDate:      "2026-08-24",
		BooksRead:            4,
		BooksFinished:        1,
		UpdatedAt:            time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SetProfile(ctx, want))

	got, err := s.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3600), got.TotalDurationSeconds)
	assert.Equal(t, 5, got.TotalReadingDays)
	assert.Equal(t, 2, got.CurrentStreakDays)
	assert.Equal(t, 3, got.MaxStreakDays)
	assert.Equal(t, "2026-08-24", got.LastReadingDate)
	assert.Equal(t, 4, got.BooksRead)
	assert.Equal(t, 1, got.BooksFinished)
}
