package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmarkapp/readmark-server/internal/domain"
	"github.com/readmarkapp/readmark-server/internal/store"
	"github.com/readmarkapp/readmark-server/internal/store/sqlite"
)

func TestCreateAndGetReadingSession(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	start := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	createTestSession(t, s, "rs_1", "user-1", "book-1", start)

	got, err := s.GetReadingSession(ctx, "rs_1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "book-1", got.BookID)
	assert.True(t, got.Active)
	assert.True(t, got.StartTime.Equal(start))
	assert.Nil(t, got.EndTime)
}

func TestGetReadingSession_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := s.GetReadingSession(context.Background(), "rs_missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateReadingSession_DuplicateID(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	start := time.Now().UTC()
	createTestSession(t, s, "rs_1", "user-1", "book-1", start)

	dup := &domain.ReadingSession{
		ID:        "rs_1",
		UserID:    "user-1",
		BookID:    "book-1",
		BookType:  domain.BookTypeEbook,
		StartTime: start,
		Active:    true,
		CreatedAt: start,
		UpdatedAt: start,
	}
	err := s.CreateReadingSession(context.Background(), dup)
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestAdvanceSessionProgress_GuardedUpdate(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	start := time.Now().UTC().Add(-2 * time.Minute)
	createTestSession(t, s, "rs_1", "user-1", "book-1", start)

	applied, err := s.AdvanceSessionProgress(ctx, "rs_1", 0, sqlite.SessionProgress{
		DurationSeconds: 40,
		EndPosition:     "loc-40",
		PagesRead:       3,
		UpdatedAt:       start.Add(40 * time.Second),
	})
	require.NoError(t, err)
	assert.True(t, applied)

	// Guard carries the stale duration: update must not apply.
	applied, err = s.AdvanceSessionProgress(ctx, "rs_1", 0, sqlite.SessionProgress{
		DurationSeconds: 50,
		UpdatedAt:       start.Add(50 * time.Second),
	})
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.GetReadingSession(ctx, "rs_1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), got.DurationSeconds)
	assert.Equal(t, "loc-40", got.EndPosition)
	assert.Equal(t, 3, got.PagesRead)
}

func TestCloseSession_IdempotentOnActiveFlag(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	start := time.Now().UTC().Add(-5 * time.Minute)
	createTestSession(t, s, "rs_1", "user-1", "book-1", start)

	end := start.Add(100 * time.Second)
	closed, err := s.CloseSession(ctx, "rs_1", end, sqlite.SessionProgress{
		DurationSeconds: 100,
		UpdatedAt:       end,
	})
	require.NoError(t, err)
	assert.True(t, closed)

	// Second close finds no active row.
	closed, err = s.CloseSession(ctx, "rs_1", end.Add(time.Minute), sqlite.SessionProgress{
		DurationSeconds: 160,
		UpdatedAt:       end.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.False(t, closed)

	got, err := s.GetReadingSession(ctx, "rs_1")
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, int64(100), got.DurationSeconds, "losing close must not overwrite the winner")
	require.NotNil(t, got.EndTime)
	assert.True(t, got.EndTime.Equal(end))
}

func TestListActiveSessions(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	start := time.Now().UTC().Add(-time.Hour)
	createTestSession(t, s, "rs_1", "user-1", "book-1", start)
	createTestSession(t, s, "rs_2", "user-1", "book-2", start.Add(time.Minute))
	createTestSession(t, s, "rs_3", "user-2", "book-1", start)

	_, err := s.CloseSession(ctx, "rs_2", start.Add(time.Hour), sqlite.SessionProgress{UpdatedAt: start.Add(time.Hour)})
	require.NoError(t, err)

	active, err := s.ListActiveSessions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "rs_1", active[0].ID)
}

func TestListStaleActiveSessions(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	old := time.Now().UTC().Add(-48 * time.Hour)
	fresh := time.Now().UTC()

	createTestSession(t, s, "rs_old", "user-1", "book-1", old)
	createTestSession(t, s, "rs_fresh", "user-1", "book-2", fresh)

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	stale, err := s.ListStaleActiveSessions(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "rs_old", stale[0].ID)
}

func TestListStaleActiveSessions_SubSecondCutoff(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	// Stored timestamps compare as text, so a whole-second value must
	// still sort before a fractional cutoff within the same second.
	base := time.Date(2026, 8, 24, 10, 0, 5, 0, time.UTC)
	createTestSession(t, s, "rs_whole", "user-1", "book-1", base)
	createTestSession(t, s, "rs_later", "user-1", "book-2", base.Add(400*time.Millisecond))

	stale, err := s.ListStaleActiveSessions(ctx, base.Add(200*time.Millisecond))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "rs_whole", stale[0].ID)
}

func TestSumBookDuration(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	start := time.Now().UTC().Add(-time.Hour)
	createTestSession(t, s, "rs_1", "user-1", "book-1", start)
	createTestSession(t, s, "rs_2", "user-1", "book-1", start.Add(time.Minute))

	_, err := s.CloseSession(ctx, "rs_1", start.Add(100*time.Second), sqlite.SessionProgress{
		DurationSeconds: 100,
		UpdatedAt:       start.Add(100 * time.Second),
	})
	require.NoError(t, err)

	applied, err := s.AdvanceSessionProgress(ctx, "rs_2", 0, sqlite.SessionProgress{
		DurationSeconds: 25,
		UpdatedAt:       start.Add(2 * time.Minute),
	})
	require.NoError(t, err)
	require.True(t, applied)

	total, err := s.SumBookDuration(ctx, "user-1", "book-1")
	require.NoError(t, err)
	assert.Equal(t, int64(125), total)
}
