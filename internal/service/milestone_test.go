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
	"github.com/readmarkapp/readmark-server/internal/store/sqlite"
)

func setupTestMilestones(t *testing.T) (*MilestoneDetector, *sqlite.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "milestone-service-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	testStore, err := sqlite.Open(dbPath, nil)
	require.NoError(t, err)

	svc := NewMilestoneDetector(testStore, slog.New(slog.DiscardHandler))

	cleanup := func() {
		testStore.Close()
		os.RemoveAll(tmpDir)
	}
	return svc, testStore, cleanup
}

func TestCheckThresholds_CreatesOnlyNewMilestones(t *testing.T) {
	svc, _, cleanup := setupTestMilestones(t)
	defer cleanup()
	ctx := context.Background()

	profile := &domain.UserReadingProfile{
		UserID:               "user-1",
		TotalDurationSeconds: 11 * 3600,
		MaxStreakDays:        8,
		TotalReadingDays:     8,
	}

	created, err := svc.CheckThresholds(ctx, profile)
	require.NoError(t, err)
	require.Len(t, created, 3)

	byType := map[domain.MilestoneType]int64{}
	for _, m := range created {
		byType[m.Type] = m.Value
	}
	assert.Equal(t, int64(10), byType[domain.MilestoneTotalHours])
	assert.Equal(t, int64(7), byType[domain.MilestoneStreakDays])
	assert.Equal(t, int64(7), byType[domain.MilestoneTotalDays])

	// Re-checking the same totals achieves nothing.
	created, err = svc.CheckThresholds(ctx, profile)
	require.NoError(t, err)
	assert.Empty(t, created)

	// Growing totals only surface the newly crossed thresholds.
	profile.TotalDurationSeconds = 51 * 3600
	created, err = svc.CheckThresholds(ctx, profile)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, domain.MilestoneTotalHours, created[0].Type)
	assert.Equal(t, int64(50), created[0].Value)
}

func TestCheckThresholds_BelowFirstThreshold(t *testing.T) {
	svc, _, cleanup := setupTestMilestones(t)
	defer cleanup()

	created, err := svc.CheckThresholds(context.Background(), &domain.UserReadingProfile{
		UserID:               "user-1",
		TotalDurationSeconds: 3600,
		MaxStreakDays:        2,
		TotalReadingDays:     3,
	})
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestRecordFirst_OneShot(t *testing.T) {
	svc, _, cleanup := setupTestMilestones(t)
	defer cleanup()
	ctx := context.Background()

	m, created, err := svc.RecordFirst(ctx, "user-1", domain.MilestoneStartedBook, "book-1")
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, m)
	assert.Equal(t, "book-1", m.BookID)

	// A second start, even of another book, isn't a first anymore.
	m, created, err = svc.RecordFirst(ctx, "user-1", domain.MilestoneStartedBook, "book-2")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Nil(t, m)
}

func TestListYear(t *testing.T) {
	svc, testStore, cleanup := setupTestMilestones(t)
	defer cleanup()
	ctx := context.Background()

	insert := func(id string, at time.Time, value int64) {
		inserted, err := testStore.InsertMilestone(ctx, &domain.Milestone{
			ID:         id,
			UserID:     "user-1",
			Type:       domain.MilestoneTotalDays,
			Value:      value,
			Title:      domain.MilestoneTitle(domain.MilestoneTotalDays, value),
			AchievedAt: at,
		})
		require.NoError(t, err)
		require.True(t, inserted)
	}
	insert("ms_2025", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), 7)
	insert("ms_feb", time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC), 30)
	insert("ms_aug", time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC), 100)

	milestones, err := svc.ListYear(ctx, "user-1", 2026, 0)
	require.NoError(t, err)
	require.Len(t, milestones, 2)
	// Most recent first.
	assert.Equal(t, "ms_aug", milestones[0].ID)
	assert.Equal(t, "ms_feb", milestones[1].ID)

	milestones, err = svc.ListYear(ctx, "user-1", 2026, 1)
	require.NoError(t, err)
	require.Len(t, milestones, 1)
	assert.Equal(t, "ms_aug", milestones[0].ID)
}
