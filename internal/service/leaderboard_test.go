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

func setupTestLeaderboard(t *testing.T) (*LeaderboardService, *sqlite.Store, *fakeClock, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "leaderboard-service-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	testStore, err := sqlite.Open(dbPath, nil)
	require.NoError(t, err)

	// A Wednesday in the week starting 2026-08-24.
	clock := &fakeClock{now: time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)}

	svc := NewLeaderboardService(testStore, testStore, 100, slog.New(slog.DiscardHandler))
	svc.now = clock.Now

	cleanup := func() {
		testStore.Close()
		os.RemoveAll(tmpDir)
	}
	return svc, testStore, clock, cleanup
}

// seedWeek drops reading time into the given week's day buckets.
func seedWeek(t *testing.T, s *sqlite.Store, weekStart string, durations map[string]int64) {
	t.Helper()
	for userID, duration := range durations {
		_, err := s.AddDailyContribution(context.Background(), userID, weekStart, domain.Contribution{
			DurationSeconds: duration,
			BookID:          "book-1",
		}, time.Now().UTC())
		require.NoError(t, err)
	}
}

func TestSettleWeek_DeterministicRanking(t *testing.T) {
	svc, testStore, _, cleanup := setupTestLeaderboard(t)
	defer cleanup()
	ctx := context.Background()

	seedWeek(t, testStore, "2026-08-17", map[string]int64{
		"user-b": 600,
		"user-a": 600,
		"user-c": 900,
	})

	require.NoError(t, svc.SettleWeek(ctx, "2026-08-17"))

	entries, err := testStore.GetLeaderboardEntries(ctx, "2026-08-17", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "user-c", entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, int64(900), entries[0].TotalDurationSeconds)
	// Ties rank by user id ascending.
	assert.Equal(t, "user-a", entries[1].UserID)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "user-b", entries[2].UserID)
	assert.Equal(t, 3, entries[2].Rank)
	assert.Equal(t, "2026-08-23", entries[0].WeekEnd)
}

func TestSettleWeek_SecondSettlementIsNoOp(t *testing.T) {
	svc, testStore, _, cleanup := setupTestLeaderboard(t)
	defer cleanup()
	ctx := context.Background()

	seedWeek(t, testStore, "2026-08-17", map[string]int64{"user-a": 600})
	require.NoError(t, svc.SettleWeek(ctx, "2026-08-17"))

	// More reading arriving after settlement must not change the result.
	seedWeek(t, testStore, "2026-08-17", map[string]int64{"user-a": 9000, "user-b": 9999})
	require.NoError(t, svc.SettleWeek(ctx, "2026-08-17"))

	entries, err := testStore.GetLeaderboardEntries(ctx, "2026-08-17", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(600), entries[0].TotalDurationSeconds)
}

func TestSettleWeek_RejectsUnfinishedWeek(t *testing.T) {
	svc, _, _, cleanup := setupTestLeaderboard(t)
	defer cleanup()
	ctx := context.Background()

	err := svc.SettleWeek(ctx, "2026-08-24")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)

	err = svc.SettleWeek(ctx, "2026-08-18")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestSettleWeek_RankChangeAgainstPreviousWeek(t *testing.T) {
	svc, testStore, _, cleanup := setupTestLeaderboard(t)
	defer cleanup()
	ctx := context.Background()

	seedWeek(t, testStore, "2026-08-10", map[string]int64{
		"user-a": 900,
		"user-b": 600,
	})
	require.NoError(t, svc.SettleWeek(ctx, "2026-08-10"))

	seedWeek(t, testStore, "2026-08-17", map[string]int64{
		"user-a": 300,
		"user-b": 800,
		"user-c": 500,
	})
	require.NoError(t, svc.SettleWeek(ctx, "2026-08-17"))

	entries, err := testStore.GetLeaderboardEntries(ctx, "2026-08-17", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// user-b climbed from 2nd to 1st, user-a fell from 1st to 3rd,
	// user-c is new and carries no movement.
	assert.Equal(t, "user-b", entries[0].UserID)
	assert.Equal(t, 1, entries[0].RankChange)
	assert.Equal(t, "user-c", entries[1].UserID)
	assert.Zero(t, entries[1].RankChange)
	assert.Equal(t, "user-a", entries[2].UserID)
	assert.Equal(t, -2, entries[2].RankChange)
}

func TestSettleDue_SettlesLastCompletedWeek(t *testing.T) {
	svc, testStore, _, cleanup := setupTestLeaderboard(t)
	defer cleanup()
	ctx := context.Background()

	seedWeek(t, testStore, "2026-08-17", map[string]int64{"user-a": 600})

	require.NoError(t, svc.SettleDue(ctx))
	settled, err := testStore.IsWeekSettled(ctx, "2026-08-17")
	require.NoError(t, err)
	assert.True(t, settled)

	// Already settled, so the next tick does nothing.
	require.NoError(t, svc.SettleDue(ctx))
}

func TestLeaderboard_CurrentWeekComputedLive(t *testing.T) {
	svc, testStore, _, cleanup := setupTestLeaderboard(t)
	defer cleanup()
	ctx := context.Background()

	seedWeek(t, testStore, "2026-08-24", map[string]int64{
		"user-a": 400,
		"user-b": 700,
	})

	view, err := svc.Leaderboard(ctx, "user-a", "", ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-24", view.WeekStart)
	assert.Equal(t, "2026-08-30", view.WeekEnd)
	assert.False(t, view.Settled)
	assert.Equal(t, 2, view.TotalParticipants)
	assert.Equal(t, 2, view.UserRank)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, "user-b", view.Entries[0].UserID)

	// The live ranking moves as reading arrives.
	seedWeek(t, testStore, "2026-08-24", map[string]int64{"user-a": 500})
	view, err = svc.Leaderboard(ctx, "user-a", "", ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 1, view.UserRank)
}

func TestLeaderboard_SettledWeekServedFromEntries(t *testing.T) {
	svc, testStore, _, cleanup := setupTestLeaderboard(t)
	defer cleanup()
	ctx := context.Background()

	seedWeek(t, testStore, "2026-08-17", map[string]int64{"user-a": 600, "user-b": 300})
	require.NoError(t, svc.SettleWeek(ctx, "2026-08-17"))
	seedWeek(t, testStore, "2026-08-17", map[string]int64{"user-b": 9000})

	view, err := svc.Leaderboard(ctx, "user-b", "2026-08-17", ScopeAll)
	require.NoError(t, err)
	assert.True(t, view.Settled)
	assert.Equal(t, 2, view.UserRank)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, int64(300), view.Entries[1].TotalDurationSeconds)
}

func TestSettleWeek_PersistsEveryParticipant(t *testing.T) {
	svc, testStore, _, cleanup := setupTestLeaderboard(t)
	defer cleanup()
	ctx := context.Background()

	// Responses carry two entries, settlement still records everyone.
	svc.topN = 2

	seedWeek(t, testStore, "2026-08-17", map[string]int64{
		"user-a": 300,
		"user-b": 200,
		"user-c": 100,
	})
	require.NoError(t, svc.SettleWeek(ctx, "2026-08-17"))

	count, err := testStore.CountLeaderboardEntries(ctx, "2026-08-17")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// The last-place user keeps their settled rank even though the
	// response only carries the top two.
	view, err := svc.Leaderboard(ctx, "user-c", "2026-08-17", ScopeAll)
	require.NoError(t, err)
	assert.True(t, view.Settled)
	assert.Equal(t, 3, view.TotalParticipants)
	assert.Equal(t, 3, view.UserRank)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, "user-a", view.Entries[0].UserID)
	assert.Equal(t, "user-b", view.Entries[1].UserID)
}

func TestLeaderboard_FriendsScopeReranks(t *testing.T) {
	svc, testStore, _, cleanup := setupTestLeaderboard(t)
	defer cleanup()
	ctx := context.Background()

	seedWeek(t, testStore, "2026-08-24", map[string]int64{
		"user-a": 900,
		"user-b": 700,
		"user-c": 500,
		"user-d": 300,
	})
	require.NoError(t, testStore.AddFriend(ctx, "user-d", "user-b"))

	view, err := svc.Leaderboard(ctx, "user-d", "", ScopeFriends)
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalParticipants)
	require.Len(t, view.Entries, 2)
	// Ranks are contiguous within the friend subset.
	assert.Equal(t, "user-b", view.Entries[0].UserID)
	assert.Equal(t, 1, view.Entries[0].Rank)
	assert.Equal(t, "user-d", view.Entries[1].UserID)
	assert.Equal(t, 2, view.Entries[1].Rank)
	assert.Equal(t, 2, view.UserRank)
}

func TestLeaderboard_Validation(t *testing.T) {
	svc, _, _, cleanup := setupTestLeaderboard(t)
	defer cleanup()
	ctx := context.Background()

	_, err := svc.Leaderboard(ctx, "user-a", "2026-08-19", ScopeAll)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = svc.Leaderboard(ctx, "user-a", "", LeaderboardScope("global"))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestLeaderboard_EmptyWeek(t *testing.T) {
	svc, _, _, cleanup := setupTestLeaderboard(t)
	defer cleanup()

	view, err := svc.Leaderboard(context.Background(), "user-a", "", ScopeAll)
	require.NoError(t, err)
	assert.Zero(t, view.TotalParticipants)
	assert.Zero(t, view.UserRank)
	assert.Empty(t, view.Entries)
}
