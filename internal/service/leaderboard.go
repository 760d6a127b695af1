package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/readmarkapp/readmark-server/internal/domain"
	domainerrors "github.com/readmarkapp/readmark-server/internal/errors"
	"github.com/readmarkapp/readmark-server/internal/store"
	"github.com/readmarkapp/readmark-server/internal/store/sqlite"
)

// LeaderboardScope selects whose entries a leaderboard query returns.
type LeaderboardScope string

// Supported leaderboard scopes.
const (
	ScopeAll     LeaderboardScope = "all"
	ScopeFriends LeaderboardScope = "friends"
)

// LeaderboardService ranks users by weekly reading duration. Completed
// weeks are settled once into immutable entries; the in-progress week is
// always computed live from day buckets.
type LeaderboardService struct {
	store   *sqlite.Store
	friends store.FriendLister
	logger  *slog.Logger
	topN    int

	// now is swappable in tests.
	now func() time.Time
}

// NewLeaderboardService creates a new leaderboard service.
func NewLeaderboardService(store *sqlite.Store, friends store.FriendLister, topN int, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{
		store:   store,
		friends: friends,
		logger:  logger,
		topN:    topN,
		now:     time.Now,
	}
}

// SettleWeek computes and persists the final ranking for one completed
// week. Ranking is duration descending with ties broken by user id
// ascending, so rank assignment is deterministic; users with zero
// duration are excluded, every other participant gets an entry. The
// settled rows are the week's complete record; topN only truncates what
// a single leaderboard response carries. Re-settling an already-settled
// week is a no-op.
func (s *LeaderboardService) SettleWeek(ctx context.Context, weekStart string) error {
	if !domain.IsWeekStart(weekStart) {
		return domainerrors.Validationf("week %q is not a Monday", weekStart)
	}
	if weekStart >= domain.WeekStartOf(s.now()) {
		return domainerrors.InvalidState("week is not finished yet")
	}

	settledAt := s.now().UTC()
	claimed, err := s.store.ClaimSettlement(ctx, weekStart, settledAt)
	if err != nil {
		return fmt.Errorf("claim settlement: %w", err)
	}
	if !claimed {
		s.logger.Info("week already settled", "week_start", weekStart)
		return nil
	}

	entries, err := s.computeWeek(ctx, weekStart, -1)
	if err != nil {
		// Release the claim so a later run can retry.
		if delErr := s.store.DeleteWeek(ctx, weekStart); delErr != nil {
			s.logger.Error("release settlement claim failed",
				"week_start", weekStart, "error", delErr)
		}
		return fmt.Errorf("compute week %s: %w", weekStart, err)
	}

	for _, e := range entries {
		e.CreatedAt = settledAt
	}

	if err := s.store.InsertLeaderboardEntries(ctx, weekStart, entries); err != nil {
		if delErr := s.store.DeleteWeek(ctx, weekStart); delErr != nil {
			s.logger.Error("release settlement claim failed",
				"week_start", weekStart, "error", delErr)
		}
		return fmt.Errorf("insert entries: %w", err)
	}

	s.logger.Info("week settled",
		"week_start", weekStart,
		"entries", len(entries),
	)
	return nil
}

// SettleDue settles the most recently completed week if it hasn't been
// settled yet. The settlement worker calls this on a timer.
func (s *LeaderboardService) SettleDue(ctx context.Context) error {
	lastWeek := domain.PreviousWeekStart(domain.WeekStartOf(s.now()))

	settled, err := s.store.IsWeekSettled(ctx, lastWeek)
	if err != nil {
		return fmt.Errorf("check settlement: %w", err)
	}
	if settled {
		return nil
	}
	return s.SettleWeek(ctx, lastWeek)
}

// LeaderboardView is one week's ranking as seen by one user.
type LeaderboardView struct {
	WeekStart         string
	WeekEnd           string
	Settled           bool
	TotalParticipants int
	UserRank          int // 0 when the caller didn't place
	Entries           []*domain.WeeklyLeaderboardEntry
}

// Leaderboard returns a week's ranking. An empty weekStart means the
// in-progress week. Unsettled weeks (including the current one) are
// computed live; the friends scope filters to the caller's friend set
// plus themselves and re-ranks within it.
func (s *LeaderboardService) Leaderboard(ctx context.Context, userID, weekStart string, scope LeaderboardScope) (*LeaderboardView, error) {
	if weekStart == "" {
		weekStart = domain.WeekStartOf(s.now())
	}
	if !domain.IsWeekStart(weekStart) {
		return nil, domainerrors.Validationf("week %q is not a Monday", weekStart)
	}
	if scope != ScopeAll && scope != ScopeFriends {
		return nil, domainerrors.Validationf("unknown leaderboard type %q", scope)
	}

	settled, err := s.store.IsWeekSettled(ctx, weekStart)
	if err != nil {
		return nil, fmt.Errorf("check settlement: %w", err)
	}

	var entries []*domain.WeeklyLeaderboardEntry
	if settled {
		// All of the week's entries; scope filtering happens below.
		count, err := s.store.CountLeaderboardEntries(ctx, weekStart)
		if err != nil {
			return nil, fmt.Errorf("count entries: %w", err)
		}
		entries, err = s.store.GetLeaderboardEntries(ctx, weekStart, count)
		if err != nil {
			return nil, fmt.Errorf("get entries: %w", err)
		}
	} else {
		entries, err = s.computeWeek(ctx, weekStart, -1)
		if err != nil {
			return nil, fmt.Errorf("compute week %s: %w", weekStart, err)
		}
	}

	if scope == ScopeFriends {
		friendIDs, err := s.friends.ListFriendIDs(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list friends: %w", err)
		}
		entries = filterAndRerank(entries, append(friendIDs, userID))
	}

	view := &LeaderboardView{
		WeekStart:         weekStart,
		WeekEnd:           domain.WeekEndOf(weekStart),
		Settled:           settled,
		TotalParticipants: len(entries),
	}
	for _, e := range entries {
		if e.UserID == userID {
			view.UserRank = e.Rank
			break
		}
	}
	if len(entries) > s.topN {
		entries = entries[:s.topN]
	}
	view.Entries = entries
	return view, nil
}

// computeWeek ranks the week's day-bucket totals without persisting
// anything. A negative limit means unlimited.
func (s *LeaderboardService) computeWeek(ctx context.Context, weekStart string, limit int) ([]*domain.WeeklyLeaderboardEntry, error) {
	weekEnd := domain.WeekEndOf(weekStart)

	totals, err := s.store.RangeTotalsByUser(ctx, weekStart, weekEnd, limit)
	if err != nil {
		return nil, fmt.Errorf("range totals: %w", err)
	}

	prevRanks, err := s.store.GetWeekRanks(ctx, domain.PreviousWeekStart(weekStart))
	if err != nil {
		return nil, fmt.Errorf("previous ranks: %w", err)
	}

	entries := make([]*domain.WeeklyLeaderboardEntry, 0, len(totals))
	for i, t := range totals {
		rank := i + 1
		rankChange := 0
		if prev, ok := prevRanks[t.UserID]; ok {
			rankChange = prev - rank
		}
		entries = append(entries, &domain.WeeklyLeaderboardEntry{
			UserID:               t.UserID,
			WeekStart:            weekStart,
			WeekEnd:              weekEnd,
			TotalDurationSeconds: t.DurationSeconds,
			Rank:                 rank,
			RankChange:           rankChange,
			ReadingDays:          t.ReadingDays,
			BooksRead:            t.BooksRead,
		})
	}
	return entries, nil
}

// filterAndRerank keeps only the given users' entries and assigns fresh
// ranks within the subset, preserving the original ordering.
func filterAndRerank(entries []*domain.WeeklyLeaderboardEntry, userIDs []string) []*domain.WeeklyLeaderboardEntry {
	var filtered []*domain.WeeklyLeaderboardEntry
	for _, e := range entries {
		if slices.Contains(userIDs, e.UserID) {
			scoped := *e
			scoped.Rank = len(filtered) + 1
			filtered = append(filtered, &scoped)
		}
	}
	return filtered
}
