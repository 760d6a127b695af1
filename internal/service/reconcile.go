package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/readmarkapp/readmark-server/internal/domain"
	"github.com/readmarkapp/readmark-server/internal/store/sqlite"
)

// Reconciler rebuilds derived state (day buckets, profiles, streaks)
// from the append-only session history. It runs once at startup on an
// empty derived store, typically after a migration or restore.
//
// BooksFinished, notes and highlights are not recoverable from session
// rows alone; a rebuilt profile starts those counters at zero.
type Reconciler struct {
	store  *sqlite.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewReconciler creates a new reconciler.
func NewReconciler(store *sqlite.Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Run replays the closed-session history into fresh aggregates and
// profiles. It is a no-op when any profile already exists.
func (r *Reconciler) Run(ctx context.Context) error {
	has, err := r.store.HasProfiles(ctx)
	if err != nil {
		return fmt.Errorf("check profiles: %w", err)
	}
	if has {
		return nil
	}

	sessions, err := r.store.ListClosedSessions(ctx)
	if err != nil {
		return fmt.Errorf("list closed sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil
	}

	r.logger.Info("rebuilding derived stats from session history",
		slog.Int("sessions", len(sessions)))

	if err := r.store.DeleteAllAggregates(ctx); err != nil {
		return fmt.Errorf("clear aggregates: %w", err)
	}

	// Sessions arrive ordered by end time; grouping preserves that
	// order inside each user's slice, which the streak replay depends
	// on.
	byUser := make(map[string][]*domain.ReadingSession)
	for _, sess := range sessions {
		byUser[sess.UserID] = append(byUser[sess.UserID], sess)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for userID, userSessions := range byUser {
		g.Go(func() error {
			return r.replayUser(gctx, userID, userSessions)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("replay sessions: %w", err)
	}

	r.logger.Info("derived stats rebuilt", slog.Int("users", len(byUser)))
	return nil
}

func (r *Reconciler) replayUser(ctx context.Context, userID string, sessions []*domain.ReadingSession) error {
	profile := &domain.UserReadingProfile{
		UserID:    userID,
		UpdatedAt: r.now(),
	}
	books := make(map[string]struct{})

	for _, sess := range sessions {
		endTime := *sess.EndTime
		date := domain.DateOf(endTime)

		c := domain.Contribution{
			DurationSeconds: sess.DurationSeconds,
			PagesRead:       sess.PagesRead,
			BookID:          sess.BookID,
			Category:        string(sess.BookType),
		}
		if _, err := r.store.AddDailyContribution(ctx, userID, date, c, endTime); err != nil {
			return fmt.Errorf("replay session %s: %w", sess.ID, err)
		}

		profile.TotalDurationSeconds += sess.DurationSeconds
		books[sess.BookID] = struct{}{}
		if sess.DurationSeconds > 0 {
			profile.ApplyReadingDay(date)
		}
	}

	profile.BooksRead = len(books)
	if err := r.store.SetProfile(ctx, profile); err != nil {
		return fmt.Errorf("save profile %s: %w", userID, err)
	}
	return nil
}
