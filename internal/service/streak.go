package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/readmarkapp/readmark-server/internal/domain"
	"github.com/readmarkapp/readmark-server/internal/store/sqlite"
)

// StreakTracker maintains per-user streak state as contributing days
// arrive. The transition rules live on domain.UserReadingProfile; this
// service just anchors them to storage.
type StreakTracker struct {
	store  *sqlite.Store
	logger *slog.Logger
}

// NewStreakTracker creates a new streak tracker.
func NewStreakTracker(store *sqlite.Store, logger *slog.Logger) *StreakTracker {
	return &StreakTracker{
		store:  store,
		logger: logger,
	}
}

// OnReadingDay folds one contributing date into the user's streak state
// and returns the updated profile. Repeated calls for the same date are
// no-ops, so every session finalization can invoke it safely.
func (t *StreakTracker) OnReadingDay(ctx context.Context, userID, date string) (*domain.UserReadingProfile, error) {
	profile, err := t.store.ApplyReadingDay(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("apply reading day: %w", err)
	}

	t.logger.Debug("reading day applied",
		"user_id", userID,
		"date", date,
		"current_streak", profile.CurrentStreakDays,
		"total_days", profile.TotalReadingDays,
	)
	return profile, nil
}

// Profile returns the user's reading profile, zeroed if none exists yet.
func (t *StreakTracker) Profile(ctx context.Context, userID string) (*domain.UserReadingProfile, error) {
	profile, err := t.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if profile == nil {
		return &domain.UserReadingProfile{UserID: userID}, nil
	}
	return profile, nil
}
