package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/readmarkapp/readmark-server/internal/domain"
	"github.com/readmarkapp/readmark-server/internal/id"
	"github.com/readmarkapp/readmark-server/internal/store/sqlite"
)

// MilestoneDetector compares cumulative totals against fixed threshold
// tables and records newly crossed thresholds. Detection is idempotent:
// the (user, type, value) uniqueness in storage means re-checking the
// same totals never duplicates an achievement.
type MilestoneDetector struct {
	store  *sqlite.Store
	logger *slog.Logger
}

// NewMilestoneDetector creates a new milestone detector.
func NewMilestoneDetector(store *sqlite.Store, logger *slog.Logger) *MilestoneDetector {
	return &MilestoneDetector{
		store:  store,
		logger: logger,
	}
}

// CheckThresholds evaluates every threshold table against the profile's
// current totals and records any newly crossed milestones. Returns only
// the milestones created by this call.
func (d *MilestoneDetector) CheckThresholds(ctx context.Context, profile *domain.UserReadingProfile) ([]*domain.Milestone, error) {
	checks := []struct {
		milestoneType domain.MilestoneType
		table         []int64
		value         int64
	}{
		{domain.MilestoneTotalHours, domain.HourThresholds, profile.TotalDurationSeconds / 3600},
		{domain.MilestoneStreakDays, domain.StreakDayThresholds, int64(profile.MaxStreakDays)},
		{domain.MilestoneTotalDays, domain.TotalDayThresholds, int64(profile.TotalReadingDays)},
		{domain.MilestoneBooksFinished, domain.BooksFinishedThresholds, int64(profile.BooksFinished)},
	}

	now := time.Now().UTC()
	var created []*domain.Milestone

	for _, check := range checks {
		for _, threshold := range domain.ThresholdsCrossed(check.table, check.value) {
			m := &domain.Milestone{
				ID:         id.MustGenerate("ms"),
				UserID:     profile.UserID,
				Type:       check.milestoneType,
				Value:      threshold,
				Title:      domain.MilestoneTitle(check.milestoneType, threshold),
				AchievedAt: now,
			}

			inserted, err := d.store.InsertMilestone(ctx, m)
			if err != nil {
				return created, fmt.Errorf("insert milestone %s/%d: %w", check.milestoneType, threshold, err)
			}
			if !inserted {
				continue
			}

			d.logger.Info("milestone achieved",
				"user_id", profile.UserID,
				"type", string(check.milestoneType),
				"value", threshold,
			)
			created = append(created, m)
		}
	}

	return created, nil
}

// RecordFirst records a one-shot achievement such as the user's first
// started book or first highlight. Returns nil, false when the user
// already has it.
func (d *MilestoneDetector) RecordFirst(ctx context.Context, userID string, milestoneType domain.MilestoneType, bookID string) (*domain.Milestone, bool, error) {
	m := &domain.Milestone{
		ID:         id.MustGenerate("ms"),
		UserID:     userID,
		Type:       milestoneType,
		Value:      1,
		BookID:     bookID,
		Title:      domain.MilestoneTitle(milestoneType, 1),
		AchievedAt: time.Now().UTC(),
	}

	inserted, err := d.store.InsertMilestone(ctx, m)
	if err != nil {
		return nil, false, fmt.Errorf("insert milestone %s: %w", milestoneType, err)
	}
	if !inserted {
		return nil, false, nil
	}

	d.logger.Info("milestone achieved",
		"user_id", userID,
		"type", string(milestoneType),
	)
	return m, true, nil
}

// List returns the user's milestones, most recent first.
func (d *MilestoneDetector) List(ctx context.Context, userID string, limit int) ([]*domain.Milestone, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return d.store.ListMilestones(ctx, userID, limit)
}

// ListYear returns milestones achieved in one calendar year, most
// recent first.
func (d *MilestoneDetector) ListYear(ctx context.Context, userID string, year, limit int) ([]*domain.Milestone, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	milestones, err := d.store.ListMilestonesInRange(ctx, userID,
		fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year))
	if err != nil {
		return nil, err
	}
	slices.Reverse(milestones)
	if len(milestones) > limit {
		milestones = milestones[:limit]
	}
	return milestones, nil
}
