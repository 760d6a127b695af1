package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/readmarkapp/readmark-server/internal/domain"
	domainerrors "github.com/readmarkapp/readmark-server/internal/errors"
	"github.com/readmarkapp/readmark-server/internal/id"
	"github.com/readmarkapp/readmark-server/internal/ratelimit"
	"github.com/readmarkapp/readmark-server/internal/store"
	"github.com/readmarkapp/readmark-server/internal/store/sqlite"
	"github.com/readmarkapp/readmark-server/internal/validation"
)

// validate is the shared request validator for all services.
var validate = validation.New()

// SessionService manages the reading session lifecycle: start, heartbeat
// and end. Duration is always computed server-side from the session's
// start time; the client only reports position and page progress.
// Finalizing a session feeds the downstream pipeline: day bucket,
// profile totals, streak, then milestones.
type SessionService struct {
	store      *sqlite.Store
	catalog    store.Catalog
	aggregator *DailyAggregator
	streaks    *StreakTracker
	milestones *MilestoneDetector
	heartbeats *ratelimit.KeyedRateLimiter
	logger     *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(
	store *sqlite.Store,
	catalog store.Catalog,
	aggregator *DailyAggregator,
	streaks *StreakTracker,
	milestones *MilestoneDetector,
	heartbeats *ratelimit.KeyedRateLimiter,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		store:      store,
		catalog:    catalog,
		aggregator: aggregator,
		streaks:    streaks,
		milestones: milestones,
		heartbeats: heartbeats,
		logger:     logger,
		now:        time.Now,
	}
}

// StartSessionRequest contains the data for opening a reading session.
type StartSessionRequest struct {
	BookID       string          `json:"bookId" validate:"required"`
	BookType     domain.BookType `json:"bookType" validate:"required,oneof=ebook magazine audiobook"`
	Position     string          `json:"position"`
	ChapterIndex int             `json:"chapterIndex" validate:"gte=0"`
	DeviceType   string          `json:"deviceType"`
	DeviceID     string          `json:"deviceId"`
}

// Start opens a new reading session. Any session still active for the
// user is finalized first, credited with its full elapsed time: a user
// reads in at most one session at a time, whatever device the old one
// was left open on.
func (s *SessionService) Start(ctx context.Context, userID string, req StartSessionRequest) (*domain.ReadingSession, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.catalog.GetBook(ctx, req.BookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("book %s not found", req.BookID)
		}
		return nil, fmt.Errorf("resolve book: %w", err)
	}

	now := s.now().UTC()

	// Close out anything the user left running.
	active, err := s.store.ListActiveSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	for _, old := range active {
		if _, ok := s.finalize(ctx, old, now, now, old.ElapsedSeconds(now), old.PagesRead, old.EndPosition, old.EndChapter, false); ok {
			s.logger.Warn("active session superseded",
				"session_id", old.ID,
				"user_id", userID,
			)
		}
	}

	sessionID, err := id.Generate("rs")
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	sess := &domain.ReadingSession{
		ID:            sessionID,
		UserID:        userID,
		BookID:        req.BookID,
		BookType:      req.BookType,
		StartTime:     now,
		StartPosition: req.Position,
		EndPosition:   req.Position,
		StartChapter:  req.ChapterIndex,
		EndChapter:    req.ChapterIndex,
		DeviceType:    req.DeviceType,
		DeviceID:      req.DeviceID,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateReadingSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if err := s.store.EnsureProfile(ctx, userID); err != nil {
		s.logger.Error("ensure profile failed", "user_id", userID, "error", err)
	}

	// One-shot first-book milestone; a duplicate insert is a no-op.
	if _, _, err := s.milestones.RecordFirst(ctx, userID, domain.MilestoneStartedBook, req.BookID); err != nil {
		s.logger.Error("record first-book milestone failed", "user_id", userID, "error", err)
	}

	s.logger.Info("reading session started",
		"session_id", sess.ID,
		"user_id", userID,
		"book_id", req.BookID,
		"book_type", string(req.BookType),
	)
	return sess, nil
}

// HeartbeatRequest reports a session's progress mid-read. PagesRead is
// the pages turned since the last report, not a running total.
type HeartbeatRequest struct {
	CurrentPosition string `json:"currentPosition"`
	ChapterIndex    *int   `json:"chapterIndex" validate:"omitempty,gte=0"`
	PagesRead       int    `json:"pagesRead" validate:"gte=0"`
}

// HeartbeatResult carries the totals reported back after a heartbeat.
type HeartbeatResult struct {
	SessionID         string
	DurationSeconds   int64
	TodayDuration     int64
	TotalBookDuration int64
}

// Heartbeat recomputes the session's elapsed duration and streams the
// gained delta into today's bucket, so daily totals stay live while the
// session runs. Heartbeats arriving faster than the configured minimum
// interval are coalesced: the next accepted one carries the accumulated
// time anyway.
func (s *SessionService) Heartbeat(ctx context.Context, userID, sessionID string, req HeartbeatRequest) (*HeartbeatResult, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	sess, err := s.loadActive(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if !s.heartbeats.Allow(sessionID) {
		return s.totals(ctx, sess, sess.DurationSeconds)
	}

	now := s.now().UTC()

	// The update is guarded by the duration the session had when we read
	// it. A concurrent writer advancing it first fails the guard; retry
	// once against the fresh state.
	for attempt := 0; ; attempt++ {
		newDuration := sess.ElapsedSeconds(now)
		if newDuration < sess.DurationSeconds {
			// Clock went backwards relative to an earlier report.
			s.logger.Error("elapsed duration below high-water mark",
				"session_id", sessionID,
				"elapsed", newDuration,
				"recorded", sess.DurationSeconds,
			)
			newDuration = sess.DurationSeconds
		}

		endPosition := sess.EndPosition
		if req.CurrentPosition != "" {
			endPosition = req.CurrentPosition
		}
		endChapter := sess.EndChapter
		if req.ChapterIndex != nil {
			endChapter = *req.ChapterIndex
		}

		progress := sqlite.SessionProgress{
			DurationSeconds: newDuration,
			EndPosition:     endPosition,
			EndChapter:      endChapter,
			PagesRead:       sess.PagesRead + req.PagesRead,
			UpdatedAt:       now,
		}

		applied, err := s.store.AdvanceSessionProgress(ctx, sessionID, sess.DurationSeconds, progress)
		if err != nil {
			return nil, fmt.Errorf("advance session: %w", err)
		}
		if applied {
			delta := newDuration - sess.DurationSeconds
			if _, err := s.aggregator.Contribute(ctx, userID, now, domain.Contribution{
				DurationSeconds: delta,
				PagesRead:       req.PagesRead,
				BookID:          sess.BookID,
				Category:        string(sess.BookType),
			}); err != nil {
				s.logger.Error("heartbeat contribution failed",
					"session_id", sessionID, "user_id", userID, "error", err)
			}
			return s.totals(ctx, sess, newDuration)
		}

		if attempt >= 1 {
			return nil, domainerrors.Conflict("session updated concurrently")
		}
		sess, err = s.loadActive(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
	}
}

// EndSessionRequest contains the final progress for closing a session.
// Finished marks the book as read cover to cover.
type EndSessionRequest struct {
	EndPosition  string `json:"endPosition"`
	ChapterIndex *int   `json:"chapterIndex" validate:"omitempty,gte=0"`
	PagesRead    int    `json:"pagesRead" validate:"gte=0"`
	Finished     bool   `json:"finished"`
}

// EndResult carries the totals and any newly achieved milestones
// reported back after a session ends.
type EndResult struct {
	SessionID          string
	DurationSeconds    int64
	TodayDuration      int64
	TotalBookDuration  int64
	MilestonesAchieved []*domain.Milestone
}

// End finalizes a session: stamps the final duration, contributes the
// remaining delta, and runs the streak and milestone stages. Ending an
// already-ended session returns the last computed totals instead of
// erroring, so client retries can't double-contribute or re-achieve
// milestones.
func (s *SessionService) End(ctx context.Context, userID, sessionID string, req EndSessionRequest) (*EndResult, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	sess, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Active {
		return s.endTotals(ctx, sess, nil)
	}

	now := s.now().UTC()
	finalDuration := sess.ElapsedSeconds(now)
	if finalDuration < sess.DurationSeconds {
		s.logger.Error("elapsed duration below high-water mark",
			"session_id", sessionID,
			"elapsed", finalDuration,
			"recorded", sess.DurationSeconds,
		)
		finalDuration = sess.DurationSeconds
	}

	endPosition := sess.EndPosition
	if req.EndPosition != "" {
		endPosition = req.EndPosition
	}
	endChapter := sess.EndChapter
	if req.ChapterIndex != nil {
		endChapter = *req.ChapterIndex
	}

	milestones, closed := s.finalize(ctx, sess, now, now, finalDuration, sess.PagesRead+req.PagesRead, endPosition, endChapter, req.Finished)
	if !closed {
		// Lost the race against another end; report the winner's state.
		winner, err := s.loadOwned(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
		return s.endTotals(ctx, winner, nil)
	}

	sess.Active = false
	sess.EndTime = &now
	sess.DurationSeconds = finalDuration

	s.logger.Info("reading session ended",
		"session_id", sessionID,
		"user_id", userID,
		"duration_seconds", finalDuration,
		"finished", req.Finished,
	)
	return s.endTotals(ctx, sess, milestones)
}

// Get retrieves one of the user's sessions.
func (s *SessionService) Get(ctx context.Context, userID, sessionID string) (*domain.ReadingSession, error) {
	return s.loadOwned(ctx, userID, sessionID)
}

// List retrieves the user's sessions, newest first.
func (s *SessionService) List(ctx context.Context, userID string, limit int) ([]*domain.ReadingSession, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListSessionsForUser(ctx, userID, limit)
}

// CloseStale finalizes sessions that have gone without a heartbeat past
// the cutoff. They are credited only up to their last reported progress,
// not the idle time since; the finalization date is the day the session
// last reported. Returns how many sessions were closed.
func (s *SessionService) CloseStale(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.store.ListStaleActiveSessions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale sessions: %w", err)
	}

	closed := 0
	for _, sess := range stale {
		_, ok := s.finalize(ctx, sess, sess.UpdatedAt, sess.UpdatedAt, sess.DurationSeconds, sess.PagesRead, sess.EndPosition, sess.EndChapter, false)
		if !ok {
			continue
		}
		closed++
		s.logger.Warn("stale session closed",
			"session_id", sess.ID,
			"user_id", sess.UserID,
			"last_seen", sess.UpdatedAt,
		)
	}
	return closed, nil
}

// finalize closes a session at the given duration and runs the
// downstream pipeline on whatever the final report added over the
// heartbeat high-water mark. Stages run sequentially and best-effort: a
// failed stage is logged and the rest still run, since every stage is
// independently idempotent or additive and the session row itself holds
// the durable duration for later reconciliation. Returns any newly
// achieved milestones and whether this call actually closed the session.
func (s *SessionService) finalize(
	ctx context.Context,
	sess *domain.ReadingSession,
	endTime, contributedAt time.Time,
	finalDuration int64,
	finalPages int,
	endPosition string,
	endChapter int,
	finished bool,
) ([]*domain.Milestone, bool) {
	progress := sqlite.SessionProgress{
		DurationSeconds: finalDuration,
		EndPosition:     endPosition,
		EndChapter:      endChapter,
		PagesRead:       finalPages,
		UpdatedAt:       endTime,
	}

	closed, err := s.store.CloseSession(ctx, sess.ID, endTime, progress)
	if err != nil {
		s.logger.Error("close session failed",
			"session_id", sess.ID, "user_id", sess.UserID, "error", err)
		return nil, false
	}
	if !closed {
		// Another finalizer won; its cascade owns the totals.
		return nil, false
	}

	delta := finalDuration - sess.DurationSeconds
	booksFinished := 0
	if finished {
		booksFinished = 1
	}

	if _, err := s.aggregator.Contribute(ctx, sess.UserID, contributedAt, domain.Contribution{
		DurationSeconds: delta,
		PagesRead:       finalPages - sess.PagesRead,
		BooksFinished:   booksFinished,
		BookID:          sess.BookID,
		Category:        string(sess.BookType),
	}); err != nil {
		s.logger.Error("aggregate contribution failed",
			"session_id", sess.ID, "user_id", sess.UserID, "error", err)
	}

	// The profile's all-time total takes the session's whole duration
	// exactly once, at finalization; heartbeat deltas only touched the
	// day buckets.
	if finalDuration > 0 {
		if err := s.store.IncrementProfileDuration(ctx, sess.UserID, finalDuration); err != nil {
			s.logger.Error("profile duration update failed",
				"session_id", sess.ID, "user_id", sess.UserID, "error", err)
		}
	}

	var firstFinish *domain.Milestone
	if finished {
		if err := s.store.IncrementBooksFinished(ctx, sess.UserID, 1); err != nil {
			s.logger.Error("increment books finished failed",
				"session_id", sess.ID, "user_id", sess.UserID, "error", err)
		}
		m, created, err := s.milestones.RecordFirst(ctx, sess.UserID, domain.MilestoneFinishedBook, sess.BookID)
		if err != nil {
			s.logger.Error("record finished-book milestone failed",
				"session_id", sess.ID, "user_id", sess.UserID, "error", err)
		} else if created {
			firstFinish = m
		}
	}

	var profile *domain.UserReadingProfile
	if finalDuration > 0 {
		profile, err = s.streaks.OnReadingDay(ctx, sess.UserID, domain.DateOf(contributedAt))
		if err != nil {
			s.logger.Error("streak update failed",
				"session_id", sess.ID, "user_id", sess.UserID, "error", err)
		}
	}
	if profile == nil {
		profile, err = s.streaks.Profile(ctx, sess.UserID)
		if err != nil {
			s.logger.Error("load profile for milestone check failed",
				"session_id", sess.ID, "user_id", sess.UserID, "error", err)
			if firstFinish != nil {
				return []*domain.Milestone{firstFinish}, true
			}
			return nil, true
		}
	}

	achieved, err := s.milestones.CheckThresholds(ctx, profile)
	if err != nil {
		s.logger.Error("milestone check failed",
			"session_id", sess.ID, "user_id", sess.UserID, "error", err)
	}
	if firstFinish != nil {
		achieved = append(achieved, firstFinish)
	}
	return achieved, true
}

// totals assembles a heartbeat response from the session's current state.
func (s *SessionService) totals(ctx context.Context, sess *domain.ReadingSession, duration int64) (*HeartbeatResult, error) {
	today, err := s.aggregator.TodayTotal(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	bookTotal, err := s.aggregator.BookTotal(ctx, sess.UserID, sess.BookID)
	if err != nil {
		return nil, err
	}
	return &HeartbeatResult{
		SessionID:         sess.ID,
		DurationSeconds:   duration,
		TodayDuration:     today,
		TotalBookDuration: bookTotal,
	}, nil
}

// endTotals assembles an end response from the session's final state.
func (s *SessionService) endTotals(ctx context.Context, sess *domain.ReadingSession, achieved []*domain.Milestone) (*EndResult, error) {
	today, err := s.aggregator.TodayTotal(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	bookTotal, err := s.aggregator.BookTotal(ctx, sess.UserID, sess.BookID)
	if err != nil {
		return nil, err
	}
	return &EndResult{
		SessionID:          sess.ID,
		DurationSeconds:    sess.DurationSeconds,
		TodayDuration:      today,
		TotalBookDuration:  bookTotal,
		MilestonesAchieved: achieved,
	}, nil
}

// loadOwned fetches a session and hides its existence from other users.
func (s *SessionService) loadOwned(ctx context.Context, userID, sessionID string) (*domain.ReadingSession, error) {
	sess, err := s.store.GetReadingSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("session not found")
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.UserID != userID {
		return nil, domainerrors.NotFound("session not found")
	}
	return sess, nil
}

// loadActive is loadOwned for the heartbeat path, where both a missing
// and an ended session mean the client must start a new one.
func (s *SessionService) loadActive(ctx context.Context, userID, sessionID string) (*domain.ReadingSession, error) {
	sess, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.InvalidState("session not found or already ended")
		}
		return nil, err
	}
	if !sess.Active {
		return nil, domainerrors.InvalidState("session already ended")
	}
	return sess, nil
}
