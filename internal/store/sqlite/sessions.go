package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/readmarkapp/readmark-server/internal/domain"
	"github.com/readmarkapp/readmark-server/internal/store"
)

// readingSessionColumns is the ordered list of columns selected in reading session queries.
// Must match the scan order in scanReadingSession.
const readingSessionColumns = `id, user_id, book_id, book_type,
	start_time, end_time, start_position, end_position,
	start_chapter, end_chapter, pages_read,
	device_type, device_id, active, duration_seconds, created_at, updated_at`

// scanReadingSession scans a sql.Row (or sql.Rows via its Scan method) into a domain.ReadingSession.
func scanReadingSession(scanner interface{ Scan(dest ...any) error }) (*domain.ReadingSession, error) {
	var sess domain.ReadingSession

	var (
		startTime     string
		endTime       sql.NullString
		startPosition sql.NullString
		endPosition   sql.NullString
		deviceType    sql.NullString
		deviceID      sql.NullString
		active        int
		createdAt     string
		updatedAt     string
	)

	err := scanner.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.BookID,
		&sess.BookType,
		&startTime,
		&endTime,
		&startPosition,
		&endPosition,
		&sess.StartChapter,
		&sess.EndChapter,
		&sess.PagesRead,
		&deviceType,
		&deviceID,
		&active,
		&sess.DurationSeconds,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	sess.Active = active != 0

	// Parse timestamps.
	sess.StartTime, err = parseTime(startTime)
	if err != nil {
		return nil, err
	}
	sess.EndTime, err = parseNullableTime(endTime)
	if err != nil {
		return nil, err
	}
	sess.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	sess.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	// Optional string fields.
	if startPosition.Valid {
		sess.StartPosition = startPosition.String
	}
	if endPosition.Valid {
		sess.EndPosition = endPosition.String
	}
	if deviceType.Valid {
		sess.DeviceType = deviceType.String
	}
	if deviceID.Valid {
		sess.DeviceID = deviceID.String
	}

	return &sess, nil
}

// CreateReadingSession inserts a new reading session.
// Returns store.ErrAlreadyExists if the session ID already exists.
func (s *Store) CreateReadingSession(ctx context.Context, sess *domain.ReadingSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reading_sessions (
			id, user_id, book_id, book_type,
			start_time, end_time, start_position, end_position,
			start_chapter, end_chapter, pages_read,
			device_type, device_id, active, duration_seconds, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.UserID,
		sess.BookID,
		string(sess.BookType),
		formatTime(sess.StartTime),
		nullTimeString(sess.EndTime),
		nullString(sess.StartPosition),
		nullString(sess.EndPosition),
		sess.StartChapter,
		sess.EndChapter,
		sess.PagesRead,
		nullString(sess.DeviceType),
		nullString(sess.DeviceID),
		boolToInt(sess.Active),
		sess.DurationSeconds,
		formatTime(sess.CreatedAt),
		formatTime(sess.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetReadingSession retrieves a reading session by ID.
// Returns store.ErrNotFound if the session does not exist.
func (s *Store) GetReadingSession(ctx context.Context, id string) (*domain.ReadingSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+readingSessionColumns+` FROM reading_sessions WHERE id = ?`, id)

	sess, err := scanReadingSession(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ListActiveSessions retrieves all active sessions for a user, oldest first.
func (s *Store) ListActiveSessions(ctx context.Context, userID string) ([]*domain.ReadingSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+readingSessionColumns+` FROM reading_sessions
		WHERE user_id = ? AND active = 1 ORDER BY start_time ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListSessionsForUser retrieves sessions for a user, newest first, up to limit.
func (s *Store) ListSessionsForUser(ctx context.Context, userID string, limit int) ([]*domain.ReadingSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+readingSessionColumns+` FROM reading_sessions
		WHERE user_id = ? ORDER BY start_time DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListStaleActiveSessions retrieves sessions still marked active whose last
// update is older than the cutoff. Used by the stale-session sweeper.
func (s *Store) ListStaleActiveSessions(ctx context.Context, cutoff time.Time) ([]*domain.ReadingSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+readingSessionColumns+` FROM reading_sessions
		WHERE active = 1 AND updated_at < ? ORDER BY updated_at ASC`, formatTime(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListClosedSessions retrieves every closed session, oldest first.
// Used by the reconciliation job to rebuild derived stats from history.
func (s *Store) ListClosedSessions(ctx context.Context) ([]*domain.ReadingSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+readingSessionColumns+` FROM reading_sessions
		WHERE active = 0 AND end_time IS NOT NULL ORDER BY end_time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

// SessionProgress carries the mutable fields of a heartbeat or end update.
type SessionProgress struct {
	DurationSeconds int64
	EndPosition     string
	EndChapter      int
	PagesRead       int
	UpdatedAt       time.Time
}

// AdvanceSessionProgress applies a heartbeat update with a compare-and-swap
// on the session's current duration high-water mark. Returns false without
// error when the guard fails, either because a concurrent writer advanced
// the session first or because the session is no longer active.
func (s *Store) AdvanceSessionProgress(ctx context.Context, id string, expectedDuration int64, p SessionProgress) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reading_sessions SET
			duration_seconds = ?,
			end_position = ?,
			end_chapter = ?,
			pages_read = ?,
			updated_at = ?
		WHERE id = ? AND active = 1 AND duration_seconds = ?`,
		p.DurationSeconds,
		nullString(p.EndPosition),
		p.EndChapter,
		p.PagesRead,
		formatTime(p.UpdatedAt),
		id,
		expectedDuration,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CloseSession finalizes a session: records the end time and final fields
// and flips it inactive. The active guard makes closing idempotent; a
// second close on the same session reports false without error.
func (s *Store) CloseSession(ctx context.Context, id string, endTime time.Time, p SessionProgress) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reading_sessions SET
			active = 0,
			end_time = ?,
			duration_seconds = ?,
			end_position = ?,
			end_chapter = ?,
			pages_read = ?,
			updated_at = ?
		WHERE id = ? AND active = 1`,
		formatTime(endTime),
		p.DurationSeconds,
		nullString(p.EndPosition),
		p.EndChapter,
		p.PagesRead,
		formatTime(p.UpdatedAt),
		id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SumBookDuration returns the total recorded duration for a user+book
// across all sessions.
func (s *Store) SumBookDuration(ctx context.Context, userID, bookID string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(duration_seconds), 0)
		FROM reading_sessions WHERE user_id = ? AND book_id = ?`,
		userID, bookID).Scan(&total)
	return total, err
}

// CountUserSessions returns how many sessions a user has recorded for a book.
func (s *Store) CountUserSessions(ctx context.Context, userID, bookID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reading_sessions WHERE user_id = ? AND book_id = ?`,
		userID, bookID).Scan(&count)
	return count, err
}

func collectSessions(rows *sql.Rows) ([]*domain.ReadingSession, error) {
	var sessions []*domain.ReadingSession
	for rows.Next() {
		sess, err := scanReadingSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
