package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/readmarkapp/readmark-server/internal/domain"
)

// profileColumns is the ordered list of columns selected in profile queries.
// Must match the scan order in scanProfile.
const profileColumns = `user_id, total_duration_seconds, total_reading_days,
	current_streak_days, max_streak_days, last_reading_date,
	books_read, books_finished, updated_at`

// scanProfile scans a sql.Row (or sql.Rows via its Scan method) into a domain.UserReadingProfile.
func scanProfile(scanner interface{ Scan(dest ...any) error }) (*domain.UserReadingProfile, error) {
	var p domain.UserReadingProfile

	var (
		lastReadingDate sql.NullString
		updatedAt       string
	)

	err := scanner.Scan(
		&p.UserID,
		&p.TotalDurationSeconds,
		&p.TotalReadingDays,
		&p.CurrentStreakDays,
		&p.MaxStreakDays,
		&lastReadingDate,
		&p.BooksRead,
		&p.BooksFinished,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastReadingDate.Valid {
		p.LastReadingDate = lastReadingDate.String
	}

	p.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfile retrieves a user's reading profile.
// Returns nil, nil if no profile exists yet.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.UserReadingProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`, userID)

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProfiles retrieves every user's reading profile.
func (s *Store) ListProfiles(ctx context.Context) ([]*domain.UserReadingProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*domain.UserReadingProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// HasProfiles reports whether any profile rows exist.
func (s *Store) HasProfiles(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_profiles`).Scan(&count)
	return count > 0, err
}

// EnsureProfile creates a profile row if it doesn't exist.
func (s *Store) EnsureProfile(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_profiles (user_id, updated_at)
		VALUES (?, ?)`,
		userID, formatTime(time.Now().UTC()),
	)
	return err
}

// IncrementProfileDuration atomically adds to a user's all-time duration total.
func (s *Store) IncrementProfileDuration(ctx context.Context, userID string, deltaSeconds int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, total_duration_seconds, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_duration_seconds = total_duration_seconds + excluded.total_duration_seconds,
			updated_at = excluded.updated_at`,
		userID, deltaSeconds, formatTime(time.Now().UTC()),
	)
	return err
}

// IncrementBooksFinished atomically increments a user's finished-book count.
func (s *Store) IncrementBooksFinished(ctx context.Context, userID string, delta int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, books_finished, updated_at)
		VALUES (?, MAX(0, ?), ?)
		ON CONFLICT(user_id) DO UPDATE SET
			books_finished = MAX(0, books_finished + ?),
			updated_at = ?`,
		userID, delta, formatTime(time.Now().UTC()),
		delta, formatTime(time.Now().UTC()),
	)
	return err
}

// ApplyReadingDay folds one contributing date into a user's streak state
// inside a single transaction and returns the updated profile. The
// streak transition itself lives in domain.UserReadingProfile.
func (s *Store) ApplyReadingDay(ctx context.Context, userID, date string) (*domain.UserReadingProfile, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// The insert takes the write lock up front so the read-modify-write
	// below can't interleave with a concurrent finalization.
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_profiles (user_id, updated_at)
		VALUES (?, ?)`, userID, formatTime(now)); err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if err != nil {
		return nil, err
	}

	p.ApplyReadingDay(date)
	p.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `
		UPDATE user_profiles SET
			total_reading_days = ?,
			current_streak_days = ?,
			max_streak_days = ?,
			last_reading_date = ?,
			updated_at = ?
		WHERE user_id = ?`,
		p.TotalReadingDays,
		p.CurrentStreakDays,
		p.MaxStreakDays,
		nullString(p.LastReadingDate),
		formatTime(now),
		userID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// SetProfile overwrites a user's profile. Only the reconciliation job
// uses this, when rebuilding derived stats from session history.
func (s *Store) SetProfile(ctx context.Context, p *domain.UserReadingProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO user_profiles (
			user_id, total_duration_seconds, total_reading_days,
			current_streak_days, max_streak_days, last_reading_date,
			books_read, books_finished, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID,
		p.TotalDurationSeconds,
		p.TotalReadingDays,
		p.CurrentStreakDays,
		p.MaxStreakDays,
		nullString(p.LastReadingDate),
		p.BooksRead,
		p.BooksFinished,
		formatTime(p.UpdatedAt),
	)
	return err
}
