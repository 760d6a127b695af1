package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/readmarkapp/readmark-server/internal/domain"
	"github.com/readmarkapp/readmark-server/internal/store"
)

// leaderboardColumns is the ordered list of columns selected in leaderboard queries.
// Must match the scan order in scanLeaderboardEntry.
const leaderboardColumns = `user_id, week_start, week_end, total_duration_seconds,
	rank, rank_change, reading_days, books_read, likes_received, created_at`

// scanLeaderboardEntry scans a sql.Row (or sql.Rows via its Scan method) into a domain.WeeklyLeaderboardEntry.
func scanLeaderboardEntry(scanner interface{ Scan(dest ...any) error }) (*domain.WeeklyLeaderboardEntry, error) {
	var e domain.WeeklyLeaderboardEntry
	var createdAt string

	err := scanner.Scan(
		&e.UserID,
		&e.WeekStart,
		&e.WeekEnd,
		&e.TotalDurationSeconds,
		&e.Rank,
		&e.RankChange,
		&e.ReadingDays,
		&e.BooksRead,
		&e.LikesReceived,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	e.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ClaimSettlement records that a settlement for the week is underway.
// Returns false when the week was already claimed, so a week can only
// ever be settled once even with concurrent settlement workers.
func (s *Store) ClaimSettlement(ctx context.Context, weekStart string, settledAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO leaderboard_settlements (week_start, settled_at)
		VALUES (?, ?)`,
		weekStart, formatTime(settledAt),
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

// IsWeekSettled reports whether a settlement row exists for the week.
func (s *Store) IsWeekSettled(ctx context.Context, weekStart string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leaderboard_settlements WHERE week_start = ?`,
		weekStart).Scan(&count)
	return count > 0, err
}

// InsertLeaderboardEntries writes a settled week's entries in one
// transaction and records the final entry count on the settlement row.
func (s *Store) InsertLeaderboardEntries(ctx context.Context, weekStart string, entries []*domain.WeeklyLeaderboardEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO weekly_leaderboard (
			user_id, week_start, week_end, total_duration_seconds,
			rank, rank_change, reading_days, books_read, likes_received, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.UserID,
			e.WeekStart,
			e.WeekEnd,
			e.TotalDurationSeconds,
			e.Rank,
			e.RankChange,
			e.ReadingDays,
			e.BooksRead,
			e.LikesReceived,
			formatTime(e.CreatedAt),
		); err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return store.ErrAlreadyExists
			}
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE leaderboard_settlements SET entry_count = ? WHERE week_start = ?`,
		len(entries), weekStart); err != nil {
		return err
	}

	return tx.Commit()
}

// GetLeaderboardEntries retrieves a settled week's entries in rank order,
// up to limit.
func (s *Store) GetLeaderboardEntries(ctx context.Context, weekStart string, limit int) ([]*domain.WeeklyLeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leaderboardColumns+` FROM weekly_leaderboard
		WHERE week_start = ? ORDER BY rank ASC LIMIT ?`, weekStart, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeaderboardEntries(rows)
}

// GetLeaderboardEntriesForUsers retrieves a settled week's entries for the
// given users only, in rank order.
func (s *Store) GetLeaderboardEntriesForUsers(ctx context.Context, weekStart string, userIDs []string) ([]*domain.WeeklyLeaderboardEntry, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(userIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(userIDs)+1)
	args = append(args, weekStart)
	for _, id := range userIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM weekly_leaderboard
		WHERE week_start = ? AND user_id IN (%s) ORDER BY rank ASC`,
		leaderboardColumns, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeaderboardEntries(rows)
}

// GetUserLeaderboardEntry retrieves one user's entry for a settled week.
// Returns store.ErrNotFound if the user didn't place that week.
func (s *Store) GetUserLeaderboardEntry(ctx context.Context, weekStart, userID string) (*domain.WeeklyLeaderboardEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leaderboardColumns+` FROM weekly_leaderboard
		WHERE week_start = ? AND user_id = ?`, weekStart, userID)

	e, err := scanLeaderboardEntry(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// CountLeaderboardEntries returns how many users placed in a settled week.
func (s *Store) CountLeaderboardEntries(ctx context.Context, weekStart string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM weekly_leaderboard WHERE week_start = ?`,
		weekStart).Scan(&count)
	return count, err
}

// GetWeekRanks returns every user's rank for a settled week, keyed by
// user id. Used to compute rank movement when settling the next week.
func (s *Store) GetWeekRanks(ctx context.Context, weekStart string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, rank FROM weekly_leaderboard WHERE week_start = ?`, weekStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ranks := make(map[string]int)
	for rows.Next() {
		var userID string
		var rank int
		if err := rows.Scan(&userID, &rank); err != nil {
			return nil, err
		}
		ranks[userID] = rank
	}
	return ranks, rows.Err()
}

// DeleteWeek removes a week's entries and its settlement claim so the
// week can be settled again. Only the reconciliation path uses this.
func (s *Store) DeleteWeek(ctx context.Context, weekStart string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM weekly_leaderboard WHERE week_start = ?`, weekStart); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM leaderboard_settlements WHERE week_start = ?`, weekStart); err != nil {
		return err
	}
	return tx.Commit()
}

func collectLeaderboardEntries(rows *sql.Rows) ([]*domain.WeeklyLeaderboardEntry, error) {
	var entries []*domain.WeeklyLeaderboardEntry
	for rows.Next() {
		e, err := scanLeaderboardEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
