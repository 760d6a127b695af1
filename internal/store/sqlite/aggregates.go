package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/readmarkapp/readmark-server/internal/domain"
)

// AddDailyContribution folds an additive delta into the (user, date)
// bucket and returns the bucket's new duration total. The upsert is a
// single atomic increment, so concurrent contributions for the same day
// all land; the caller detects the first contribution of a day by
// comparing the returned total against the delta.
func (s *Store) AddDailyContribution(ctx context.Context, userID, date string, c domain.Contribution, now time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var newTotal int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO daily_aggregates (
			user_id, date, total_duration_seconds, books_finished,
			pages_read, notes_created, highlights_created, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			total_duration_seconds = total_duration_seconds + excluded.total_duration_seconds,
			books_finished = books_finished + excluded.books_finished,
			pages_read = pages_read + excluded.pages_read,
			notes_created = notes_created + excluded.notes_created,
			highlights_created = highlights_created + excluded.highlights_created,
			updated_at = excluded.updated_at
		RETURNING total_duration_seconds`,
		userID, date,
		c.DurationSeconds, c.BooksFinished,
		c.PagesRead, c.NotesCreated, c.HighlightsCreated,
		formatTime(now),
	).Scan(&newTotal)
	if err != nil {
		return 0, fmt.Errorf("upsert daily aggregate: %w", err)
	}

	// Attribute duration to the book and its category.
	if c.BookID != "" && c.DurationSeconds > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO daily_book_durations (user_id, date, book_id, duration_seconds)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, date, book_id) DO UPDATE SET
				duration_seconds = duration_seconds + excluded.duration_seconds`,
			userID, date, c.BookID, c.DurationSeconds,
		); err != nil {
			return 0, fmt.Errorf("upsert book duration: %w", err)
		}
	}
	if c.Category != "" && c.DurationSeconds > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO daily_category_durations (user_id, date, category, duration_seconds)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, date, category) DO UPDATE SET
				duration_seconds = duration_seconds + excluded.duration_seconds`,
			userID, date, c.Category, c.DurationSeconds,
		); err != nil {
			return 0, fmt.Errorf("upsert category duration: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newTotal, nil
}

// GetDailyAggregate retrieves one day bucket with its per-book and
// per-category splits. Returns nil, nil if no contributions exist for
// the day.
func (s *Store) GetDailyAggregate(ctx context.Context, userID, date string) (*domain.DailyAggregate, error) {
	var agg domain.DailyAggregate
	var updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, date, total_duration_seconds, books_finished,
			pages_read, notes_created, highlights_created, updated_at
		FROM daily_aggregates WHERE user_id = ? AND date = ?`,
		userID, date).Scan(
		&agg.UserID,
		&agg.Date,
		&agg.TotalDurationSeconds,
		&agg.BooksFinished,
		&agg.PagesRead,
		&agg.NotesCreated,
		&agg.HighlightsCreated,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	agg.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	agg.BookDurations, err = s.dayBookDurations(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	agg.BooksRead = len(agg.BookDurations)

	agg.CategoryDurations, err = s.dayCategoryDurations(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	return &agg, nil
}

// ListDailyAggregates retrieves day buckets in the inclusive date range,
// oldest first, with per-book counts but without the split maps.
func (s *Store) ListDailyAggregates(ctx context.Context, userID, startDate, endDate string) ([]*domain.DailyAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.user_id, a.date, a.total_duration_seconds, a.books_finished,
			a.pages_read, a.notes_created, a.highlights_created, a.updated_at,
			(SELECT COUNT(*) FROM daily_book_durations b
			 WHERE b.user_id = a.user_id AND b.date = a.date) AS books_read
		FROM daily_aggregates a
		WHERE a.user_id = ? AND a.date >= ? AND a.date <= ?
		ORDER BY a.date ASC`,
		userID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aggs []*domain.DailyAggregate
	for rows.Next() {
		var agg domain.DailyAggregate
		var updatedAt string

		if err := rows.Scan(
			&agg.UserID,
			&agg.Date,
			&agg.TotalDurationSeconds,
			&agg.BooksFinished,
			&agg.PagesRead,
			&agg.NotesCreated,
			&agg.HighlightsCreated,
			&updatedAt,
			&agg.BooksRead,
		); err != nil {
			return nil, err
		}

		agg.UpdatedAt, err = parseTime(updatedAt)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, &agg)
	}
	return aggs, rows.Err()
}

// GetDayDuration returns one day bucket's duration total, zero when the
// bucket doesn't exist.
func (s *Store) GetDayDuration(ctx context.Context, userID, date string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_duration_seconds), 0)
		FROM daily_aggregates WHERE user_id = ? AND date = ?`,
		userID, date).Scan(&total)
	return total, err
}

// RangeTotals is the rollup of a user's day buckets over a date range.
type RangeTotals struct {
	DurationSeconds   int64
	ReadingDays       int
	BooksRead         int
	BooksFinished     int
	PagesRead         int
	NotesCreated      int
	HighlightsCreated int
}

// SumRange rolls up a user's day buckets over the inclusive date range.
// Empty bounds mean unbounded on that side. Missing data yields zeros,
// never an error.
func (s *Store) SumRange(ctx context.Context, userID, startDate, endDate string) (RangeTotals, error) {
	var t RangeTotals

	query := `
		SELECT COALESCE(SUM(total_duration_seconds), 0),
			COUNT(CASE WHEN total_duration_seconds > 0 THEN 1 END),
			COALESCE(SUM(books_finished), 0),
			COALESCE(SUM(pages_read), 0),
			COALESCE(SUM(notes_created), 0),
			COALESCE(SUM(highlights_created), 0)
		FROM daily_aggregates WHERE user_id = ?`
	args := []any{userID}
	if startDate != "" {
		query += ` AND date >= ?`
		args = append(args, startDate)
	}
	if endDate != "" {
		query += ` AND date <= ?`
		args = append(args, endDate)
	}

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&t.DurationSeconds,
		&t.ReadingDays,
		&t.BooksFinished,
		&t.PagesRead,
		&t.NotesCreated,
		&t.HighlightsCreated,
	)
	if err != nil {
		return RangeTotals{}, err
	}

	// Distinct books come from the per-book split, not the day buckets.
	bookQuery := `SELECT COUNT(DISTINCT book_id) FROM daily_book_durations WHERE user_id = ?`
	bookArgs := []any{userID}
	if startDate != "" {
		bookQuery += ` AND date >= ?`
		bookArgs = append(bookArgs, startDate)
	}
	if endDate != "" {
		bookQuery += ` AND date <= ?`
		bookArgs = append(bookArgs, endDate)
	}
	if err := s.db.QueryRowContext(ctx, bookQuery, bookArgs...).Scan(&t.BooksRead); err != nil {
		return RangeTotals{}, err
	}

	return t, nil
}

// CategoryDurationsInRange rolls up per-category durations over the
// inclusive date range.
func (s *Store) CategoryDurationsInRange(ctx context.Context, userID, startDate, endDate string) (map[string]int64, error) {
	query := `
		SELECT category, COALESCE(SUM(duration_seconds), 0)
		FROM daily_category_durations WHERE user_id = ?`
	args := []any{userID}
	if startDate != "" {
		query += ` AND date >= ?`
		args = append(args, startDate)
	}
	if endDate != "" {
		query += ` AND date <= ?`
		args = append(args, endDate)
	}
	query += ` GROUP BY category`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	durations := make(map[string]int64)
	for rows.Next() {
		var category string
		var duration int64
		if err := rows.Scan(&category, &duration); err != nil {
			return nil, err
		}
		durations[category] = duration
	}
	return durations, rows.Err()
}

// UserRangeTotal is one user's rollup over a date range, used to rank
// leaderboard candidates.
type UserRangeTotal struct {
	UserID          string
	DurationSeconds int64
	ReadingDays     int
	BooksRead       int
}

// RangeTotalsByUser rolls up every user's day buckets over the inclusive
// date range, ordered by duration descending with ties broken by user id
// ascending. Users with zero duration are excluded.
func (s *Store) RangeTotalsByUser(ctx context.Context, startDate, endDate string, limit int) ([]UserRangeTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.user_id,
			SUM(a.total_duration_seconds) AS total,
			COUNT(CASE WHEN a.total_duration_seconds > 0 THEN 1 END),
			(SELECT COUNT(DISTINCT b.book_id) FROM daily_book_durations b
			 WHERE b.user_id = a.user_id AND b.date >= ? AND b.date <= ?)
		FROM daily_aggregates a
		WHERE a.date >= ? AND a.date <= ?
		GROUP BY a.user_id
		HAVING total > 0
		ORDER BY total DESC, a.user_id ASC
		LIMIT ?`,
		startDate, endDate, startDate, endDate, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []UserRangeTotal
	for rows.Next() {
		var t UserRangeTotal
		if err := rows.Scan(&t.UserID, &t.DurationSeconds, &t.ReadingDays, &t.BooksRead); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// DeleteAllAggregates clears every day bucket and split row. Only the
// reconciliation job uses this, immediately before a rebuild.
func (s *Store) DeleteAllAggregates(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"daily_aggregates", "daily_book_durations", "daily_category_durations"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (s *Store) dayBookDurations(ctx context.Context, userID, date string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT book_id, duration_seconds FROM daily_book_durations
		WHERE user_id = ? AND date = ?`, userID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	durations := make(map[string]int64)
	for rows.Next() {
		var bookID string
		var duration int64
		if err := rows.Scan(&bookID, &duration); err != nil {
			return nil, err
		}
		durations[bookID] = duration
	}
	return durations, rows.Err()
}

func (s *Store) dayCategoryDurations(ctx context.Context, userID, date string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, duration_seconds FROM daily_category_durations
		WHERE user_id = ? AND date = ?`, userID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	durations := make(map[string]int64)
	for rows.Next() {
		var category string
		var duration int64
		if err := rows.Scan(&category, &duration); err != nil {
			return nil, err
		}
		durations[category] = duration
	}
	return durations, rows.Err()
}
