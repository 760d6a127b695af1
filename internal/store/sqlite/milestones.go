package sqlite

import (
	"context"
	"database/sql"

	"github.com/readmarkapp/readmark-server/internal/domain"
	"github.com/readmarkapp/readmark-server/internal/store"
)

// milestoneColumns is the ordered list of columns selected in milestone queries.
// Must match the scan order in scanMilestone.
const milestoneColumns = `id, user_id, type, value, book_id, title, description, achieved_at`

// scanMilestone scans a sql.Row (or sql.Rows via its Scan method) into a domain.Milestone.
func scanMilestone(scanner interface{ Scan(dest ...any) error }) (*domain.Milestone, error) {
	var m domain.Milestone

	var (
		bookID      sql.NullString
		description sql.NullString
		achievedAt  string
	)

	err := scanner.Scan(
		&m.ID,
		&m.UserID,
		&m.Type,
		&m.Value,
		&bookID,
		&m.Title,
		&description,
		&achievedAt,
	)
	if err != nil {
		return nil, err
	}

	if bookID.Valid {
		m.BookID = bookID.String
	}
	if description.Valid {
		m.Description = description.String
	}

	m.AchievedAt, err = parseTime(achievedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMilestone records a milestone if the user hasn't already earned
// it. Returns false when the (user, type, value) row already exists, so
// concurrent detection of the same threshold stays idempotent.
func (s *Store) InsertMilestone(ctx context.Context, m *domain.Milestone) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO milestones (
			id, user_id, type, value, book_id, title, description, achieved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.UserID,
		string(m.Type),
		m.Value,
		nullString(m.BookID),
		m.Title,
		nullString(m.Description),
		formatTime(m.AchievedAt),
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

// GetMilestone retrieves a milestone by ID.
// Returns store.ErrNotFound if the milestone does not exist.
func (s *Store) GetMilestone(ctx context.Context, id string) (*domain.Milestone, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = ?`, id)

	m, err := scanMilestone(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMilestones retrieves a user's milestones, most recent first, up to limit.
func (s *Store) ListMilestones(ctx context.Context, userID string, limit int) ([]*domain.Milestone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones
		WHERE user_id = ? ORDER BY achieved_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMilestones(rows)
}

// ListMilestonesInRange retrieves a user's milestones achieved in the
// inclusive timestamp range, oldest first. Used for calendar views.
func (s *Store) ListMilestonesInRange(ctx context.Context, userID, startDate, endDate string) ([]*domain.Milestone, error) {
	// achieved_at is a full timestamp; a date-string comparison needs the
	// end bound pushed to the last instant of its day.
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones
		WHERE user_id = ? AND achieved_at >= ? AND achieved_at <= ?
		ORDER BY achieved_at ASC`,
		userID, startDate, endDate+"T23:59:59.999999999Z")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMilestones(rows)
}

func collectMilestones(rows *sql.Rows) ([]*domain.Milestone, error) {
	var milestones []*domain.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return milestones, nil
}
