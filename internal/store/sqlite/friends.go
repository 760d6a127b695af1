package sqlite

import (
	"context"
	"time"
)

// AddFriend records a confirmed friendship in both directions.
func (s *Store) AddFriend(ctx context.Context, userID, friendID string) error {
	now := formatTime(time.Now().UTC())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_friends (user_id, friend_id, created_at)
		VALUES (?, ?, ?)`, userID, friendID, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_friends (user_id, friend_id, created_at)
		VALUES (?, ?, ?)`, friendID, userID, now); err != nil {
		return err
	}
	return tx.Commit()
}

// ListFriendIDs returns the ids of a user's confirmed friends.
func (s *Store) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT friend_id FROM user_friends WHERE user_id = ? ORDER BY friend_id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
