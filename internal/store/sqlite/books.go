package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/readmarkapp/readmark-server/internal/domain"
	"github.com/readmarkapp/readmark-server/internal/store"
)

// CreateBook inserts a catalog entry.
// Returns store.ErrAlreadyExists if the book ID already exists.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, type, title, created_at)
		VALUES (?, ?, ?, ?)`,
		book.ID,
		string(book.Type),
		book.Title,
		formatTime(book.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetBook retrieves a catalog entry by ID.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	var book domain.Book
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, type, title, created_at FROM books WHERE id = ?`, id).Scan(
		&book.ID,
		&book.Type,
		&book.Title,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	book.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &book, nil
}
