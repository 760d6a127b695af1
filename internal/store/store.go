// Package store defines storage errors and the collaborator interfaces the
// reading pipeline depends on.
package store

import (
	"context"

	"github.com/readmarkapp/readmark-server/internal/domain"
)

// Catalog resolves book metadata. The reading pipeline only needs enough of
// the catalog to validate session references and label leaderboard entries.
type Catalog interface {
	// GetBook returns the book with the given id, or ErrNotFound.
	GetBook(ctx context.Context, bookID string) (*domain.Book, error)
}

// FriendLister returns the social graph slice needed for friend-scoped
// leaderboards.
type FriendLister interface {
	// ListFriendIDs returns the ids of the user's confirmed friends,
	// not including the user themselves.
	ListFriendIDs(ctx context.Context, userID string) ([]string, error)
}
