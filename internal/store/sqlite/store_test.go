package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/readmarkapp/readmark-server/internal/domain"
	"github.com/readmarkapp/readmark-server/internal/store/sqlite"
)

func setupTestStore(t *testing.T) (*sqlite.Store, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "readmark-store-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := sqlite.Open(dbPath, nil)
	require.NoError(t, err)

	cleanup := func() {
		s.Close()
		os.RemoveAll(tmpDir)
	}
	return s, cleanup
}

func createTestSession(t *testing.T, s *sqlite.Store, id, userID, bookID string, start time.Time) *domain.ReadingSession {
	t.Helper()
	sess := &domain.ReadingSession{
		ID:        id,
		UserID:    userID,
		BookID:    bookID,
		BookType:  domain.BookTypeEbook,
		StartTime: start,
		Active:    true,
		CreatedAt: start,
		UpdatedAt: start,
	}
	require.NoError(t, s.CreateReadingSession(context.Background(), sess))
	return sess
}

func TestPing(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	require.NoError(t, s.Ping(context.Background()))
}
