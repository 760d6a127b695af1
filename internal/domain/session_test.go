package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestElapsedSeconds(t *testing.T) {
	start := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	sess := &ReadingSession{StartTime: start}

	assert.Equal(t, int64(0), sess.ElapsedSeconds(start))
	assert.Equal(t, int64(95), sess.ElapsedSeconds(start.Add(95*time.Second)))

	// Sub-second remainders truncate.
	assert.Equal(t, int64(95), sess.ElapsedSeconds(start.Add(95*time.Second+900*time.Millisecond)))

	// Clock behind the start time never yields a negative duration.
	assert.Equal(t, int64(0), sess.ElapsedSeconds(start.Add(-time.Minute)))
}

func TestBookTypeValid(t *testing.T) {
	assert.True(t, BookTypeEbook.Valid())
	assert.True(t, BookTypeMagazine.Valid())
	assert.True(t, BookTypeAudiobook.Valid())
	assert.False(t, BookType("newspaper").Valid())
}
