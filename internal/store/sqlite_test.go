// ABOUTME: Tests for the SQLite store implementation
// ABOUTME: Covers session creation, duplicate detection, and listing order

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a SQLite store in a temp directory
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "charla.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_GetSession_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSession(context.Background(), "34600000001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_CreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	session := &Session{
		WaID:     "34600000001",
		ThreadID: "thread_abc",
	}
	require.NoError(t, s.CreateSession(ctx, session))

	got, err := s.GetSession(ctx, "34600000001")
	require.NoError(t, err)
	assert.Equal(t, "thread_abc", got.ThreadID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteStore_CreateSession_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, &Session{WaID: "34600000001", ThreadID: "thread_a"}))

	err := s.CreateSession(ctx, &Session{WaID: "34600000001", ThreadID: "thread_b"})
	assert.ErrorIs(t, err, ErrDuplicateSession)

	// The original mapping must survive
	got, err := s.GetSession(ctx, "34600000001")
	require.NoError(t, err)
	assert.Equal(t, "thread_a", got.ThreadID)
}

func TestSQLiteStore_ListSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, waID := range []string{"user-1", "user-2", "user-3"} {
		require.NoError(t, s.CreateSession(ctx, &Session{
			WaID:      waID,
			ThreadID:  "thread_" + waID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	sessions, err := s.ListSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "user-3", sessions[0].WaID)
	assert.Equal(t, "user-2", sessions[1].WaID)
}

func TestSQLiteStore_ConcurrentCreates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Concurrent creations for distinct users must not corrupt each other
	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			done <- s.CreateSession(ctx, &Session{
				WaID:     fmt.Sprintf("user-%d", n),
				ThreadID: fmt.Sprintf("thread-%d", n),
			})
		}(i)
	}
	for i := 0; i < 10; i++ {
		assert.NoError(t, <-done)
	}

	sessions, err := s.ListSessions(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, sessions, 10)
}
