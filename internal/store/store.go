// ABOUTME: Store interface and data types for charla persistence
// ABOUTME: Defines the Session record and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateSession is returned when trying to create a session that already exists
var ErrDuplicateSession = errors.New("session already exists")

// Session maps a WhatsApp user to their assistant conversation thread.
// At most one thread per wa_id; sessions are created lazily on first
// contact and never rotated.
type Session struct {
	WaID      string
	ThreadID  string
	CreatedAt time.Time
}

// Store defines the interface for session persistence
type Store interface {
	GetSession(ctx context.Context, waID string) (*Session, error)
	CreateSession(ctx context.Context, session *Session) error
	ListSessions(ctx context.Context, limit int) ([]*Session, error)

	// Close releases any resources held by the store
	Close() error
}
