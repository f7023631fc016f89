package storage

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/playback/pkg/config"
	"mercator-hq/playback/pkg/recording"
)

// Session describes one stored recording session.
type Session struct {
	ID           string
	Name         string
	IdentityFunc string
	Recordings   int
	CreatedAt    time.Time
}

// NewSession describes snap under id. CreatedAt is set to now.
func NewSession(id, name string, snap *recording.Snapshot) *Session {
	return &Session{
		ID:           id,
		Name:         name,
		IdentityFunc: snap.IdentityFunc,
		Recordings:   len(snap.Descriptors),
		CreatedAt:    time.Now().UTC(),
	}
}

// Backend stores and retrieves recording sessions.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Save stores snap under session.ID, replacing any previous session
	// with the same ID.
	Save(ctx context.Context, session *Session, snap *recording.Snapshot) error

	// Load returns the snapshot of a session, or ErrNotFound.
	Load(ctx context.Context, id string) (*recording.Snapshot, error)

	// Get returns the metadata of a session, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Sessions lists stored sessions, newest first.
	Sessions(ctx context.Context) ([]*Session, error)

	// Delete removes a session, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Prune removes sessions created before cutoff and returns how many
	// were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases backend resources.
	Close() error
}

// New creates the backend selected by cfg.Backend.
func New(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryBackend(), nil
	case "sqlite", "":
		return NewSQLiteBackend(SQLiteConfigFrom(cfg.SQLite))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func validateSession(backend string, session *Session, snap *recording.Snapshot) error {
	if session == nil || session.ID == "" {
		return NewStorageError(backend, "save", fmt.Errorf("session id is required"))
	}
	if err := snap.Validate(); err != nil {
		return NewStorageError(backend, "save", err)
	}
	return nil
}
