package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"mercator-hq/playback/pkg/recording"
)

type memoryEntry struct {
	session Session
	data    []byte
}

// MemoryBackend implements Backend using an in-memory map.
// Snapshots are held in their encoded form, so every Load is a fresh copy.
type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
}

// NewMemoryBackend creates a new in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: make(map[string]*memoryEntry)}
}

// Save stores snap under session.ID.
func (m *MemoryBackend) Save(ctx context.Context, session *Session, snap *recording.Snapshot) error {
	if err := validateSession("memory", session, snap); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := recording.Encode(&buf, snap, recording.FormatJSON); err != nil {
		return NewStorageError("memory", "save", err)
	}

	stored := *session
	stored.IdentityFunc = snap.IdentityFunc
	stored.Recordings = len(snap.Descriptors)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = &memoryEntry{session: stored, data: buf.Bytes()}
	return nil
}

// Load decodes the stored snapshot of id.
func (m *MemoryBackend) Load(ctx context.Context, id string) (*recording.Snapshot, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, NewStorageError("memory", "load", ErrNotFound)
	}
	snap, err := recording.Decode(bytes.NewReader(e.data), recording.FormatJSON)
	if err != nil {
		return nil, NewStorageError("memory", "load", err)
	}
	return snap, nil
}

// Get returns the metadata of id.
func (m *MemoryBackend) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, NewStorageError("memory", "get", ErrNotFound)
	}
	s := e.session
	return &s, nil
}

// Sessions lists sessions, newest first.
func (m *MemoryBackend) Sessions(ctx context.Context) ([]*Session, error) {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		s := e.session
		out = append(out, &s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes id.
func (m *MemoryBackend) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return NewStorageError("memory", "delete", ErrNotFound)
	}
	delete(m.sessions, id)
	return nil
}

// Prune removes sessions created before cutoff.
func (m *MemoryBackend) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.sessions {
		if e.session.CreatedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Close is a no-op.
func (m *MemoryBackend) Close() error {
	return nil
}
