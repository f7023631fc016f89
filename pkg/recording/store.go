package recording

import (
	"log/slog"
	"sort"
	"sync"

	"mercator-hq/playback/pkg/fingerprint"
	"mercator-hq/playback/pkg/telemetry/logging"
)

// Source yields the current state of a recorded response. Live captures keep
// filling in representations after they are stored, so the store asks for a
// snapshot only when it is read.
type Source interface {
	Snapshot() *Response
}

type staticSource struct {
	res *Response
}

func (s staticSource) Snapshot() *Response {
	return s.res.Clone()
}

// Static wraps a finished Response as a Source.
func Static(res *Response) Source {
	return staticSource{res: res}
}

// Collision describes two distinct descriptors that produced the same
// identity.
type Collision struct {
	Identity fingerprint.Identity
	Existing *fingerprint.Descriptor
	Incoming *fingerprint.Descriptor
}

// StoreConfig contains configuration for a Store.
type StoreConfig struct {
	// IdentityFunc names the registered identity function. Empty selects
	// fingerprint.DefaultName.
	IdentityFunc string

	// IgnoreCollisions suppresses collision diagnostics. The later write
	// still overwrites the earlier one.
	IgnoreCollisions bool

	// OnCollision is called for every collision, regardless of
	// IgnoreCollisions.
	OnCollision func(Collision)

	// Redactor masks headers in collision diagnostics.
	Redactor *logging.Redactor

	Logger *slog.Logger
}

type entry struct {
	descriptor *fingerprint.Descriptor
	canonical  string
	source     Source
}

// Store maps request identities to descriptors and response sources.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[fingerprint.Identity]*entry
	order   []fingerprint.Identity

	identityName string
	identity     fingerprint.IdentityFunc
	config       StoreConfig
	logger       *slog.Logger
}

// NewStore creates an empty Store. It fails when cfg.IdentityFunc is not a
// registered identity function.
func NewStore(cfg StoreConfig) (*Store, error) {
	fn, err := fingerprint.Lookup(cfg.IdentityFunc)
	if err != nil {
		return nil, err
	}
	name := cfg.IdentityFunc
	if name == "" {
		name = fingerprint.DefaultName
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Redactor == nil {
		cfg.Redactor = logging.NewRedactor(nil)
	}

	return &Store{
		entries:      make(map[fingerprint.Identity]*entry),
		identityName: name,
		identity:     fn,
		config:       cfg,
		logger:       logger.With("component", "recording.store"),
	}, nil
}

// IdentityFuncName returns the name of the store's identity function.
func (s *Store) IdentityFuncName() string {
	return s.identityName
}

// Identify computes the identity of d with the store's identity function.
func (s *Store) Identify(d *fingerprint.Descriptor) fingerprint.Identity {
	return s.identity(d)
}

// Put stores d and src under the identity of d and returns that identity.
//
// A descriptor identical to the one already stored keeps the earlier
// recording and Put reports false. A different descriptor with the same
// identity is a collision: it is reported and then overwrites the earlier
// entry.
func (s *Store) Put(d *fingerprint.Descriptor, src Source) (fingerprint.Identity, bool) {
	id := s.identity(d)
	canonical := fingerprint.Canonical(d)

	s.mu.Lock()
	existing, ok := s.entries[id]
	if ok && existing.canonical == canonical {
		s.mu.Unlock()
		return id, false
	}
	s.entries[id] = &entry{descriptor: d, canonical: canonical, source: src}
	if !ok {
		s.order = append(s.order, id)
	}
	s.mu.Unlock()

	if ok {
		s.reportCollision(Collision{Identity: id, Existing: existing.descriptor, Incoming: d})
	}
	return id, true
}

func (s *Store) reportCollision(c Collision) {
	if s.config.OnCollision != nil {
		s.config.OnCollision(c)
	}
	if s.config.IgnoreCollisions {
		return
	}

	r := s.config.Redactor
	s.logger.Warn("identity collision, later recording overwrites earlier one",
		"identity", c.Identity,
		"identity_func", s.identityName,
		"existing_method", c.Existing.Method,
		"existing_url", r.RedactString(c.Existing.URL),
		"existing_headers", r.RedactHeaders(c.Existing.Header),
		"incoming_method", c.Incoming.Method,
		"incoming_url", r.RedactString(c.Incoming.URL),
		"incoming_headers", r.RedactHeaders(c.Incoming.Header),
	)
}

// Contains reports whether id is stored.
func (s *Store) Contains(id fingerprint.Identity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Lookup returns the descriptor and a snapshot of the response stored under
// id.
func (s *Store) Lookup(id fingerprint.Identity) (*fingerprint.Descriptor, *Response, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, false
	}
	return e.descriptor, e.source.Snapshot(), true
}

// Identities returns the stored identities in insertion order.
func (s *Store) Identities() []fingerprint.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fingerprint.Identity, len(s.order))
	copy(out, s.order)
	return out
}

// IdentitiesForURL returns the identities whose descriptor has the given
// URL, in insertion order.
func (s *Store) IdentitiesForURL(rawURL string) []fingerprint.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []fingerprint.Identity
	for _, id := range s.order {
		if s.entries[id].descriptor.URL == rawURL {
			out = append(out, id)
		}
	}
	return out
}

// Descriptors returns the descriptor table.
func (s *Store) Descriptors() map[fingerprint.Identity]*fingerprint.Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[fingerprint.Identity]*fingerprint.Descriptor, len(s.entries))
	for id, e := range s.entries {
		out[id] = e.descriptor
	}
	return out
}

// Responses returns snapshots of every stored response.
func (s *Store) Responses() map[fingerprint.Identity]*Response {
	s.mu.RLock()
	entries := make(map[fingerprint.Identity]Source, len(s.entries))
	for id, e := range s.entries {
		entries[id] = e.source
	}
	s.mu.RUnlock()

	out := make(map[fingerprint.Identity]*Response, len(entries))
	for id, src := range entries {
		out[id] = src.Snapshot()
	}
	return out
}

// Len returns the number of stored identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot exports the store.
func (s *Store) Snapshot() *Snapshot {
	return &Snapshot{
		Version:      SnapshotVersion,
		IdentityFunc: s.identityName,
		Descriptors:  s.Descriptors(),
		Responses:    s.Responses(),
	}
}

// FromSnapshot builds a Store from snap using the identity function the
// snapshot names. Identities are recomputed from the descriptors so that
// collisions inside the snapshot are detected and reported. Entries are
// inserted in sorted identity order.
func FromSnapshot(snap *Snapshot, cfg StoreConfig) (*Store, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	cfg.IdentityFunc = snap.IdentityFunc
	s, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(snap.Descriptors))
	for id := range snap.Descriptors {
		keys = append(keys, string(id))
	}
	sort.Strings(keys)

	for _, key := range keys {
		id := fingerprint.Identity(key)
		d := snap.Descriptors[id]
		got, _ := s.Put(d, Static(snap.Responses[id]))
		if got != id {
			s.logger.Debug("snapshot identity differs from recomputed identity",
				"stored", id,
				"recomputed", got,
			)
		}
	}
	return s, nil
}
