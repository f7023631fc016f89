package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // "sqlite3" driver (cgo)
	_ "modernc.org/sqlite"          // "sqlite" driver (pure Go)

	"mercator-hq/playback/pkg/config"
	"mercator-hq/playback/pkg/fingerprint"
	"mercator-hq/playback/pkg/recording"
)

// Driver names accepted by SQLiteConfig.Driver.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver is DriverModernc or DriverMattn.
	// Default: DriverModernc
	Driver string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         config.DefaultSQLitePath,
		Driver:       DriverModernc,
		MaxOpenConns: config.DefaultSQLiteMaxOpenConns,
		MaxIdleConns: config.DefaultSQLiteMaxIdleConns,
		WALMode:      true,
		BusyTimeout:  config.DefaultSQLiteBusyTimeout,
	}
}

// SQLiteConfigFrom maps the storage.sqlite section onto a SQLiteConfig.
func SQLiteConfigFrom(cfg config.SQLiteConfig) *SQLiteConfig {
	return &SQLiteConfig{
		Path:         cfg.Path,
		Driver:       cfg.Driver,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		WALMode:      cfg.WALMode,
		BusyTimeout:  cfg.BusyTimeout,
	}
}

// dsn builds a data source name carrying the per-connection pragmas in the
// form each driver understands.
func (c *SQLiteConfig) dsn() string {
	ms := c.BusyTimeout.Milliseconds()
	if c.Driver == DriverMattn {
		dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", c.Path, ms)
		if c.WALMode {
			dsn += "&_journal_mode=WAL"
		}
		return dsn
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", c.Path, ms)
	if c.WALMode {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	return dsn
}

// SQLiteBackend implements Backend using SQLite.
type SQLiteBackend struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteBackend opens (creating if needed) the database at config.Path
// and initializes the schema.
func NewSQLiteBackend(cfg *SQLiteConfig) (*SQLiteBackend, error) {
	if cfg == nil {
		cfg = DefaultSQLiteConfig()
	}
	if cfg.Path == "" {
		return nil, NewStorageError("sqlite", "open", errors.New("db path cannot be empty"))
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverMattn {
		return nil, NewStorageError("sqlite", "open", fmt.Errorf("unknown driver %q", cfg.Driver))
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = config.DefaultSQLiteBusyTimeout
	}

	logger := slog.Default().With("component", "storage.sqlite")

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, NewStorageError("sqlite", "open", err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.dsn())
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	s := &SQLiteBackend{db: db, config: cfg, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALMode,
	)
	return s, nil
}

func (s *SQLiteBackend) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Save stores snap under session.ID in a single transaction.
func (s *SQLiteBackend) Save(ctx context.Context, session *Session, snap *recording.Snapshot) error {
	if err := validateSession("sqlite", session, snap); err != nil {
		return err
	}
	created := session.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("sqlite", "save", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recordings WHERE session_id = ?`, session.ID); err != nil {
		return NewStorageError("sqlite", "save", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, name, identity_func, snapshot_version, recordings, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			identity_func = excluded.identity_func,
			snapshot_version = excluded.snapshot_version,
			recordings = excluded.recordings,
			created_at = excluded.created_at`,
		session.ID, session.Name, snap.IdentityFunc, snap.Version, len(snap.Descriptors), created.UnixMilli(),
	)
	if err != nil {
		return NewStorageError("sqlite", "save", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recordings (session_id, identity, method, url, request, response)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return NewStorageError("sqlite", "save", err)
	}
	defer stmt.Close()

	for _, id := range snap.Identities() {
		d := snap.Descriptors[id]
		req, err := json.Marshal(d)
		if err != nil {
			return NewStorageError("sqlite", "save", fmt.Errorf("encoding request %s: %w", id, err))
		}
		res, err := json.Marshal(snap.Responses[id])
		if err != nil {
			return NewStorageError("sqlite", "save", fmt.Errorf("encoding response %s: %w", id, err))
		}
		if _, err := stmt.ExecContext(ctx, session.ID, string(id), d.Method, d.URL, string(req), string(res)); err != nil {
			return NewStorageError("sqlite", "save", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError("sqlite", "save", err)
	}
	s.logger.Debug("session saved", "session", session.ID, "recordings", len(snap.Descriptors))
	return nil
}

// Load rebuilds the snapshot of id.
func (s *SQLiteBackend) Load(ctx context.Context, id string) (*recording.Snapshot, error) {
	var identityFunc string
	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT identity_func, snapshot_version FROM sessions WHERE id = ?`, id,
	).Scan(&identityFunc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStorageError("sqlite", "load", ErrNotFound)
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "load", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT identity, request, response FROM recordings WHERE session_id = ?`, id)
	if err != nil {
		return nil, NewStorageError("sqlite", "load", err)
	}
	defer rows.Close()

	snap := recording.NewSnapshot(identityFunc)
	snap.Version = version
	for rows.Next() {
		var key, req, res string
		if err := rows.Scan(&key, &req, &res); err != nil {
			return nil, NewStorageError("sqlite", "load", err)
		}
		d := &fingerprint.Descriptor{}
		if err := json.Unmarshal([]byte(req), d); err != nil {
			return nil, NewStorageError("sqlite", "load", fmt.Errorf("decoding request %s: %w", key, err))
		}
		r := &recording.Response{}
		if err := json.Unmarshal([]byte(res), r); err != nil {
			return nil, NewStorageError("sqlite", "load", fmt.Errorf("decoding response %s: %w", key, err))
		}
		snap.Descriptors[fingerprint.Identity(key)] = d
		snap.Responses[fingerprint.Identity(key)] = r
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "load", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, NewStorageError("sqlite", "load", err)
	}
	return snap, nil
}

// Get returns the metadata of id.
func (s *SQLiteBackend) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, identity_func, recordings, created_at FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStorageError("sqlite", "get", ErrNotFound)
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get", err)
	}
	return session, nil
}

// Sessions lists sessions, newest first.
func (s *SQLiteBackend) Sessions(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, identity_func, recordings, created_at FROM sessions ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, NewStorageError("sqlite", "sessions", err)
	}
	defer rows.Close()

	out := []*Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "sessions", err)
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "sessions", err)
	}
	return out, nil
}

// Delete removes id and its recordings.
func (s *SQLiteBackend) Delete(ctx context.Context, id string) error {
	n, err := s.deleteWhere(ctx, `id = ?`, id)
	if err != nil {
		return NewStorageError("sqlite", "delete", err)
	}
	if n == 0 {
		return NewStorageError("sqlite", "delete", ErrNotFound)
	}
	return nil
}

// Prune removes sessions created before cutoff.
func (s *SQLiteBackend) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.deleteWhere(ctx, `created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	if n > 0 {
		s.logger.Info("pruned sessions", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func (s *SQLiteBackend) deleteWhere(ctx context.Context, where string, arg any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM recordings WHERE session_id IN (SELECT id FROM sessions WHERE `+where+`)`, arg); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE `+where, arg)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// Close closes the database.
func (s *SQLiteBackend) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var session Session
	var created int64
	if err := row.Scan(&session.ID, &session.Name, &session.IdentityFunc, &session.Recordings, &created); err != nil {
		return nil, err
	}
	session.CreatedAt = time.UnixMilli(created).UTC()
	return &session, nil
}
