// Package storage persists recorded sessions.
//
// A session is one recorder export: the snapshot produced by
// (*recorder.Recorder).Export together with its metadata. Sessions are keyed
// by the recorder ID, so saving the same recorder twice replaces the earlier
// copy.
//
// # Backends
//
//   - MemoryBackend keeps sessions in process memory. Intended for tests and
//     short-lived tools.
//   - SQLiteBackend stores sessions in a SQLite database. The driver is
//     selectable: "sqlite" (modernc.org/sqlite, pure Go) or "sqlite3"
//     (github.com/mattn/go-sqlite3, cgo).
//
// Both backends return deep copies; mutating a loaded snapshot never affects
// stored data.
//
// # Usage
//
//	backend, err := storage.New(cfg.Storage)
//	if err != nil {
//		return err
//	}
//	defer backend.Close()
//
//	session := storage.NewSession(rec.ID(), "checkout-flow", snap)
//	if err := backend.Save(ctx, session, snap); err != nil {
//		return err
//	}
//
// Retention pruning lives in the retention subpackage.
package storage
