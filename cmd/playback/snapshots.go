package main

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/playback/pkg/config"
	"mercator-hq/playback/pkg/recording"
	"mercator-hq/playback/pkg/storage"
)

// snapshotSource names where a snapshot is read from: a file path or a
// stored session id. Exactly one must be set.
type snapshotSource struct {
	Path    string
	Session string
}

func (s snapshotSource) String() string {
	if s.Session != "" {
		return "session " + s.Session
	}
	return s.Path
}

func (s snapshotSource) validate() error {
	switch {
	case s.Path == "" && s.Session == "":
		return errors.New("a snapshot file or --session is required")
	case s.Path != "" && s.Session != "":
		return errors.New("a snapshot file and --session are mutually exclusive")
	}
	return nil
}

// loadSnapshot reads the snapshot named by src.
func loadSnapshot(ctx context.Context, cfg *config.Config, src snapshotSource) (*recording.Snapshot, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	if src.Path != "" {
		return recording.Load(src.Path)
	}

	backend, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, err
	}
	defer backend.Close()

	snap, err := backend.Load(ctx, src.Session)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", src.Session, err)
	}
	return snap, nil
}

// saveSession stores snap in the configured backend under id.
func saveSession(ctx context.Context, cfg *config.Config, id, name string, snap *recording.Snapshot) error {
	backend, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	return backend.Save(ctx, storage.NewSession(id, name, snap), snap)
}
