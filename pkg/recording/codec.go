package recording

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a snapshot serialization format.
type Format string

const (
	// FormatJSON encodes binary payloads as base64 strings.
	FormatJSON Format = "json"
	// FormatYAML encodes binary payloads as !!binary scalars.
	FormatYAML Format = "yaml"
)

// FormatFromPath selects a format from a file extension. Unknown extensions
// select FormatJSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseFormat parses a format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown snapshot format: %s", name)
	}
}

// Encode writes snap to w.
func Encode(w io.Writer, snap *Snapshot, format Format) error {
	var err error
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(snap); err == nil {
			err = enc.Close()
		}
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(snap)
	}
	if err != nil {
		return NewCodecError(format, "encode", err)
	}
	return nil
}

// Decode reads and validates a snapshot from r.
func Decode(r io.Reader, format Format) (*Snapshot, error) {
	snap := &Snapshot{}
	var err error
	switch format {
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(snap)
	default:
		err = json.NewDecoder(r).Decode(snap)
	}
	if err != nil {
		return nil, NewCodecError(format, "decode", err)
	}
	if snap.Version == 0 {
		snap.Version = SnapshotVersion
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Save writes snap to path atomically, choosing the format from the file
// extension. Parent directories are created as needed.
func Save(path string, snap *Snapshot) error {
	format := FormatFromPath(path)

	var buf bytes.Buffer
	if err := Encode(&buf, snap, format); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewCodecError(format, "save", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return NewCodecError(format, "save", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return NewCodecError(format, "save", err)
	}
	if err := tmp.Close(); err != nil {
		return NewCodecError(format, "save", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return NewCodecError(format, "save", err)
	}
	return nil
}

// Load reads a snapshot from path, choosing the format from the file
// extension.
func Load(path string) (*Snapshot, error) {
	format := FormatFromPath(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, NewCodecError(format, "load", err)
	}
	defer f.Close()
	return Decode(f, format)
}
