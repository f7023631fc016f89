package recording

import (
	"fmt"
	"sort"

	"mercator-hq/playback/pkg/fingerprint"
)

// SnapshotVersion is the current snapshot layout version.
const SnapshotVersion = 1

// Snapshot is the persistable form of a Store: the name of the identity
// function that produced its keys, the descriptor table and the response
// table, both keyed by identity.
type Snapshot struct {
	Version      int                                              `json:"version" yaml:"version"`
	IdentityFunc string                                           `json:"identityFunc" yaml:"identityFunc"`
	Descriptors  map[fingerprint.Identity]*fingerprint.Descriptor `json:"requests" yaml:"requests"`
	Responses    map[fingerprint.Identity]*Response               `json:"responses" yaml:"responses"`
}

// NewSnapshot returns an empty snapshot for the named identity function.
func NewSnapshot(identityFunc string) *Snapshot {
	if identityFunc == "" {
		identityFunc = fingerprint.DefaultName
	}
	return &Snapshot{
		Version:      SnapshotVersion,
		IdentityFunc: identityFunc,
		Descriptors:  make(map[fingerprint.Identity]*fingerprint.Descriptor),
		Responses:    make(map[fingerprint.Identity]*Response),
	}
}

// Identities returns the snapshot keys in sorted order.
func (s *Snapshot) Identities() []fingerprint.Identity {
	keys := make([]string, 0, len(s.Descriptors))
	for id := range s.Descriptors {
		keys = append(keys, string(id))
	}
	sort.Strings(keys)
	out := make([]fingerprint.Identity, len(keys))
	for i, k := range keys {
		out[i] = fingerprint.Identity(k)
	}
	return out
}

// Validate checks that every descriptor has a method, a URL and a matching
// response with a status. It returns a *MalformedError naming the first
// offending field in identity order.
func (s *Snapshot) Validate() error {
	if s == nil {
		return NewMalformedError("snapshot", "missing")
	}
	if s.Version > SnapshotVersion {
		return NewMalformedError("version", fmt.Sprintf("unsupported version %d", s.Version))
	}
	if s.Descriptors == nil {
		return NewMalformedError("requests", "missing")
	}
	if s.Responses == nil {
		return NewMalformedError("responses", "missing")
	}

	for _, id := range s.Identities() {
		d := s.Descriptors[id]
		switch {
		case d == nil:
			return NewMalformedError(fmt.Sprintf("requests[%s]", id), "missing")
		case d.Method == "":
			return NewMalformedError(fmt.Sprintf("requests[%s].method", id), "missing")
		case d.URL == "":
			return NewMalformedError(fmt.Sprintf("requests[%s].url", id), "missing")
		}

		res, ok := s.Responses[id]
		switch {
		case !ok || res == nil:
			return NewMalformedError(fmt.Sprintf("responses[%s]", id), "missing")
		case res.Status == 0:
			return NewMalformedError(fmt.Sprintf("responses[%s].status", id), "missing")
		}
	}
	return nil
}
