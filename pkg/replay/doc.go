// Package replay serves recorded responses in place of live network calls.
//
// An Engine is built once from a recording.Snapshot. It fingerprints every
// outgoing request with the identity function named by the snapshot, never a
// caller supplied one, and answers hits with a reconstructed response
// without touching the network.
//
// On a miss the Fallback hook is called with a *Miss describing the request,
// its identity and the recorded tables. A non-nil response from the hook is
// returned to the caller. Otherwise the MissPolicy decides: MissPassThrough
// sends the request to the next transport, MissFail returns a *MissError
// wrapping ErrNoMatch.
//
//	snap, err := recording.Load("users.json")
//	engine, err := replay.New(snap, replay.Options{
//	    Fallback: func(ctx context.Context, m *replay.Miss) (*http.Response, error) {
//	        log.Printf("near misses for %s: %v", m.Descriptor.URL, m.IdentitiesForURL(m.Descriptor.URL))
//	        return nil, nil
//	    },
//	})
//	release := engine.Install(intercept.Default)
//	defer release()
//
// A Watcher keeps an Engine in sync with a snapshot file and swaps in a new
// Engine whenever the file is rewritten.
package replay
