// Playback records HTTP traffic into snapshot files and replays it.
//
// It works with snapshots produced by the recorder package or imported from
// HAR archives, and can run as a local proxy that either records live
// traffic or answers requests from a snapshot.
//
// Usage:
//
//	# Import a browser HAR export
//	playback import session.har -o fixtures/session.json
//
//	# List the identities in a snapshot
//	playback inspect fixtures/session.json
//
//	# Serve a snapshot as a replaying proxy, reloading it on change
//	playback serve --snapshot fixtures/session.json --watch
//
//	# Record through the proxy and save on shutdown
//	playback serve --mode record --output fixtures/new.yaml
package main

import "os"

func main() {
	os.Exit(Execute())
}
