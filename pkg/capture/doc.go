// Package capture observes how a caller reads an HTTP response body and
// records each representation that was read.
//
// Wrap takes a live *http.Response and returns an observed copy plus a
// Handle. The observed response has the same status, headers and request,
// and its Body is a *Stream: reading it with io.ReadAll or any other
// io.Reader consumer records the body as an ordered list of chunks.
//
// Single-shot readers are reached through From, which also finds the
// capture after http.Client has wrapped the body for a timeout:
//
//	b, ok := capture.From(res)
//	text, err := b.Text()     // records Text
//	v, err := b.JSON()        // records a deep copy of v
//	raw, err := b.Bytes()     // records Buffer
//
// The single-shot readers drain the underlying body once and share the
// cached bytes, so invoking several of them is allowed and each records its
// own representation the first time it is called. Streaming and single-shot
// reading are mutually exclusive: whichever starts second fails with
// ErrBodyUsed.
//
// # Tee
//
// Stream.Tee splits a stream into two branches that both yield every
// remaining chunk. Chunks are numbered as they arrive from the network and a
// shared watermark records each number once, so a chunk read through both
// branches appears once in the recording, in arrival order.
//
// Read errors are returned to the caller unchanged and leave the affected
// representation unrecorded.
package capture
