// Package fingerprint turns outgoing HTTP requests into stable identities.
//
// # Overview
//
// A request is first described (Describe) as an immutable Descriptor: upper
// cased method, absolute URL, lower cased header map, transport options and
// an optional body tagged with a body.Kind. GET and HEAD descriptors never
// carry a body. The body is always read from a duplicate of the request body,
// so the request can still be sent afterwards.
//
// The Descriptor is then canonicalized (Canonical) into the HTTP-Archive
// postData shape:
//
//	{"url":"...","method":"POST","postData":{"encoding":"","text":"..."}}
//
// and hashed (HashCode) into a 32-bit signed integer. The same canonical
// form is produced for a live request and for an imported HAR entry
// describing that request, which is what lets imported archives replay.
//
// # Identity Functions
//
// The hash is only the default. Identity functions are registered by name so
// that a recording can say which function produced its keys and a replay can
// use exactly that function:
//
//	fingerprint.Register("by-path", func(d *fingerprint.Descriptor) fingerprint.Identity {
//	    u, _ := url.Parse(d.URL)
//	    return fingerprint.Identity(d.Method + " " + u.Path)
//	})
//
// Identities are not guaranteed to be collision free; collisions are
// detected and reported by the recording store.
package fingerprint
