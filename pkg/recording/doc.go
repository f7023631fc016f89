// Package recording holds captured responses and the store that keys them by
// request identity.
//
// A Response keeps every body representation the caller actually read while
// it was being recorded. Representations that were never read stay absent:
// a nil JSON value, a nil Text pointer, a nil Blob, a nil Buffer, a nil Form
// and an empty Chunks list all mean "not captured".
//
// HTTPResponse turns a Response back into an *http.Response. When several
// representations are present, one is chosen in this order:
//
//	Buffer > Blob > JSON > Text > Form > Chunks
//
// The order is a compatibility policy; the representations are not required
// to agree with each other.
//
// A Store maps identities to descriptors and response sources. Snapshot
// exports a Store in a form that Encode and Save persist as JSON or YAML.
package recording
