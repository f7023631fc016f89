package body

import "strings"

// Kind tags the representation a payload was captured in.
type Kind string

const (
	KindJSON           Kind = "json"
	KindText           Kind = "text"
	KindURLEncoded     Kind = "urlencoded"
	KindMultipart      Kind = "multipart"
	KindBinary         Kind = "binary"
	KindUnserializable Kind = "unserializable"
)

// KindFor classifies a payload by its Content-Type header value.
func KindFor(contentType string) Kind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/json"):
		return KindJSON
	case strings.Contains(ct, "text/"):
		return KindText
	case strings.Contains(ct, "form-urlencoded"):
		return KindURLEncoded
	case strings.Contains(ct, "multipart/form-data"):
		return KindMultipart
	default:
		return KindBinary
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindJSON, KindText, KindURLEncoded, KindMultipart, KindBinary, KindUnserializable:
		return true
	}
	return false
}
