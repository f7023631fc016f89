package fingerprint

import "unicode/utf16"

// HashCode computes the 32-bit string hash h = 31*h + c over the UTF-16 code
// units of s, wrapping on overflow.
func HashCode(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(c)
	}
	return h
}
