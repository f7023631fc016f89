// Package body holds the payload shapes shared by request fingerprinting,
// response capture and recording persistence.
//
// A payload is classified into a Kind from its content type, using the same
// dispatch order everywhere:
//
//	application/json            -> KindJSON
//	text/*                      -> KindText
//	*form-urlencoded            -> KindURLEncoded
//	multipart/form-data         -> KindMultipart
//	anything else               -> KindBinary
//
// KindUnserializable marks a payload that could not be read in any of the
// above representations.
//
// Form payloads are kept as an ordered list of FormField values so that
// repeated names and file parts survive a round trip through EncodeMultipart.
package body
