package fingerprint

import (
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	"mercator-hq/playback/pkg/body"
)

// EncodingBase64 is the postData encoding tag used for payloads that are not
// valid UTF-8 text.
const EncodingBase64 = "base64"

// PostData is the body portion of a canonical request.
type PostData struct {
	Encoding string `json:"encoding"`
	Text     string `json:"text"`
}

type canonicalRequest struct {
	URL      string   `json:"url"`
	Method   string   `json:"method"`
	PostData PostData `json:"postData"`
}

// Canonical returns the serialized form that identity functions hash. Field
// order is fixed: url, method, postData.encoding, postData.text.
func Canonical(d *Descriptor) string {
	return canonical(d.URL, d)
}

func canonical(rawURL string, d *Descriptor) string {
	c := canonicalRequest{
		URL:      rawURL,
		Method:   d.Method,
		PostData: PostDataOf(d.Body),
	}
	// Marshal of this fixed shape of strings cannot fail.
	out, _ := json.Marshal(c)
	return string(out)
}

// PostDataOf renders a descriptor body as postData. Bodies without a
// lossless text form are base64 encoded.
func PostDataOf(b *Body) PostData {
	if b == nil {
		return PostData{}
	}
	switch b.Kind {
	case body.KindJSON:
		return TextPostData(b.Raw)
	case body.KindText, body.KindURLEncoded:
		return TextPostData([]byte(b.Text))
	case body.KindMultipart:
		return fieldsPostData(b.Form)
	case body.KindUnserializable:
		if len(b.Raw) == 0 {
			return PostData{}
		}
		return PostData{Encoding: EncodingBase64, Text: base64.StdEncoding.EncodeToString(b.Raw)}
	default:
		return TextPostData(b.Raw)
	}
}

// TextPostData renders raw bytes as text when they are valid UTF-8 and as
// base64 otherwise.
func TextPostData(raw []byte) PostData {
	if utf8.Valid(raw) {
		return PostData{Text: string(raw)}
	}
	return PostData{Encoding: EncodingBase64, Text: base64.StdEncoding.EncodeToString(raw)}
}

// fieldsPostData renders multipart fields. When a field name or value is not
// valid UTF-8 the names and values are base64 encoded before rendering and
// the result is tagged base64.
func fieldsPostData(fields []body.FormField) PostData {
	if fieldsValid(fields) {
		return PostData{Text: renderFields(fields)}
	}
	encoded := make([]body.FormField, len(fields))
	for i, f := range fields {
		encoded[i] = f
		encoded[i].Name = base64.StdEncoding.EncodeToString([]byte(f.Name))
		encoded[i].Value = base64.StdEncoding.EncodeToString([]byte(f.Value))
		if f.File != nil {
			file := *f.File
			file.Filename = base64.StdEncoding.EncodeToString([]byte(f.File.Filename))
			file.Type = base64.StdEncoding.EncodeToString([]byte(f.File.Type))
			encoded[i].File = &file
		}
	}
	return PostData{Encoding: EncodingBase64, Text: renderFields(encoded)}
}

func fieldsValid(fields []body.FormField) bool {
	for _, f := range fields {
		if !utf8.ValidString(f.Name) || !utf8.ValidString(f.Value) {
			return false
		}
		if f.File != nil && (!utf8.ValidString(f.File.Filename) || !utf8.ValidString(f.File.Type)) {
			return false
		}
	}
	return true
}

// renderFields produces a boundary independent rendering of multipart
// fields. File payloads are included so that different uploads differ.
func renderFields(fields []body.FormField) string {
	if len(fields) == 0 {
		return "[]"
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(out)
}
