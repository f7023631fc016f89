package body

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"
)

// ErrNotForm is returned by ParseForm for payloads that are neither
// multipart nor urlencoded.
var ErrNotForm = errors.New("body: payload is not form data")

// File is a file-valued form part.
type File struct {
	Filename string `json:"name" yaml:"name"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Size     int64  `json:"size" yaml:"size"`
	Data     Bytes  `json:"data" yaml:"data"`
}

// FormField is one named entry of a form payload. Exactly one of Value and
// File is meaningful: File is non-nil for file parts.
type FormField struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	File  *File  `json:"file,omitempty" yaml:"file,omitempty"`
}

// CloneFields deep-copies a field list, preserving nil.
func CloneFields(fields []FormField) []FormField {
	if fields == nil {
		return nil
	}
	out := make([]FormField, len(fields))
	for i, f := range fields {
		out[i] = f
		if f.File != nil {
			file := *f.File
			file.Data = f.File.Data.Clone()
			out[i].File = &file
		}
	}
	return out
}

// ParseForm decodes a multipart/form-data or application/x-www-form-urlencoded
// payload into an ordered field list.
func ParseForm(contentType string, data []byte) ([]FormField, error) {
	switch KindFor(contentType) {
	case KindMultipart:
		return parseMultipart(contentType, data)
	case KindURLEncoded:
		return parseURLEncoded(string(data))
	default:
		return nil, ErrNotForm
	}
}

func parseURLEncoded(s string) ([]FormField, error) {
	fields := []FormField{}
	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("body: invalid urlencoded name %q: %w", k, err)
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("body: invalid urlencoded value for %q: %w", name, err)
		}
		fields = append(fields, FormField{Name: name, Value: value})
	}
	return fields, nil
}

func parseMultipart(contentType string, data []byte) ([]FormField, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("body: invalid multipart content type: %w", err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.New("body: multipart content type has no boundary")
	}

	fields := []FormField{}
	mr := multipart.NewReader(bytes.NewReader(data), boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return fields, nil
		}
		if err != nil {
			return nil, fmt.Errorf("body: reading multipart part: %w", err)
		}
		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("body: reading multipart part %q: %w", part.FormName(), err)
		}

		field := FormField{Name: part.FormName()}
		if filename := part.FileName(); filename != "" {
			field.File = &File{
				Filename: filename,
				Type:     part.Header.Get("Content-Type"),
				Size:     int64(len(content)),
				Data:     content,
			}
		} else {
			field.Value = string(content)
		}
		fields = append(fields, field)
	}
}

// EncodeMultipart writes fields as a multipart/form-data payload and returns
// the content type (including the generated boundary) with the payload.
func EncodeMultipart(fields []FormField) (string, []byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		if f.File == nil {
			if err := mw.WriteField(f.Name, f.Value); err != nil {
				return "", nil, err
			}
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(f.Name), escapeQuotes(f.File.Filename)))
		fileType := f.File.Type
		if fileType == "" {
			fileType = "application/octet-stream"
		}
		h.Set("Content-Type", fileType)
		w, err := mw.CreatePart(h)
		if err != nil {
			return "", nil, err
		}
		if _, err := w.Write(f.File.Data); err != nil {
			return "", nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return "", nil, err
	}
	return mw.FormDataContentType(), buf.Bytes(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
