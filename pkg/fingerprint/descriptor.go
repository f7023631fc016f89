package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"mercator-hq/playback/pkg/body"
)

// TransportOptions are fetch-level options carried through a Descriptor
// unmodified. They do not take part in the default identity.
type TransportOptions struct {
	Credentials    string `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Cache          string `json:"cache,omitempty" yaml:"cache,omitempty"`
	Mode           string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Redirect       string `json:"redirect,omitempty" yaml:"redirect,omitempty"`
	Referrer       string `json:"referrer,omitempty" yaml:"referrer,omitempty"`
	ReferrerPolicy string `json:"referrerPolicy,omitempty" yaml:"referrerPolicy,omitempty"`
	Integrity      string `json:"integrity,omitempty" yaml:"integrity,omitempty"`
	Keepalive      bool   `json:"keepalive,omitempty" yaml:"keepalive,omitempty"`
}

type optionsKey struct{}

// WithTransportOptions attaches transport options to a request context so
// that Describe can carry them into the Descriptor.
func WithTransportOptions(ctx context.Context, opts TransportOptions) context.Context {
	return context.WithValue(ctx, optionsKey{}, opts)
}

// Body is the tagged body of a Descriptor. Kind selects which of the other
// fields holds the payload:
//
//	json           -> JSON (decoded value) and Raw
//	text           -> Text
//	urlencoded     -> Text
//	multipart      -> Form
//	binary         -> Raw
//	unserializable -> Raw (the undecodable payload)
type Body struct {
	Kind body.Kind        `json:"kind" yaml:"kind"`
	JSON any              `json:"json,omitempty" yaml:"json,omitempty"`
	Text string           `json:"text,omitempty" yaml:"text,omitempty"`
	Form []body.FormField `json:"form,omitempty" yaml:"form,omitempty"`
	Raw  body.Bytes       `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// Descriptor describes one outgoing request. It is built once per call and
// must be treated as read-only afterwards.
type Descriptor struct {
	Method  string            `json:"method" yaml:"method"`
	URL     string            `json:"url" yaml:"url"`
	Header  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    *Body             `json:"body,omitempty" yaml:"body,omitempty"`
	Options TransportOptions  `json:"options,omitempty" yaml:"options,omitempty"`
}

// HasBody reports whether d carries a body payload.
func (d *Descriptor) HasBody() bool {
	return d.Body != nil
}

// Describe builds a Descriptor for req. The request body is read through a
// duplicate: req.GetBody when available, otherwise the body is buffered and
// req.Body is replaced with an equivalent reader.
//
// A body that cannot be decoded in its declared representation is recorded
// with Kind body.KindUnserializable; only a failure to duplicate the body
// itself is returned as an error.
func Describe(req *http.Request) (*Descriptor, error) {
	var opts TransportOptions
	if v, ok := req.Context().Value(optionsKey{}).(TransportOptions); ok {
		opts = v
	}

	method := strings.ToUpper(req.Method)
	if method == http.MethodGet || method == http.MethodHead || method == "" ||
		req.Body == nil || req.Body == http.NoBody {
		d := Build(method, req.URL.String(), req.Header, nil)
		d.Options = opts
		return d, nil
	}

	raw, err := duplicateBody(req)
	if err != nil {
		return nil, err
	}
	d := Build(method, req.URL.String(), req.Header, raw)
	d.Options = opts
	return d, nil
}

// Build assembles a Descriptor from already separated request parts. It is
// used for requests that did not come from a live *http.Request, such as
// archive entries, and applies the same normalization as Describe. A nil
// payload means the request had no body.
func Build(method, rawURL string, header http.Header, payload []byte) *Descriptor {
	d := &Descriptor{
		Method: strings.ToUpper(method),
		URL:    rawURL,
		Header: FlattenHeader(header),
	}
	if d.Method == "" {
		d.Method = http.MethodGet
	}
	if payload == nil || d.Method == http.MethodGet || d.Method == http.MethodHead {
		return d
	}
	d.Body = decodeBody(header.Get("Content-Type"), payload)
	return d
}

// duplicateBody returns the request payload without consuming req.Body.
func duplicateBody(req *http.Request) ([]byte, error) {
	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("fingerprint: duplicating request body: %w", err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	raw, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("fingerprint: reading request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(raw))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}
	return raw, nil
}

// decodeBody dispatches on the body kind of contentType.
func decodeBody(contentType string, raw []byte) *Body {
	kind := body.KindFor(contentType)
	b := &Body{Kind: kind}

	switch kind {
	case body.KindJSON:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return unserializable(kind, raw, err)
		}
		b.JSON = v
		b.Raw = raw
	case body.KindText, body.KindURLEncoded:
		b.Text = string(raw)
	case body.KindMultipart:
		fields, err := body.ParseForm(contentType, raw)
		if err != nil {
			return unserializable(kind, raw, err)
		}
		b.Form = fields
	default:
		b.Raw = raw
	}
	return b
}

func unserializable(kind body.Kind, raw []byte, err error) *Body {
	slog.Default().With("component", "fingerprint").Warn("failed to serialize request body",
		"declared_kind", kind,
		"error", err,
	)
	return &Body{Kind: body.KindUnserializable, Raw: raw}
}

// FlattenHeader lower-cases header names and joins repeated values with
// ", ".
func FlattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name := strings.ToLower(k)
		value := strings.Join(h[k], ", ")
		if prev, ok := out[name]; ok {
			value = prev + ", " + value
		}
		out[name] = value
	}
	return out
}
