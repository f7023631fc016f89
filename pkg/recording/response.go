package recording

import (
	"maps"

	"mercator-hq/playback/pkg/body"
)

// Response is the recording of one HTTP response.
type Response struct {
	Status     int               `json:"status" yaml:"status"`
	StatusText string            `json:"statusText" yaml:"statusText"`
	Header     map[string]string `json:"headers" yaml:"headers"`
	URL        string            `json:"url" yaml:"url"`
	Redirected bool              `json:"redirected" yaml:"redirected"`
	Type       string            `json:"type,omitempty" yaml:"type,omitempty"`
	OK         bool              `json:"ok" yaml:"ok"`

	// Captured representations, nil when not read.
	JSON   any              `json:"json,omitempty" yaml:"json,omitempty"`
	Text   *string          `json:"text,omitempty" yaml:"text,omitempty"`
	Blob   *body.Blob       `json:"blob,omitempty" yaml:"blob,omitempty"`
	Buffer body.Bytes       `json:"buffer,omitempty" yaml:"buffer,omitempty"`
	Form   []body.FormField `json:"formData,omitempty" yaml:"formData,omitempty"`
	Chunks []body.Bytes     `json:"chunks,omitempty" yaml:"chunks,omitempty"`
}

// HasBody reports whether any body representation was captured.
func (r *Response) HasBody() bool {
	return r.Buffer != nil || r.Blob != nil || r.JSON != nil || r.Text != nil ||
		r.Form != nil || len(r.Chunks) > 0
}

// Clone returns a deep copy of r.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	c := *r
	c.Header = maps.Clone(r.Header)
	c.JSON = CloneValue(r.JSON)
	if r.Text != nil {
		text := *r.Text
		c.Text = &text
	}
	if r.Blob != nil {
		c.Blob = &body.Blob{Type: r.Blob.Type, Data: r.Blob.Data.Clone()}
	}
	c.Buffer = r.Buffer.Clone()
	c.Form = body.CloneFields(r.Form)
	if r.Chunks != nil {
		c.Chunks = make([]body.Bytes, len(r.Chunks))
		for i, chunk := range r.Chunks {
			c.Chunks[i] = chunk.Clone()
		}
	}
	return &c
}

// CloneValue deep copies a decoded JSON value. Maps and slices are copied
// recursively; scalars are immutable and returned as is.
func CloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = CloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return v
	}
}
