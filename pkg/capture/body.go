package capture

import (
	"encoding/json"
	"fmt"
	"io"

	"mercator-hq/playback/pkg/body"
	"mercator-hq/playback/pkg/recording"
)

// Body exposes the single-shot readers of a captured response. All readers
// share one drained copy of the body.
type Body struct {
	st *state
}

// drain reads the whole body once and caches it. A read error is returned
// unchanged; a later call continues from where the body stopped.
func (b *Body) drain() ([]byte, error) {
	st := b.st
	st.mu.Lock()
	defer st.mu.Unlock()

	switch {
	case st.empty:
		return nil, nil
	case st.drained:
		return st.cached, nil
	case st.streamed:
		return nil, ErrBodyUsed
	case st.closed:
		return nil, ErrClosed
	}

	data, err := io.ReadAll(st.src)
	st.cached = append(st.cached, data...)
	if err != nil {
		return nil, err
	}
	st.drained = true
	return st.cached, nil
}

// record applies fn to the recording unless the body was empty.
func (b *Body) record(fn func(rec *recording.Response)) {
	if b.st.empty {
		return
	}
	b.st.handle.update(fn)
}

// Text returns the body as a string.
func (b *Body) Text() (string, error) {
	data, err := b.drain()
	if err != nil {
		return "", err
	}
	text := string(data)
	b.record(func(rec *recording.Response) {
		if rec.Text == nil {
			rec.Text = &text
		}
	})
	return text, nil
}

// Bytes returns a copy of the raw body.
func (b *Body) Bytes() ([]byte, error) {
	data, err := b.drain()
	if err != nil {
		return nil, err
	}
	out := body.Bytes(data).Clone()
	if out == nil {
		out = []byte{}
	}
	b.record(func(rec *recording.Response) {
		if rec.Buffer == nil {
			rec.Buffer = body.Bytes(out).Clone()
		}
	})
	return out, nil
}

// Blob returns the raw body together with its content type.
func (b *Body) Blob() (*body.Blob, error) {
	data, err := b.drain()
	if err != nil {
		return nil, err
	}
	blob := &body.Blob{Type: b.st.contentType, Data: body.Bytes(data).Clone()}
	b.record(func(rec *recording.Response) {
		if rec.Blob == nil {
			rec.Blob = &body.Blob{Type: blob.Type, Data: blob.Data.Clone()}
		}
	})
	return blob, nil
}

// JSON decodes the body into a generic value. The recording keeps its own
// copy, so the caller may modify the result.
func (b *Body) JSON() (any, error) {
	data, err := b.drain()
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("capture: decoding json body: %w", err)
	}
	b.recordJSON(v)
	return v, nil
}

// Decode unmarshals the JSON body into v and records the generic form of
// the same document.
func (b *Body) Decode(v any) error {
	data, err := b.drain()
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("capture: decoding json body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("capture: decoding json body: %w", err)
	}
	b.recordJSON(generic)
	return nil
}

func (b *Body) recordJSON(v any) {
	if v == nil {
		return
	}
	copied := recording.CloneValue(v)
	b.record(func(rec *recording.Response) {
		if rec.JSON == nil {
			rec.JSON = copied
		}
	})
}

// FormData parses a multipart or urlencoded body into fields. File fields
// carry their name, declared type, size and bytes.
func (b *Body) FormData() ([]body.FormField, error) {
	data, err := b.drain()
	if err != nil {
		return nil, err
	}
	fields, err := body.ParseForm(b.st.contentType, data)
	if err != nil {
		return nil, err
	}
	copied := body.CloneFields(fields)
	b.record(func(rec *recording.Response) {
		if rec.Form == nil {
			rec.Form = copied
			if rec.Form == nil {
				rec.Form = []body.FormField{}
			}
		}
	})
	return fields, nil
}
