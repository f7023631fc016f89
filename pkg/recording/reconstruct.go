package recording

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"mercator-hq/playback/pkg/body"
)

// payload is a body chosen by representation precedence.
type payload struct {
	data        []byte
	contentType string
	// replace forces contentType over a recorded Content-Type.
	replace bool
}

// Payload returns the body bytes of r chosen by representation precedence.
// It returns nil when no representation was captured.
func (r *Response) Payload() ([]byte, error) {
	p, err := r.payload()
	return p.data, err
}

func (r *Response) payload() (payload, error) {
	switch {
	case r.Buffer != nil:
		return payload{data: r.Buffer}, nil
	case r.Blob != nil:
		return payload{data: r.Blob.Data, contentType: r.Blob.Type}, nil
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return payload{}, fmt.Errorf("re-encoding recorded json: %w", err)
		}
		return payload{data: data, contentType: "application/json"}, nil
	case r.Text != nil:
		return payload{data: []byte(*r.Text)}, nil
	case r.Form != nil:
		ct, data, err := body.EncodeMultipart(r.Form)
		if err != nil {
			return payload{}, fmt.Errorf("rebuilding recorded form: %w", err)
		}
		return payload{data: data, contentType: ct, replace: true}, nil
	case len(r.Chunks) > 0:
		var buf bytes.Buffer
		for _, chunk := range r.Chunks {
			buf.Write(chunk)
		}
		return payload{data: buf.Bytes()}, nil
	default:
		return payload{}, nil
	}
}

// HTTPResponse reconstructs an *http.Response for req from the recording.
// Status, status text and headers are copied verbatim. A JSON or blob
// representation sets the content type only when the recording has none; a
// rebuilt multipart payload always sets it, since its boundary is new.
func (r *Response) HTTPResponse(req *http.Request) (*http.Response, error) {
	p, err := r.payload()
	if err != nil {
		return nil, err
	}
	data := p.data

	header := make(http.Header, len(r.Header))
	for name, value := range r.Header {
		header.Set(name, value)
	}
	if p.contentType != "" && (p.replace || header.Get("Content-Type") == "") {
		header.Set("Content-Type", p.contentType)
	}
	if header.Get("Content-Length") != "" {
		header.Set("Content-Length", strconv.Itoa(len(data)))
	}

	statusText := r.StatusText
	if statusText == "" {
		statusText = http.StatusText(r.Status)
	}

	res := &http.Response{
		Status:        strings.TrimSpace(fmt.Sprintf("%d %s", r.Status, statusText)),
		StatusCode:    r.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: int64(len(data)),
		Request:       req,
	}
	if req != nil && req.Method == http.MethodHead {
		res.Body = http.NoBody
	}
	return res, nil
}
