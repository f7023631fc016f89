package har

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"mercator-hq/playback/pkg/fingerprint"
	"mercator-hq/playback/pkg/recording"
	"mercator-hq/playback/pkg/telemetry/logging"
)

// Parse decodes a HAR document.
func Parse(r io.Reader) (*File, error) {
	var f File
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("har: decoding log: %w", err)
	}
	return &f, nil
}

// ParseFile decodes the HAR document at path.
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("har: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

// ImportOptions configure ToSnapshot.
type ImportOptions struct {
	// IdentityFunc names the identity function used for entry keys.
	// Default: "hashcode"
	IdentityFunc string

	// IgnoreCollisions suppresses collision diagnostics.
	IgnoreCollisions bool

	Redactor *logging.Redactor
	Logger   *slog.Logger
}

// Result is the outcome of an import.
type Result struct {
	Snapshot *recording.Snapshot

	// Skipped lists entries that were not imported.
	Skipped []*MalformedEntryError
}

// ToSnapshot converts every well-formed entry of f. Malformed entries are
// skipped and reported in Result.Skipped; the returned error is reserved
// for failures that affect the whole import.
func ToSnapshot(f *File, opts ImportOptions) (*Result, error) {
	if f == nil {
		return nil, errors.New("har: nil log")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "har")

	store, err := recording.NewStore(recording.StoreConfig{
		IdentityFunc:     opts.IdentityFunc,
		IgnoreCollisions: opts.IgnoreCollisions,
		Redactor:         opts.Redactor,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for i := range f.Log.Entries {
		d, res, entryErr := convertEntry(i, &f.Log.Entries[i])
		if entryErr != nil {
			logger.Warn("skipping har entry", "index", i, "field", entryErr.Field, "error", entryErr)
			result.Skipped = append(result.Skipped, entryErr)
			continue
		}
		store.Put(d, recording.Static(res))
	}

	result.Snapshot = store.Snapshot()
	logger.Info("har imported",
		"entries", len(f.Log.Entries),
		"recordings", store.Len(),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func convertEntry(index int, e *Entry) (*fingerprint.Descriptor, *recording.Response, *MalformedEntryError) {
	malformed := func(field string, cause error) *MalformedEntryError {
		return &MalformedEntryError{Index: index, Field: field, Cause: cause}
	}

	req := e.Request
	switch {
	case req == nil:
		return nil, nil, malformed("request", nil)
	case req.Method == "":
		return nil, nil, malformed("request.method", nil)
	case req.URL == "":
		return nil, nil, malformed("request.url", nil)
	}
	res := e.Response
	switch {
	case res == nil:
		return nil, nil, malformed("response", nil)
	case res.Status == 0:
		return nil, nil, malformed("response.status", nil)
	}

	header := toHeader(req.Headers)
	var payload []byte
	if pd := req.PostData; pd != nil {
		if pd.MimeType != "" {
			header.Set("Content-Type", pd.MimeType)
		}
		data, err := decodeText(pd.Text, pd.Encoding)
		if err != nil {
			return nil, nil, malformed("request.postData.text", err)
		}
		payload = data
	}
	d := fingerprint.Build(req.Method, req.URL, header, payload)

	rec, err := convertResponse(res)
	if err != nil {
		return nil, nil, malformed("response.content.text", err)
	}
	rec.URL = req.URL
	return d, rec, nil
}

func convertResponse(res *Response) (*recording.Response, error) {
	header := toHeader(res.Headers)
	// HAR content is stored decoded.
	header.Del("Content-Encoding")
	if res.Content.MimeType != "" {
		header.Set("Content-Type", res.Content.MimeType)
	}

	rec := &recording.Response{
		Status:     res.Status,
		StatusText: res.StatusText,
		Header:     fingerprint.FlattenHeader(header),
		Redirected: res.RedirectURL != "",
		Type:       "basic",
		OK:         res.Status >= 200 && res.Status < 300,
	}

	if res.Content.Text == "" {
		return rec, nil
	}
	if strings.EqualFold(res.Content.Encoding, fingerprint.EncodingBase64) {
		data, err := decodeText(res.Content.Text, res.Content.Encoding)
		if err != nil {
			return nil, err
		}
		rec.Buffer = data
		return rec, nil
	}
	text := res.Content.Text
	rec.Text = &text
	return rec, nil
}

func toHeader(headers []Header) http.Header {
	h := make(http.Header, len(headers))
	for _, kv := range headers {
		// HTTP/2 pseudo headers are not request headers.
		if strings.HasPrefix(kv.Name, ":") {
			continue
		}
		h.Add(kv.Name, kv.Value)
	}
	return h
}

func decodeText(text, encoding string) ([]byte, error) {
	if !strings.EqualFold(encoding, fingerprint.EncodingBase64) {
		return []byte(text), nil
	}
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 content: %w", err)
	}
	return data, nil
}
