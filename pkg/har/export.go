package har

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"
	"unicode/utf8"

	"mercator-hq/playback/pkg/body"
	"mercator-hq/playback/pkg/fingerprint"
	"mercator-hq/playback/pkg/recording"
)

// Version is the HAR format version written by FromSnapshot.
const Version = "1.2"

// ExportOptions configure FromSnapshot.
type ExportOptions struct {
	// Creator names the writing application.
	Creator Creator

	// StartedAt stamps every entry. Default: time.Now()
	StartedAt time.Time
}

// FromSnapshot converts a snapshot into a HAR log with one entry per
// identity, in identity order. Importing the result with the snapshot's
// identity function yields the same identities.
func FromSnapshot(snap *recording.Snapshot, opts ExportOptions) (*File, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}
	if opts.Creator.Name == "" {
		opts.Creator = Creator{Name: "playback", Version: "dev"}
	}

	f := &File{Log: Log{Version: Version, Creator: opts.Creator, Entries: []Entry{}}}
	started := opts.StartedAt.UTC().Format(time.RFC3339Nano)

	for _, id := range snap.Identities() {
		req, err := exportRequest(snap.Descriptors[id])
		if err != nil {
			return nil, fmt.Errorf("har: exporting request %s: %w", id, err)
		}
		res, err := exportResponse(snap.Responses[id])
		if err != nil {
			return nil, fmt.Errorf("har: exporting response %s: %w", id, err)
		}
		f.Log.Entries = append(f.Log.Entries, Entry{
			StartedDateTime: started,
			Time:            -1,
			Request:         req,
			Response:        res,
			Timings:         Timings{Send: -1, Wait: -1, Receive: -1},
		})
	}
	return f, nil
}

// Write encodes f as indented JSON.
func Write(w io.Writer, f *File) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

func exportRequest(d *fingerprint.Descriptor) (*Request, error) {
	req := &Request{
		Method:      d.Method,
		URL:         d.URL,
		HTTPVersion: "HTTP/1.1",
		Cookies:     []Cookie{},
		Headers:     sortedHeaders(d.Header),
		QueryString: []QueryParam{},
		HeadersSize: -1,
		BodySize:    -1,
	}
	if u, err := url.Parse(d.URL); err == nil {
		for name, values := range u.Query() {
			for _, v := range values {
				req.QueryString = append(req.QueryString, QueryParam{Name: name, Value: v})
			}
		}
		sort.SliceStable(req.QueryString, func(i, j int) bool {
			return req.QueryString[i].Name < req.QueryString[j].Name
		})
	}

	if d.Body == nil {
		return req, nil
	}

	pd := &PostData{MimeType: d.Header["content-type"]}
	switch d.Body.Kind {
	case body.KindJSON, body.KindBinary, body.KindUnserializable:
		setText(&pd.Text, &pd.Encoding, d.Body.Raw)
	case body.KindText, body.KindURLEncoded:
		pd.Text = d.Body.Text
	case body.KindMultipart:
		ct, data, err := body.EncodeMultipart(d.Body.Form)
		if err != nil {
			return nil, err
		}
		pd.MimeType = ct
		setText(&pd.Text, &pd.Encoding, data)
	}
	req.PostData = pd
	req.BodySize = len(pd.Text)
	return req, nil
}

func exportResponse(rec *recording.Response) (*Response, error) {
	res := &Response{
		Status:      rec.Status,
		StatusText:  rec.StatusText,
		HTTPVersion: "HTTP/1.1",
		Cookies:     []Cookie{},
		Headers:     sortedHeaders(rec.Header),
		HeadersSize: -1,
		BodySize:    -1,
	}
	if res.StatusText == "" {
		res.StatusText = http.StatusText(rec.Status)
	}
	if rec.Redirected {
		res.RedirectURL = rec.URL
	}

	rebuilt, err := rec.HTTPResponse(nil)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rebuilt.Body)
	if err != nil {
		return nil, err
	}
	res.Content.Size = len(data)
	res.Content.MimeType = rebuilt.Header.Get("Content-Type")
	setText(&res.Content.Text, &res.Content.Encoding, data)
	res.BodySize = len(data)
	return res, nil
}

func setText(text, encoding *string, data []byte) {
	if utf8.Valid(data) {
		*text = string(data)
		return
	}
	*text = base64.StdEncoding.EncodeToString(data)
	*encoding = fingerprint.EncodingBase64
}

func sortedHeaders(h map[string]string) []Header {
	out := make([]Header, 0, len(h))
	for name, value := range h {
		out = append(out, Header{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
