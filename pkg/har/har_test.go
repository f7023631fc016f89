package har

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"mercator-hq/playback/pkg/body"
	"mercator-hq/playback/pkg/fingerprint"
	"mercator-hq/playback/pkg/recording"
)

const sampleLog = `{
  "log": {
    "version": "1.2",
    "creator": {"name": "browser", "version": "1"},
    "entries": [
      {
        "request": {
          "method": "GET",
          "url": "https://api.example.com/status",
          "headers": [{"name": "Accept", "value": "application/json"}, {"name": ":authority", "value": "api.example.com"}]
        },
        "response": {
          "status": 200,
          "statusText": "OK",
          "headers": [{"name": "Content-Encoding", "value": "gzip"}],
          "content": {"mimeType": "application/json", "text": "eyJvayI6dHJ1ZX0=", "encoding": "base64"}
        }
      },
      {
        "request": {
          "method": "POST",
          "url": "https://api.example.com/search",
          "headers": [],
          "postData": {"mimeType": "application/json", "text": "{\"q\":\"go\"}"}
        },
        "response": {
          "status": 201,
          "statusText": "Created",
          "headers": [],
          "content": {"mimeType": "text/plain", "text": "created"}
        }
      },
      {
        "request": {"method": "GET", "headers": []},
        "response": {"status": 200, "content": {}}
      },
      {
        "request": {"method": "GET", "url": "https://api.example.com/empty", "headers": []}
      }
    ]
  }
}`

func importSample(t *testing.T) *Result {
	t.Helper()
	f, err := Parse(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	result, err := ToSnapshot(f, ImportOptions{})
	if err != nil {
		t.Fatalf("ToSnapshot() error = %v", err)
	}
	return result
}

func TestToSnapshot_Base64Content(t *testing.T) {
	result := importSample(t)

	d := fingerprint.Build(http.MethodGet, "https://api.example.com/status", nil, nil)
	rec, ok := result.Snapshot.Responses[fingerprint.HashIdentity(d)]
	if !ok {
		t.Fatal("status entry not imported under the live identity")
	}

	res, err := rec.HTTPResponse(nil)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(res.Body)
	if string(data) != `{"ok":true}` {
		t.Errorf("body = %q, want {\"ok\":true}", data)
	}
	if got := res.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := res.Header.Get("Content-Encoding"); got != "" {
		t.Errorf("Content-Encoding = %q, want none", got)
	}
}

func TestToSnapshot_PostMatchesLiveRequest(t *testing.T) {
	result := importSample(t)

	live, _ := http.NewRequest(http.MethodPost, "https://api.example.com/search", strings.NewReader(`{"q":"go"}`))
	live.Header.Set("Content-Type", "application/json")
	d, err := fingerprint.Describe(live)
	if err != nil {
		t.Fatal(err)
	}

	rec, ok := result.Snapshot.Responses[fingerprint.HashIdentity(d)]
	if !ok {
		t.Fatal("POST entry does not match the equivalent live request")
	}
	if rec.Status != http.StatusCreated || rec.Text == nil || *rec.Text != "created" {
		t.Errorf("response = %+v", rec)
	}
}

func TestToSnapshot_SkipsMalformedEntries(t *testing.T) {
	result := importSample(t)

	if len(result.Snapshot.Responses) != 2 {
		t.Errorf("imported %d entries, want 2", len(result.Snapshot.Responses))
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("skipped %d entries, want 2", len(result.Skipped))
	}

	want := []struct {
		index int
		field string
	}{
		{2, "request.url"},
		{3, "response"},
	}
	for i, w := range want {
		got := result.Skipped[i]
		if got.Index != w.index || got.Field != w.field {
			t.Errorf("skipped[%d] = {%d %s}, want {%d %s}", i, got.Index, got.Field, w.index, w.field)
		}
		if !errors.Is(got, ErrMalformedEntry) {
			t.Errorf("skipped[%d] does not wrap ErrMalformedEntry", i)
		}
	}
}

func TestToSnapshot_InvalidBase64(t *testing.T) {
	f := &File{Log: Log{Entries: []Entry{{
		Request:  &Request{Method: "GET", URL: "https://x.example.com/"},
		Response: &Response{Status: 200, Content: Content{Text: "!!!", Encoding: "base64"}},
	}}}}

	result, err := ToSnapshot(f, ImportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Field != "response.content.text" {
		t.Errorf("Skipped = %v", result.Skipped)
	}
}

func TestToSnapshot_UnknownIdentityFunc(t *testing.T) {
	if _, err := ToSnapshot(&File{}, ImportOptions{IdentityFunc: "nope"}); !errors.Is(err, fingerprint.ErrUnknownIdentityFunc) {
		t.Errorf("ToSnapshot() error = %v", err)
	}
}

func TestFromSnapshot_RoundTrip(t *testing.T) {
	store, err := recording.NewStore(recording.StoreConfig{})
	if err != nil {
		t.Fatal(err)
	}

	text := "hello"
	ct, form, err := body.EncodeMultipart([]body.FormField{{Name: "n", Value: "v"}})
	if err != nil {
		t.Fatal(err)
	}
	requests := []*fingerprint.Descriptor{
		fingerprint.Build(http.MethodGet, "https://api.example.com/a?x=1", nil, nil),
		fingerprint.Build(http.MethodPost, "https://api.example.com/json", http.Header{"Content-Type": {"application/json"}}, []byte(`{"k":[1,2]}`)),
		fingerprint.Build(http.MethodPut, "https://api.example.com/bin", http.Header{"Content-Type": {"application/octet-stream"}}, []byte{0xff, 0x00}),
		fingerprint.Build(http.MethodPost, "https://api.example.com/form", http.Header{"Content-Type": {ct}}, form),
	}
	for i, d := range requests {
		res := &recording.Response{Status: 200 + i, Text: &text}
		if i == 2 {
			res = &recording.Response{Status: 200, Buffer: []byte{0x01, 0xfe}}
		}
		store.Put(d, recording.Static(res))
	}
	snap := store.Snapshot()

	f, err := FromSnapshot(snap, ExportOptions{})
	if err != nil {
		t.Fatalf("FromSnapshot() error = %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, f); err != nil {
		t.Fatal(err)
	}
	parsed, err := Parse(&buf)
	if err != nil {
		t.Fatal(err)
	}
	result, err := ToSnapshot(parsed, ImportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Skipped) != 0 {
		t.Fatalf("Skipped = %v", result.Skipped)
	}

	for id, res := range snap.Responses {
		got, ok := result.Snapshot.Responses[id]
		if !ok {
			t.Errorf("identity %s lost in round trip (%s)", id, snap.Descriptors[id].URL)
			continue
		}
		want, _ := res.Payload()
		have, _ := got.Payload()
		if !bytes.Equal(want, have) {
			t.Errorf("payload %s = %q, want %q", id, have, want)
		}
	}
}
