package recording

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/playback/pkg/body"
	"mercator-hq/playback/pkg/fingerprint"
)

func strptr(s string) *string { return &s }

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(data)
}

func TestHTTPResponse_Precedence(t *testing.T) {
	tests := []struct {
		name string
		res  *Response
		want string
	}{
		{
			name: "buffer beats everything",
			res:  &Response{Buffer: []byte("buf"), Blob: &body.Blob{Data: []byte("blob")}, Text: strptr("text")},
			want: "buf",
		},
		{
			name: "blob beats json",
			res:  &Response{Blob: &body.Blob{Data: []byte("blob")}, JSON: map[string]any{"a": 1.0}},
			want: "blob",
		},
		{
			name: "json beats text",
			res:  &Response{JSON: map[string]any{"a": 1.0}, Text: strptr("text")},
			want: `{"a":1}`,
		},
		{
			name: "text beats chunks",
			res:  &Response{Text: strptr("text"), Chunks: []body.Bytes{[]byte("chunk")}},
			want: "text",
		},
		{
			name: "chunks concatenated",
			res:  &Response{Chunks: []body.Bytes{[]byte("ab"), []byte("cd")}},
			want: "abcd",
		},
		{
			name: "nothing captured",
			res:  &Response{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.res.Status = http.StatusOK
			res, err := tt.res.HTTPResponse(nil)
			if err != nil {
				t.Fatalf("HTTPResponse() error = %v", err)
			}
			if got := readBody(t, res); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPResponse_StatusAndHeaders(t *testing.T) {
	rec := &Response{
		Status:     http.StatusCreated,
		StatusText: "Created",
		Header:     map[string]string{"x-request-id": "abc"},
		JSON:       map[string]any{"id": 1.0},
	}

	res, err := rec.HTTPResponse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusCreated || res.Status != "201 Created" {
		t.Errorf("status = %d %q", res.StatusCode, res.Status)
	}
	if got := res.Header.Get("X-Request-Id"); got != "abc" {
		t.Errorf("X-Request-Id = %q", got)
	}
	if got := res.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
}

func TestHTTPResponse_KeepsRecordedContentType(t *testing.T) {
	rec := &Response{
		Status: http.StatusOK,
		Header: map[string]string{"content-type": "application/vnd.api+json"},
		JSON:   []any{1.0},
	}
	res, err := rec.HTTPResponse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Header.Get("Content-Type"); got != "application/vnd.api+json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestHTTPResponse_Form(t *testing.T) {
	rec := &Response{
		Status: http.StatusOK,
		Header: map[string]string{"content-type": "multipart/form-data; boundary=old"},
		Form:   []body.FormField{{Name: "a", Value: "1"}},
	}
	res, err := rec.HTTPResponse(nil)
	if err != nil {
		t.Fatal(err)
	}
	ct := res.Header.Get("Content-Type")
	if strings.Contains(ct, "boundary=old") {
		t.Fatalf("Content-Type kept the recorded boundary: %q", ct)
	}
	fields, err := body.ParseForm(ct, []byte(readBody(t, res)))
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 1 || fields[0].Value != "1" {
		t.Errorf("fields = %+v", fields)
	}
}

func TestResponse_CloneIndependent(t *testing.T) {
	orig := &Response{JSON: map[string]any{"list": []any{1.0}}, Buffer: []byte("x")}
	c := orig.Clone()
	c.JSON.(map[string]any)["list"].([]any)[0] = 2.0
	c.Buffer[0] = 'y'

	if orig.JSON.(map[string]any)["list"].([]any)[0] != 1.0 {
		t.Error("Clone shares JSON with the original")
	}
	if orig.Buffer[0] != 'x' {
		t.Error("Clone shares Buffer with the original")
	}
}

func descriptor(method, url, text string) *fingerprint.Descriptor {
	var payload []byte
	if text != "" {
		payload = []byte(text)
	}
	return fingerprint.Build(method, url, http.Header{"Content-Type": {"text/plain"}}, payload)
}

func TestStore_PutAndLookup(t *testing.T) {
	s, err := NewStore(StoreConfig{})
	if err != nil {
		t.Fatal(err)
	}
	d := descriptor(http.MethodGet, "https://example.com/a", "")

	id, stored := s.Put(d, Static(&Response{Status: 200, Text: strptr("first")}))
	if !stored {
		t.Fatal("first Put was not stored")
	}
	if _, stored := s.Put(d, Static(&Response{Status: 200, Text: strptr("second")})); stored {
		t.Error("identical descriptor overwrote the first recording")
	}

	_, res, ok := s.Lookup(id)
	if !ok || *res.Text != "first" {
		t.Errorf("Lookup() = %+v, %v", res, ok)
	}
	if got := s.IdentitiesForURL("https://example.com/a"); len(got) != 1 || got[0] != id {
		t.Errorf("IdentitiesForURL() = %v", got)
	}
}

func TestStore_Collision(t *testing.T) {
	fingerprint.Register("test-collide", func(*fingerprint.Descriptor) fingerprint.Identity { return "same" })

	var logs bytes.Buffer
	var collisions []Collision
	s, err := NewStore(StoreConfig{
		IdentityFunc: "test-collide",
		Logger:       slog.New(slog.NewTextHandler(&logs, nil)),
		OnCollision:  func(c Collision) { collisions = append(collisions, c) },
	})
	if err != nil {
		t.Fatal(err)
	}

	s.Put(descriptor(http.MethodGet, "https://example.com/one", ""), Static(&Response{Status: 200, Text: strptr("one")}))
	s.Put(descriptor(http.MethodGet, "https://example.com/two", ""), Static(&Response{Status: 200, Text: strptr("two")}))

	if len(collisions) != 1 {
		t.Fatalf("collisions = %d, want 1", len(collisions))
	}
	out := logs.String()
	if !strings.Contains(out, "https://example.com/one") || !strings.Contains(out, "https://example.com/two") {
		t.Errorf("diagnostic does not name both descriptors: %s", out)
	}
	_, res, _ := s.Lookup("same")
	if *res.Text != "two" {
		t.Errorf("later write did not overwrite: %q", *res.Text)
	}
}

func TestStore_InvalidUTF8BodiesStayDistinct(t *testing.T) {
	var collisions []Collision
	s, err := NewStore(StoreConfig{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnCollision: func(c Collision) { collisions = append(collisions, c) },
	})
	if err != nil {
		t.Fatal(err)
	}

	h := http.Header{"Content-Type": {"text/plain"}}
	d1 := fingerprint.Build(http.MethodPost, "https://example.com/t", h, []byte{0xff})
	d2 := fingerprint.Build(http.MethodPost, "https://example.com/t", h, []byte{0xfe})

	id1, stored1 := s.Put(d1, Static(&Response{Status: 200, Text: strptr("one")}))
	id2, stored2 := s.Put(d2, Static(&Response{Status: 200, Text: strptr("two")}))

	if !stored1 || !stored2 {
		t.Fatalf("stored = %v, %v; want both stored", stored1, stored2)
	}
	if id1 == id2 {
		t.Fatalf("both bodies mapped to identity %s", id1)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if len(collisions) != 0 {
		t.Errorf("collisions = %d, want 0", len(collisions))
	}
	_, res, ok := s.Lookup(id2)
	if !ok || *res.Text != "two" {
		t.Errorf("Lookup(%s) = %v, want text two", id2, res)
	}
}

func TestStore_IgnoreCollisions(t *testing.T) {
	fingerprint.Register("test-collide-quiet", func(*fingerprint.Descriptor) fingerprint.Identity { return "same" })

	var logs bytes.Buffer
	s, err := NewStore(StoreConfig{
		IdentityFunc:     "test-collide-quiet",
		IgnoreCollisions: true,
		Logger:           slog.New(slog.NewTextHandler(&logs, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Put(descriptor(http.MethodGet, "https://example.com/one", ""), Static(&Response{Status: 200}))
	s.Put(descriptor(http.MethodGet, "https://example.com/two", ""), Static(&Response{Status: 200}))

	if logs.Len() != 0 {
		t.Errorf("collision logged although ignored: %s", logs.String())
	}
}

func TestNewStore_UnknownIdentityFunc(t *testing.T) {
	if _, err := NewStore(StoreConfig{IdentityFunc: "missing"}); !errors.Is(err, fingerprint.ErrUnknownIdentityFunc) {
		t.Errorf("NewStore() error = %v", err)
	}
}

func testSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	s, err := NewStore(StoreConfig{})
	if err != nil {
		t.Fatal(err)
	}
	s.Put(descriptor(http.MethodPost, "https://example.com/upload", "hello"), Static(&Response{
		Status: 200,
		Header: map[string]string{"content-type": "application/octet-stream"},
		Buffer: []byte{0x00, 0xff, 0x10},
	}))
	s.Put(descriptor(http.MethodGet, "https://example.com/users/1", ""), Static(&Response{
		Status: 200,
		JSON:   map[string]any{"id": 1.0},
	}))
	return s.Snapshot()
}

func TestSaveLoad(t *testing.T) {
	for _, ext := range []string{".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			snap := testSnapshot(t)
			path := filepath.Join(t.TempDir(), "nested", "recording"+ext)

			if err := Save(path, snap); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if loaded.IdentityFunc != fingerprint.DefaultName {
				t.Errorf("IdentityFunc = %q", loaded.IdentityFunc)
			}
			if len(loaded.Responses) != 2 {
				t.Fatalf("responses = %d, want 2", len(loaded.Responses))
			}
			for id, res := range snap.Responses {
				got := loaded.Responses[id]
				if got == nil {
					t.Fatalf("response %s missing after load", id)
				}
				want, _ := res.Payload()
				have, _ := got.Payload()
				if !bytes.Equal(want, have) {
					t.Errorf("payload %s = %q, want %q", id, have, want)
				}
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantField string
	}{
		{
			name:      "missing requests",
			input:     `{"version":1,"responses":{}}`,
			wantField: "requests",
		},
		{
			name:      "missing url",
			input:     `{"requests":{"1":{"method":"GET"}},"responses":{"1":{"status":200}}}`,
			wantField: "requests[1].url",
		},
		{
			name:      "missing response",
			input:     `{"requests":{"1":{"method":"GET","url":"https://x"}},"responses":{}}`,
			wantField: "responses[1]",
		},
		{
			name:      "missing status",
			input:     `{"requests":{"1":{"method":"GET","url":"https://x"}},"responses":{"1":{}}}`,
			wantField: "responses[1].status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input), FormatJSON)
			var malformed *MalformedError
			if !errors.As(err, &malformed) {
				t.Fatalf("Decode() error = %v, want *MalformedError", err)
			}
			if malformed.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", malformed.Field, tt.wantField)
			}
		})
	}
}

func TestFromSnapshot(t *testing.T) {
	snap := testSnapshot(t)
	s, err := FromSnapshot(snap, StoreConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	for _, id := range snap.Identities() {
		if !s.Contains(id) {
			t.Errorf("identity %s missing", id)
		}
	}
}
