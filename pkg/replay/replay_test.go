package replay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/playback/pkg/fingerprint"
	"mercator-hq/playback/pkg/intercept"
	"mercator-hq/playback/pkg/recorder"
	"mercator-hq/playback/pkg/recording"
)

var errOffline = errors.New("network disabled in test")

// offline fails every request that reaches the network.
var offline = intercept.RoundTripperFunc(func(*http.Request) (*http.Response, error) {
	return nil, errOffline
})

func strptr(s string) *string { return &s }

func snapshotOf(entries map[*fingerprint.Descriptor]*recording.Response) *recording.Snapshot {
	snap := recording.NewSnapshot("")
	for d, res := range entries {
		id := fingerprint.HashIdentity(d)
		snap.Descriptors[id] = d
		snap.Responses[id] = res
	}
	return snap
}

func get(t *testing.T, client *http.Client, url string) (*http.Response, string) {
	t.Helper()
	res, err := client.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(data)
}

func TestReplay_RecordedGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":1}`)
	}))
	url := srv.URL + "/users/1"

	rec, err := recorder.New(recorder.DefaultConfig())
	require.NoError(t, err)
	get(t, &http.Client{Transport: rec.Transport(nil)}, url)
	srv.Close()

	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, recording.Save(path, rec.Export()))
	snap, err := recording.Load(path)
	require.NoError(t, err)

	engine, err := New(snap, Options{Next: offline})
	require.NoError(t, err)

	res, body := get(t, &http.Client{Transport: engine}, url)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	assert.Equal(t, `{"id":1}`, body)
}

func TestReplay_PostBodiesDistinguished(t *testing.T) {
	h := http.Header{"Content-Type": {"application/json"}}
	snap := snapshotOf(map[*fingerprint.Descriptor]*recording.Response{
		fingerprint.Build(http.MethodPost, "https://api.example.com/q", h, []byte(`{"a":1}`)): {Status: 200, Text: strptr("one")},
		fingerprint.Build(http.MethodPost, "https://api.example.com/q", h, []byte(`{"a":2}`)): {Status: 200, Text: strptr("two")},
	})
	engine, err := New(snap, Options{Next: offline})
	require.NoError(t, err)
	client := &http.Client{Transport: engine}

	for payload, want := range map[string]string{`{"a":1}`: "one", `{"a":2}`: "two"} {
		res, err := client.Post("https://api.example.com/q", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		data, _ := io.ReadAll(res.Body)
		res.Body.Close()
		assert.Equal(t, want, string(data))
	}
}

func TestReplay_MissPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "live")
	}))
	defer srv.Close()

	engine, err := New(recording.NewSnapshot(""), Options{Next: http.DefaultTransport})
	require.NoError(t, err)

	_, body := get(t, &http.Client{Transport: engine}, srv.URL+"/never-recorded")
	assert.Equal(t, "live", body)
}

func TestReplay_MissFail(t *testing.T) {
	engine, err := New(recording.NewSnapshot(""), Options{MissPolicy: MissFail, Next: offline})
	require.NoError(t, err)

	_, err = (&http.Client{Transport: engine}).Get("https://api.example.com/none")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatch)

	var miss *MissError
	require.ErrorAs(t, err, &miss)
	assert.Equal(t, "https://api.example.com/none", miss.URL)
}

func TestReplay_Fallback(t *testing.T) {
	recorded := fingerprint.Build(http.MethodGet, "https://api.example.com/items?page=1", nil, nil)
	snap := snapshotOf(map[*fingerprint.Descriptor]*recording.Response{
		recorded: {Status: 200, Text: strptr("page one")},
	})

	var seen *Miss
	engine, err := New(snap, Options{
		Next: offline,
		Fallback: func(ctx context.Context, m *Miss) (*http.Response, error) {
			seen = m
			if strings.Contains(m.Descriptor.URL, "page=2") {
				return &http.Response{
					StatusCode: http.StatusTeapot,
					Body:       io.NopCloser(strings.NewReader("fallback")),
					Header:     http.Header{},
				}, nil
			}
			return nil, nil
		},
	})
	require.NoError(t, err)
	client := &http.Client{Transport: engine}

	res, body := get(t, client, "https://api.example.com/items?page=2")
	assert.Equal(t, http.StatusTeapot, res.StatusCode)
	assert.Equal(t, "fallback", body)

	require.NotNil(t, seen)
	assert.Equal(t, fingerprint.HashIdentity(seen.Descriptor), seen.Identity)
	assert.Len(t, seen.Responses(), 1)
	assert.Len(t, seen.Descriptors(), 1)
	assert.Equal(t,
		[]fingerprint.Identity{fingerprint.HashIdentity(recorded)},
		seen.IdentitiesForURL("https://api.example.com/items?page=1"),
	)

	_, err = client.Get("https://api.example.com/items?page=3")
	assert.ErrorIs(t, err, errOffline, "nil fallback response must fall through to the transport")
}

func TestReplay_FallbackError(t *testing.T) {
	boom := errors.New("fallback refused")
	engine, err := New(recording.NewSnapshot(""), Options{
		Next:     offline,
		Fallback: func(context.Context, *Miss) (*http.Response, error) { return nil, boom },
	})
	require.NoError(t, err)

	_, err = (&http.Client{Transport: engine}).Get("https://api.example.com/")
	assert.ErrorIs(t, err, boom)
}

func TestReplay_CollisionDiagnostic(t *testing.T) {
	fingerprint.Register("test-replay-constant", func(*fingerprint.Descriptor) fingerprint.Identity { return "k" })

	snap := recording.NewSnapshot("test-replay-constant")
	snap.Descriptors["a"] = fingerprint.Build(http.MethodGet, "https://one.example.com/", nil, nil)
	snap.Responses["a"] = &recording.Response{Status: 200}
	snap.Descriptors["b"] = fingerprint.Build(http.MethodGet, "https://two.example.com/", nil, nil)
	snap.Responses["b"] = &recording.Response{Status: 201}

	var logs bytes.Buffer
	_, err := New(snap, Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "https://one.example.com/")
	assert.Contains(t, logs.String(), "https://two.example.com/")

	logs.Reset()
	_, err = New(snap, Options{IgnoreCollisions: true, Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "collision")
}

func TestNew_Errors(t *testing.T) {
	snap := recording.NewSnapshot("")
	snap.IdentityFunc = "not-registered"
	_, err := New(snap, Options{})
	assert.ErrorIs(t, err, fingerprint.ErrUnknownIdentityFunc)

	_, err = New(recording.NewSnapshot(""), Options{MissPolicy: "sometimes"})
	assert.Error(t, err)

	bad := recording.NewSnapshot("")
	bad.Descriptors["x"] = &fingerprint.Descriptor{Method: "GET"}
	_, err = New(bad, Options{})
	assert.ErrorIs(t, err, recording.ErrMalformed)
}

func TestEngine_Install(t *testing.T) {
	d := fingerprint.Build(http.MethodGet, "https://api.example.com/ping", nil, nil)
	engine, err := New(snapshotOf(map[*fingerprint.Descriptor]*recording.Response{
		d: {Status: 200, Text: strptr("pong")},
	}), Options{})
	require.NoError(t, err)

	var rt http.RoundTripper = offline
	pp := intercept.New(&rt)
	client := &http.Client{Transport: intercept.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return rt.RoundTrip(req)
	})}

	release := engine.Install(pp)
	_, body := get(t, client, "https://api.example.com/ping")
	assert.Equal(t, "pong", body)

	_, err = client.Get("https://api.example.com/other")
	assert.ErrorIs(t, err, errOffline)

	release()
	_, err = client.Get("https://api.example.com/ping")
	assert.ErrorIs(t, err, errOffline)
}

func TestWatcher_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	d := fingerprint.Build(http.MethodGet, "https://api.example.com/v", nil, nil)
	write := func(text string) {
		require.NoError(t, recording.Save(path, snapshotOf(map[*fingerprint.Descriptor]*recording.Response{
			d: {Status: 200, Text: strptr(text)},
		})))
	}
	write("v1")

	w, err := NewWatcher(WatcherConfig{Path: path, DebounceInterval: 10 * time.Millisecond, Options: Options{Next: offline}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	client := &http.Client{Transport: w}
	_, body := get(t, client, "https://api.example.com/v")
	assert.Equal(t, "v1", body)

	// Give the watcher time to register before rewriting.
	time.Sleep(50 * time.Millisecond)
	write("v2")

	assert.Eventually(t, func() bool {
		res, err := client.Get("https://api.example.com/v")
		if err != nil {
			return false
		}
		defer res.Body.Close()
		data, err := io.ReadAll(res.Body)
		return err == nil && string(data) == "v2"
	}, 5*time.Second, 20*time.Millisecond)
}
