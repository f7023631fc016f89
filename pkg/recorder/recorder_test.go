package recorder

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/playback/pkg/capture"
	"mercator-hq/playback/pkg/fingerprint"
	"mercator-hq/playback/pkg/intercept"
)

// patchable returns a private patch point and a client that always sends
// through the variable it patches.
func patchable() (*intercept.PatchPoint, *http.Client) {
	var rt http.RoundTripper = http.DefaultTransport
	pp := intercept.New(&rt)
	client := &http.Client{Transport: intercept.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return rt.RoundTrip(req)
	})}
	return pp, client
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/1":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"id":1}`)
		case "/echo":
			data, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			w.Write(data)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRecorder(t *testing.T, pp *intercept.PatchPoint) *Recorder {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PatchPoint = pp
	rec, err := New(cfg)
	require.NoError(t, err)
	return rec
}

func TestRecorder_RecordsGet(t *testing.T) {
	srv := newServer(t)
	pp, client := patchable()
	rec := newRecorder(t, pp)

	rec.Start()
	res, err := client.Get(srv.URL + "/users/1")
	require.NoError(t, err)
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	res.Body.Close()
	rec.Stop()

	assert.Equal(t, `{"id":1}`, string(data))

	snap := rec.Export()
	require.Len(t, snap.Responses, 1)
	for id, d := range snap.Descriptors {
		assert.Equal(t, http.MethodGet, d.Method)
		assert.Equal(t, srv.URL+"/users/1", d.URL)

		r := snap.Responses[id]
		assert.Equal(t, http.StatusOK, r.Status)
		payload, err := r.Payload()
		require.NoError(t, err)
		assert.Equal(t, `{"id":1}`, string(payload))
	}
}

func TestRecorder_DistinctBodies(t *testing.T) {
	srv := newServer(t)
	pp, client := patchable()
	rec := newRecorder(t, pp)

	rec.Start()
	defer rec.Stop()

	for _, payload := range []string{`{"a":1}`, `{"a":2}`} {
		res, err := client.Post(srv.URL+"/echo", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		io.ReadAll(res.Body)
		res.Body.Close()
	}

	ids := rec.Store().Identities()
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])

	_, first, _ := rec.Store().Lookup(ids[0])
	_, second, _ := rec.Store().Lookup(ids[1])
	p1, _ := first.Payload()
	p2, _ := second.Payload()
	assert.Equal(t, `{"a":1}`, string(p1))
	assert.Equal(t, `{"a":2}`, string(p2))
}

func TestRecorder_SharedPatchPoint(t *testing.T) {
	srv := newServer(t)
	pp, client := patchable()
	first := newRecorder(t, pp)
	second := newRecorder(t, pp)

	first.Start()
	second.Start()
	assert.Equal(t, 2, pp.Count(hubKey))

	res, err := client.Get(srv.URL + "/users/1")
	require.NoError(t, err)
	b, ok := capture.From(res)
	require.True(t, ok)
	v, err := b.JSON()
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, map[string]any{"id": 1.0}, v)

	first.Stop()
	assert.True(t, pp.Installed(), "patch removed while a recorder is active")
	second.Stop()
	assert.False(t, pp.Installed())

	for _, rec := range []*Recorder{first, second} {
		snap := rec.Export()
		require.Len(t, snap.Responses, 1)
		for _, r := range snap.Responses {
			assert.Equal(t, map[string]any{"id": 1.0}, r.JSON)
		}
	}
}

func TestRecorder_ClientTimeoutKeepsReaders(t *testing.T) {
	srv := newServer(t)
	pp, client := patchable()
	client.Timeout = 5 * time.Second
	rec := newRecorder(t, pp)
	rec.Start()

	res, err := client.Get(srv.URL + "/users/1")
	require.NoError(t, err)
	b, ok := capture.From(res)
	require.True(t, ok, "readers unreachable behind %T", res.Body)
	v, err := b.JSON()
	require.NoError(t, err)
	res.Body.Close()
	rec.Stop()
	assert.Equal(t, map[string]any{"id": 1.0}, v)

	snap := rec.Export()
	require.Len(t, snap.Responses, 1)
	for _, r := range snap.Responses {
		assert.Equal(t, map[string]any{"id": 1.0}, r.JSON)
	}
}

func TestRecorder_StoppedRecordsNothing(t *testing.T) {
	srv := newServer(t)
	pp, client := patchable()
	rec := newRecorder(t, pp)

	rec.Start()
	rec.Stop()

	res, err := client.Get(srv.URL + "/users/1")
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, 0, rec.Store().Len())
	assert.False(t, rec.Active())
}

func TestRecorder_TransportErrorRecordsNothing(t *testing.T) {
	rec := newRecorder(t, intercept.New(new(http.RoundTripper)))
	boom := errors.New("dial failed")
	failing := intercept.RoundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, boom
	})

	client := &http.Client{Transport: rec.Transport(failing)}
	_, err := client.Get("https://unreachable.example.com/")

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, rec.Store().Len())
	assert.Equal(t, int64(0), rec.pendingCount.Load())
}

func TestRecorder_Transport(t *testing.T) {
	srv := newServer(t)
	rec := newRecorder(t, intercept.New(new(http.RoundTripper)))
	client := &http.Client{Transport: rec.Transport(nil)}

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/echo", io.NopCloser(strings.NewReader(`{"q":1}`)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, `{"q":1}`, string(data), "request body consumed by fingerprinting")
	assert.Equal(t, 1, rec.Store().Len())
}

func TestRecorder_CollisionDiagnostic(t *testing.T) {
	fingerprint.Register("test-recorder-constant", func(*fingerprint.Descriptor) fingerprint.Identity {
		return "constant"
	})

	srv := newServer(t)
	var logs bytes.Buffer
	cfg := DefaultConfig()
	cfg.IdentityFunc = "test-recorder-constant"
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	rec, err := New(cfg)
	require.NoError(t, err)

	client := &http.Client{Transport: rec.Transport(nil)}
	for _, path := range []string{"/users/1", "/missing"} {
		res, err := client.Get(srv.URL + path)
		require.NoError(t, err)
		io.ReadAll(res.Body)
		res.Body.Close()
	}

	out := logs.String()
	assert.Contains(t, out, "identity collision")
	assert.Contains(t, out, srv.URL+"/users/1")
	assert.Contains(t, out, srv.URL+"/missing")

	_, r, ok := rec.Store().Lookup("constant")
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, r.Status, "later recording must overwrite")
}

func TestNew_UnknownIdentityFunc(t *testing.T) {
	_, err := New(Config{IdentityFunc: "does-not-exist"})
	assert.ErrorIs(t, err, fingerprint.ErrUnknownIdentityFunc)
}
