package capture

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"mercator-hq/playback/pkg/body"
	"mercator-hq/playback/pkg/fingerprint"
	"mercator-hq/playback/pkg/recording"
)

// Handle is the recording side of a capture. It satisfies
// recording.Source.
type Handle struct {
	mu  sync.Mutex
	rec *recording.Response
}

// Snapshot returns a deep copy of everything recorded so far.
func (h *Handle) Snapshot() *recording.Response {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rec.Clone()
}

func (h *Handle) update(fn func(rec *recording.Response)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.rec)
}

// Wrap instruments res and returns the observed response and its Handle.
// res must not be used afterwards; its Body is owned by the observed
// response.
func Wrap(res *http.Response) (*http.Response, *Handle) {
	h := &Handle{rec: describe(res)}

	st := &state{
		src:         res.Body,
		handle:      h,
		contentType: res.Header.Get("Content-Type"),
	}
	if res.Body == nil || res.Body == http.NoBody {
		st.empty = true
	}
	root := st.newStream()

	observed := new(http.Response)
	*observed = *res
	observed.Body = root
	st.observed = observed
	observedBodies.Store(observed, st)
	return observed, h
}

// observedBodies maps each observed response to its capture state until the
// root stream is closed. http.Client replaces Body with its own wrapper when
// a timeout is set, so the Body alone does not identify a capture.
var observedBodies sync.Map // *http.Response -> *state

// From returns the body readers of a response produced by Wrap. It also
// works after http.Client has wrapped the body, as long as the body has not
// been closed.
func From(res *http.Response) (*Body, bool) {
	if res == nil {
		return nil, false
	}
	if s, ok := res.Body.(*Stream); ok {
		return &Body{st: s.st}, true
	}
	if v, ok := observedBodies.Load(res); ok {
		return &Body{st: v.(*state)}, true
	}
	return nil, false
}

func describe(res *http.Response) *recording.Response {
	rec := &recording.Response{
		Status:     res.StatusCode,
		StatusText: statusText(res),
		Header:     fingerprint.FlattenHeader(res.Header),
		Type:       "basic",
		OK:         res.StatusCode >= 200 && res.StatusCode < 300,
	}
	if res.Request != nil && res.Request.URL != nil {
		rec.URL = res.Request.URL.String()
		rec.Redirected = res.Request.Response != nil
	}
	return rec
}

// statusText strips the numeric code from res.Status.
func statusText(res *http.Response) string {
	text := strings.TrimSpace(res.Status)
	if code, rest, ok := strings.Cut(text, " "); ok && len(code) == 3 {
		return rest
	}
	if text == "" || len(text) == 3 {
		return http.StatusText(res.StatusCode)
	}
	return text
}

// chunk is one read from the underlying body.
type chunk struct {
	seq  int
	data []byte
}

// state is shared by the root stream, its tee branches and the single-shot
// readers of one response.
type state struct {
	mu sync.Mutex
	// readMu serializes network reads by streams. It is taken before mu.
	readMu sync.Mutex

	src         io.ReadCloser
	handle      *Handle
	contentType string
	empty       bool
	observed    *http.Response

	streamed bool // a Stream has read from src
	drained  bool // a single-shot reader has read src to the end
	cached   []byte
	err      error // terminal read error from src
	eof      bool
	closed   bool

	nextSeq   int
	watermark int
	streams   []*Stream
}

// observe records c unless a chunk with the same or a later number has
// already been recorded.
func (st *state) observe(c chunk) {
	if c.seq < st.watermark {
		return
	}
	st.watermark = c.seq + 1
	data := body.Bytes(c.data).Clone()
	st.handle.update(func(rec *recording.Response) {
		rec.Chunks = append(rec.Chunks, data)
	})
}

func (st *state) discardChunks() {
	st.handle.update(func(rec *recording.Response) {
		rec.Chunks = nil
	})
}
