package recorder

import (
	"log/slog"
	"net/http"
	"sync"

	"mercator-hq/playback/pkg/capture"
	"mercator-hq/playback/pkg/fingerprint"
	"mercator-hq/playback/pkg/intercept"
)

// hubKey is the patch point key shared by all recorders.
const hubKey = "playback.recorder"

// hub fans one intercepted request out to every active recorder of a patch
// point.
type hub struct {
	mu        sync.RWMutex
	recorders []*Recorder
}

var (
	hubsMu sync.Mutex
	hubs   = map[*intercept.PatchPoint]*hub{}
)

func hubFor(pp *intercept.PatchPoint) *hub {
	hubsMu.Lock()
	defer hubsMu.Unlock()
	h, ok := hubs[pp]
	if !ok {
		h = &hub{}
		hubs[pp] = h
	}
	return h
}

func (h *hub) add(r *Recorder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recorders = append(h.recorders, r)
}

func (h *hub) remove(r *Recorder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, other := range h.recorders {
		if other == r {
			h.recorders = append(h.recorders[:i], h.recorders[i+1:]...)
			return
		}
	}
}

func (h *hub) active() []*Recorder {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Recorder, len(h.recorders))
	copy(out, h.recorders)
	return out
}

func (h *hub) wrap(next http.RoundTripper) http.RoundTripper {
	return intercept.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return roundTrip(h.active(), next, req)
	})
}

// roundTrip sends req through next once and records the response into every
// recorder. Transport errors are returned unchanged and record nothing.
func roundTrip(recorders []*Recorder, next http.RoundTripper, req *http.Request) (*http.Response, error) {
	if len(recorders) == 0 {
		return next.RoundTrip(req)
	}

	// Describe may replace the body of the request it is given.
	if req.Body != nil && req.GetBody == nil {
		req = req.Clone(req.Context())
	}

	d, err := fingerprint.Describe(req)
	if err != nil {
		slog.Default().With("component", "recorder").Warn("request not recorded",
			"method", req.Method,
			"url", req.URL.String(),
			"error", err,
		)
		return next.RoundTrip(req)
	}

	pendings := make([]*Pending, len(recorders))
	for i, r := range recorders {
		pendings[i] = r.Record(d)
	}

	res, err := next.RoundTrip(req)
	if err != nil {
		for _, p := range pendings {
			p.Abandon()
		}
		return nil, err
	}

	observed, handle := capture.Wrap(res)
	for _, p := range pendings {
		p.Resolve(handle)
	}
	return observed, nil
}
