package replay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/playback/pkg/fingerprint"
	"mercator-hq/playback/pkg/intercept"
	"mercator-hq/playback/pkg/recording"
	"mercator-hq/playback/pkg/telemetry/logging"
	"mercator-hq/playback/pkg/telemetry/metrics"
)

// MissPolicy decides what happens to a request that matches no recording
// and is not answered by the fallback hook.
type MissPolicy string

const (
	// MissPassThrough sends the request to the next transport.
	MissPassThrough MissPolicy = "passthrough"
	// MissFail returns a *MissError.
	MissFail MissPolicy = "fail"
)

// ParseMissPolicy parses a policy name. The empty string selects
// MissPassThrough.
func ParseMissPolicy(name string) (MissPolicy, error) {
	switch MissPolicy(name) {
	case "", MissPassThrough:
		return MissPassThrough, nil
	case MissFail:
		return MissFail, nil
	default:
		return "", fmt.Errorf("unknown miss policy: %s", name)
	}
}

// FallbackFunc is called for every miss. Returning a nil response defers to
// the miss policy; returning an error fails the request with that error.
type FallbackFunc func(ctx context.Context, miss *Miss) (*http.Response, error)

// Options contains configuration for an Engine.
type Options struct {
	Fallback FallbackFunc

	// MissPolicy applies when Fallback is nil or returns no response.
	// Default: MissPassThrough
	MissPolicy MissPolicy

	// IgnoreCollisions suppresses diagnostics for snapshot entries that
	// recompute to the same identity.
	IgnoreCollisions bool

	// Next receives passed through requests.
	// Default: http.DefaultTransport at call time
	Next http.RoundTripper

	Redactor *logging.Redactor
	Logger   *slog.Logger
	Metrics  *metrics.Collector
}

// Engine answers requests from a snapshot. It is safe for concurrent use
// and implements http.RoundTripper.
type Engine struct {
	store   *recording.Store
	options Options
	logger  *slog.Logger
}

// New builds an Engine from snap. It fails when the snapshot is malformed or
// names an identity function that is not registered.
func New(snap *recording.Snapshot, opts Options) (*Engine, error) {
	if opts.MissPolicy == "" {
		opts.MissPolicy = MissPassThrough
	}
	if _, err := ParseMissPolicy(string(opts.MissPolicy)); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "replay")

	collector := opts.Metrics
	store, err := recording.FromSnapshot(snap, recording.StoreConfig{
		IgnoreCollisions: opts.IgnoreCollisions,
		Redactor:         opts.Redactor,
		Logger:           logger,
		OnCollision: func(recording.Collision) {
			collector.RecordCollision(metrics.SourceReplay)
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Info("replay engine ready",
		"identity_func", store.IdentityFuncName(),
		"recordings", store.Len(),
		"miss_policy", opts.MissPolicy,
	)

	return &Engine{store: store, options: opts, logger: logger}, nil
}

// Store returns the engine's recordings.
func (e *Engine) Store() *recording.Store {
	return e.store
}

// RoundTrip implements http.RoundTripper.
func (e *Engine) RoundTrip(req *http.Request) (*http.Response, error) {
	next := e.options.Next
	if next == nil {
		next = http.DefaultTransport
	}
	return e.roundTrip(req, next)
}

// Transport returns a RoundTripper that replays through e and passes misses
// to next.
func (e *Engine) Transport(next http.RoundTripper) http.RoundTripper {
	return intercept.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return e.roundTrip(req, next)
	})
}

// Install patches pp so that every request through it is replayed. Misses
// pass through to whatever pp wraps. The returned function uninstalls.
func (e *Engine) Install(pp *intercept.PatchPoint) (release func()) {
	return pp.Acquire(fmt.Sprintf("playback.replay.%p", e), func(next http.RoundTripper) http.RoundTripper {
		return e.Transport(next)
	})
}

func (e *Engine) roundTrip(req *http.Request, next http.RoundTripper) (*http.Response, error) {
	start := time.Now()

	if req.Body != nil && req.GetBody == nil {
		req = req.Clone(req.Context())
	}
	d, err := fingerprint.Describe(req)
	if err != nil {
		return nil, err
	}
	id := e.store.Identify(d)

	if _, rec, ok := e.store.Lookup(id); ok {
		res, err := rec.HTTPResponse(req)
		if err != nil {
			return nil, fmt.Errorf("replay: reconstructing %s: %w", id, err)
		}
		e.logger.Debug("replay hit", "identity", id, "method", d.Method, "url", d.URL)
		e.options.Metrics.RecordReplay(metrics.ResultHit, time.Since(start))
		return res, nil
	}

	miss := &Miss{Request: req, Descriptor: d, Identity: id, store: e.store}
	if e.options.Fallback != nil {
		res, err := e.options.Fallback(req.Context(), miss)
		if err != nil {
			return nil, err
		}
		if res != nil {
			e.logger.Debug("replay miss answered by fallback", "identity", id, "url", d.URL)
			e.options.Metrics.RecordReplay(metrics.ResultFallback, time.Since(start))
			return res, nil
		}
	}

	near := e.store.IdentitiesForURL(d.URL)
	if e.options.MissPolicy == MissFail {
		e.logger.Warn("replay miss",
			"identity", id,
			"method", d.Method,
			"url", d.URL,
			"identities_for_url", near,
		)
		e.options.Metrics.RecordReplay(metrics.ResultMiss, time.Since(start))
		return nil, &MissError{Method: d.Method, URL: d.URL, Identity: id}
	}

	e.logger.Debug("replay miss passed through",
		"identity", id,
		"method", d.Method,
		"url", d.URL,
		"identities_for_url", near,
	)
	res, err := next.RoundTrip(req)
	e.options.Metrics.RecordReplay(metrics.ResultPassThrough, time.Since(start))
	return res, err
}

// Miss describes a request that matched no recording.
type Miss struct {
	Request    *http.Request
	Descriptor *fingerprint.Descriptor
	Identity   fingerprint.Identity

	store *recording.Store
}

// Responses returns the full recording table.
func (m *Miss) Responses() map[fingerprint.Identity]*recording.Response {
	return m.store.Responses()
}

// Descriptors returns the full descriptor table.
func (m *Miss) Descriptors() map[fingerprint.Identity]*fingerprint.Descriptor {
	return m.store.Descriptors()
}

// IdentitiesForURL lists the recorded identities whose request had rawURL.
func (m *Miss) IdentitiesForURL(rawURL string) []fingerprint.Identity {
	return m.store.IdentitiesForURL(rawURL)
}
