package recorder

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"mercator-hq/playback/pkg/fingerprint"
	"mercator-hq/playback/pkg/intercept"
	"mercator-hq/playback/pkg/recording"
	"mercator-hq/playback/pkg/telemetry/logging"
	"mercator-hq/playback/pkg/telemetry/metrics"
)

// Config contains configuration for a Recorder.
type Config struct {
	// IdentityFunc names the registered identity function.
	// Default: "hashcode"
	IdentityFunc string

	// IgnoreCollisions suppresses collision diagnostics.
	// Default: false
	IgnoreCollisions bool

	// PatchPoint is the transport variable Start patches.
	// Default: intercept.Default (http.DefaultTransport)
	PatchPoint *intercept.PatchPoint

	// Redactor masks headers in diagnostics.
	Redactor *logging.Redactor

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() Config {
	return Config{
		IdentityFunc: fingerprint.DefaultName,
		PatchPoint:   intercept.Default,
	}
}

// Recorder records request/response pairs into its own store.
type Recorder struct {
	id     string
	config Config
	store  *recording.Store
	logger *slog.Logger

	mu      sync.Mutex
	release func()

	// pending tracks requests awaiting their response.
	pending      sync.Map // map[*Pending]struct{}
	pendingCount atomic.Int64
}

// New creates a stopped Recorder. It fails when the identity function is not
// registered.
func New(cfg Config) (*Recorder, error) {
	if cfg.IdentityFunc == "" {
		cfg.IdentityFunc = fingerprint.DefaultName
	}
	if cfg.PatchPoint == nil {
		cfg.PatchPoint = intercept.Default
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	id := uuid.New().String()
	logger := cfg.Logger.With("component", "recorder", "recorder_id", id)

	collector := cfg.Metrics
	store, err := recording.NewStore(recording.StoreConfig{
		IdentityFunc:     cfg.IdentityFunc,
		IgnoreCollisions: cfg.IgnoreCollisions,
		Redactor:         cfg.Redactor,
		Logger:           logger,
		OnCollision: func(recording.Collision) {
			collector.RecordCollision(metrics.SourceRecord)
		},
	})
	if err != nil {
		return nil, err
	}

	return &Recorder{
		id:     id,
		config: cfg,
		store:  store,
		logger: logger,
	}, nil
}

// ID returns the recorder's unique id. It doubles as the storage session id.
func (r *Recorder) ID() string {
	return r.id
}

// Store returns the recorder's store.
func (r *Recorder) Store() *recording.Store {
	return r.store
}

// Start activates recording on the configured patch point. Starting a
// started recorder does nothing.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.release != nil {
		return
	}

	h := hubFor(r.config.PatchPoint)
	h.add(r)
	releasePatch := r.config.PatchPoint.Acquire(hubKey, h.wrap)
	r.release = func() {
		h.remove(r)
		releasePatch()
	}
	r.config.Metrics.RecorderStarted()

	r.logger.Info("recorder started", "identity_func", r.config.IdentityFunc)
}

// Stop deactivates recording. Requests already in flight still complete
// into the store.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.release == nil {
		return
	}
	r.release()
	r.release = nil
	r.config.Metrics.RecorderStopped()

	r.logger.Info("recorder stopped",
		"recordings", r.store.Len(),
		"in_flight", r.pendingCount.Load(),
	)
}

// Active reports whether the recorder is started.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.release != nil
}

// Record registers interest in the response to the request described by d.
// The returned Pending must be resolved or abandoned.
func (r *Recorder) Record(d *fingerprint.Descriptor) *Pending {
	p := &Pending{
		recorder:   r,
		descriptor: d,
		identity:   r.store.Identify(d),
	}
	r.pending.Store(p, struct{}{})
	r.pendingCount.Add(1)

	r.logger.Debug("request pending",
		"identity", p.identity,
		"method", d.Method,
		"url", d.URL,
	)
	return p
}

// Transport returns a RoundTripper that records requests sent through next
// into this recorder only, whether or not the recorder is started. A nil
// next uses http.DefaultTransport at call time.
func (r *Recorder) Transport(next http.RoundTripper) http.RoundTripper {
	return intercept.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		transport := next
		if transport == nil {
			transport = http.DefaultTransport
		}
		return roundTrip([]*Recorder{r}, transport, req)
	})
}

// Export returns a snapshot of everything recorded so far.
func (r *Recorder) Export() *recording.Snapshot {
	return r.store.Snapshot()
}

// Pending is a recorded request waiting for its response.
type Pending struct {
	recorder   *Recorder
	descriptor *fingerprint.Descriptor
	identity   fingerprint.Identity
	once       sync.Once
}

// Identity returns the identity the response will be stored under.
func (p *Pending) Identity() fingerprint.Identity {
	return p.identity
}

// Resolve stores the descriptor and src in the recorder's store.
func (p *Pending) Resolve(src recording.Source) {
	p.once.Do(func() {
		r := p.recorder
		r.forget(p)
		if _, stored := r.store.Put(p.descriptor, src); stored {
			r.config.Metrics.RecordRecording(r.config.IdentityFunc)
			r.logger.Debug("response recorded", "identity", p.identity)
		}
	})
}

// Abandon drops the request without storing anything.
func (p *Pending) Abandon() {
	p.once.Do(func() {
		p.recorder.forget(p)
	})
}

func (r *Recorder) forget(p *Pending) {
	if _, ok := r.pending.LoadAndDelete(p); ok {
		r.pendingCount.Add(-1)
	}
}
