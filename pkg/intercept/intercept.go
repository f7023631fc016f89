// Package intercept installs http.RoundTripper decorators on a shared
// transport variable, such as http.DefaultTransport.
//
// Each decorator is installed under a key and reference counted: the first
// Acquire of a key installs it, later Acquires of the same key only count,
// and the release that brings the count back to zero uninstalls it. When no
// key is active the variable holds exactly the value it had before the first
// install.
//
// net/http reads http.DefaultTransport without synchronization, so requests
// issued through http.DefaultClient concurrently with an install or
// uninstall may observe either transport.
package intercept

import (
	"net/http"
	"sync"
)

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// WrapFunc decorates the next transport in the chain.
type WrapFunc func(next http.RoundTripper) http.RoundTripper

type layer struct {
	key   string
	wrap  WrapFunc
	count int
}

// PatchPoint owns one transport variable.
type PatchPoint struct {
	mu       sync.Mutex
	target   *http.RoundTripper
	original http.RoundTripper
	layers   []*layer
}

// Default patches http.DefaultTransport.
var Default = New(&http.DefaultTransport)

// New creates a PatchPoint for target.
func New(target *http.RoundTripper) *PatchPoint {
	return &PatchPoint{target: target}
}

// Acquire activates the decorator for key and returns its release function.
// wrap is only used when key is not already active. The release function is
// idempotent.
func (p *PatchPoint) Acquire(key string, wrap WrapFunc) (release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l := p.find(key); l != nil {
		l.count++
	} else {
		if len(p.layers) == 0 {
			p.original = *p.target
		}
		p.layers = append(p.layers, &layer{key: key, wrap: wrap, count: 1})
		p.rebuild()
	}

	var once sync.Once
	return func() {
		once.Do(func() { p.release(key) })
	}
}

func (p *PatchPoint) release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, l := range p.layers {
		if l.key != key {
			continue
		}
		l.count--
		if l.count > 0 {
			return
		}
		p.layers = append(p.layers[:i], p.layers[i+1:]...)
		if len(p.layers) == 0 {
			*p.target = p.original
			p.original = nil
			return
		}
		p.rebuild()
		return
	}
}

// rebuild stacks the active layers over the original transport in
// activation order. It is called with p.mu held.
func (p *PatchPoint) rebuild() {
	chain := p.base()
	for _, l := range p.layers {
		chain = l.wrap(chain)
	}
	*p.target = chain
}

func (p *PatchPoint) find(key string) *layer {
	for _, l := range p.layers {
		if l.key == key {
			return l
		}
	}
	return nil
}

// Original returns the transport the chain delegates to.
func (p *PatchPoint) Original() http.RoundTripper {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.base()
}

// base falls back to a plain transport when the variable was nil. It is
// called with p.mu held.
func (p *PatchPoint) base() http.RoundTripper {
	if p.original != nil {
		return p.original
	}
	if len(p.layers) == 0 && *p.target != nil {
		return *p.target
	}
	return &http.Transport{Proxy: http.ProxyFromEnvironment, ForceAttemptHTTP2: true}
}

// Count returns the number of active holders of key.
func (p *PatchPoint) Count(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l := p.find(key); l != nil {
		return l.count
	}
	return 0
}

// Installed reports whether any decorator is active.
func (p *PatchPoint) Installed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.layers) > 0
}
