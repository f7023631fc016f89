package fingerprint

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
)

// Identity is the key a request is recorded and replayed under.
type Identity string

// IdentityFunc maps a Descriptor to its Identity. Implementations must be
// deterministic and must not retain d.
type IdentityFunc func(d *Descriptor) Identity

// Names of the built-in identity functions.
const (
	// HashCodeName hashes the full canonical form. It is the default.
	HashCodeName = "hashcode"

	// URLMethodName identifies requests by method and URL only.
	URLMethodName = "url-method"

	// IgnoreQueryName hashes the canonical form with the query string removed.
	IgnoreQueryName = "ignore-query"
)

// DefaultName is the identity function used when none is configured.
const DefaultName = HashCodeName

// ErrUnknownIdentityFunc is returned by Lookup for unregistered names.
var ErrUnknownIdentityFunc = errors.New("unknown identity function")

var (
	registryMu sync.RWMutex
	registry   = map[string]IdentityFunc{
		HashCodeName:    HashIdentity,
		URLMethodName:   URLMethodIdentity,
		IgnoreQueryName: IgnoreQueryIdentity,
	}
)

// HashIdentity is the default identity: the decimal HashCode of Canonical(d).
func HashIdentity(d *Descriptor) Identity {
	return Identity(strconv.FormatInt(int64(HashCode(Canonical(d))), 10))
}

// URLMethodIdentity ignores the body entirely.
func URLMethodIdentity(d *Descriptor) Identity {
	return Identity(d.Method + " " + d.URL)
}

// IgnoreQueryIdentity hashes the canonical form of d with the URL query and
// fragment stripped.
func IgnoreQueryIdentity(d *Descriptor) Identity {
	rawURL := d.URL
	if u, err := url.Parse(d.URL); err == nil {
		u.RawQuery = ""
		u.ForceQuery = false
		u.Fragment = ""
		u.RawFragment = ""
		rawURL = u.String()
	}
	return Identity(strconv.FormatInt(int64(HashCode(canonical(rawURL, d))), 10))
}

// Register adds or replaces a named identity function.
func Register(name string, fn IdentityFunc) {
	if name == "" || fn == nil {
		panic("fingerprint: Register requires a name and a function")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// Lookup returns the identity function registered under name. An empty name
// selects DefaultName.
func Lookup(name string) (IdentityFunc, error) {
	if name == "" {
		name = DefaultName
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIdentityFunc, name)
	}
	return fn, nil
}

// Names lists the registered identity function names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
