// Package codespace implements the isolation space: a
// per-addon resolution scope that first looks at its own archive and
// dependency set, then falls back to searching sibling addon spaces in
// registration order, emitting a one-shot diagnostic whenever that
// cross-space fallback crosses an undeclared dependency edge.
//
// There is no Go analogue of a JVM ClassLoader, so "class resolution" here
// is deliberately abstracted to Resource lookup by name: a Space wraps
// whatever SourceProvider the addon engine built from its resolved archive
// and artifact URLs, and this package only owns the search order,
// the one-shot warning bookkeeping, and the engine-package hiding rule.
package codespace

import (
	"strings"
	"sync"

	"forgecore/internal/engineerr"
	"forgecore/pkg/logging"
)

// Resource is a named, resolved artifact — the stand-in for a loaded
// class. Bytes is opaque to this package.
type Resource struct {
	Name  string
	Bytes []byte
}

// SourceProvider resolves names local to a single addon's self-scope
// (its own archive plus every resolved dependency URL, already
// deduplicated by URI when the provider was built).
type SourceProvider interface {
	Resolve(name string) (Resource, bool)
}

// Space is one addon's isolation space.
type Space struct {
	name    string
	self    SourceProvider
	depends map[string]struct{} // declared `depends` entries, lower-cased

	registry *Registry
}

// newSpace constructs a space for addonName, normalising its declared
// dependency names for case-insensitive comparison.
func newSpace(addonName string, self SourceProvider, depends []string, registry *Registry) *Space {
	declared := make(map[string]struct{}, len(depends))
	for _, d := range depends {
		declared[strings.ToLower(d)] = struct{}{}
	}
	return &Space{name: addonName, self: self, depends: declared, registry: registry}
}

// Name returns the owning addon's name.
func (s *Space) Name() string { return s.name }

// Resolve looks up name: self-scope first, then
// cross-space search in registration order, with engine-package hiding
// and one-shot undeclared-dependency diagnostics.
func (s *Space) Resolve(name string) (Resource, error) {
	if s.registry.isEngineInternal(name) {
		return Resource{}, engineerr.New(engineerr.KindNotFound, name, nil)
	}

	if res, ok := s.self.Resolve(name); ok {
		return res, nil
	}

	for _, other := range s.registry.snapshot() {
		if other == s {
			continue
		}
		res, ok := other.self.Resolve(name)
		if !ok {
			continue
		}
		s.registry.warnIfUndeclared(s, other, name)
		return res, nil
	}

	return Resource{}, engineerr.New(engineerr.KindNotFound, name, nil)
}

// dependsOn reports whether s declares providerName in its depends list.
func (s *Space) dependsOn(providerName string) bool {
	_, ok := s.depends[strings.ToLower(providerName)]
	return ok
}

// Registry owns every addon's Space plus the engine-internal prefix and
// the one-shot warning dedup set, coordinating cross-space search order
// and concurrency-safe lookup.
type Registry struct {
	mu           sync.RWMutex
	order        []*Space
	enginePrefix string
	warned       sync.Map // key: consumer+"\x00"+provider+"\x00"+class
}

// NewRegistry returns a registry hiding any name rooted at enginePrefix
// from findClass-style resolution.
func NewRegistry(enginePrefix string) *Registry {
	return &Registry{enginePrefix: enginePrefix}
}

// Register creates and appends a new space for addonName, in discovery
// order; later cross-space lookups search earlier-registered spaces
// first.
func (reg *Registry) Register(addonName string, self SourceProvider, depends []string) *Space {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	space := newSpace(addonName, self, depends, reg)
	reg.order = append(reg.order, space)
	return space
}

// Release drops addonName's space, e.g. at shutdown once its code space
// reference is no longer needed.
func (reg *Registry) Release(space *Space) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for i, s := range reg.order {
		if s == space {
			reg.order = append(reg.order[:i], reg.order[i+1:]...)
			return
		}
	}
}

func (reg *Registry) snapshot() []*Space {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Space, len(reg.order))
	copy(out, reg.order)
	return out
}

func (reg *Registry) isEngineInternal(name string) bool {
	if reg.enginePrefix == "" {
		return false
	}
	return strings.HasPrefix(name, reg.enginePrefix)
}

// warnIfUndeclared logs the one-shot "loaded from an undeclared
// dependency" diagnostic the first time consumer resolves a name through
// provider without provider appearing in consumer's depends list.
func (reg *Registry) warnIfUndeclared(consumer, provider *Space, class string) {
	if consumer.dependsOn(provider.name) {
		return
	}
	key := consumer.name + "\x00" + provider.name + "\x00" + class
	if _, loaded := reg.warned.LoadOrStore(key, struct{}{}); loaded {
		return
	}
	logging.Warn("codespace", "%s loaded %s from %s which is not marked as dependent", consumer.name, class, provider.name)
}
