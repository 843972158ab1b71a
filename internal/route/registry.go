package route

import (
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"forgecore/internal/engineerr"
	"forgecore/internal/pattern"
	"forgecore/internal/requirement"
)

// ServerController lets the registry nudge the owning servers awake or
// asleep as endpoints come and go, on registration and unregistration.
type ServerController interface {
	// AwakeOrWarn starts the server if it is dormant; if the server was
	// forcibly disabled by configuration, it logs a warning instead.
	AwakeOrWarn(kind requirement.ServerKind)
	// SleepIfNotNeeded stops the server if it has no remaining endpoints
	// or share mounts bound to it.
	SleepIfNotNeeded(kind requirement.ServerKind)
}

// Share is a static-file mount: a compiled `<template>/?(.*)` pattern
// served from a filesystem root. Unlike route patterns, the tail group
// must capture an arbitrary (possibly multi-segment) relative path, so
// it is matched with its own regexp rather than through the
// named-group pattern compiler.
type Share struct {
	re      *regexp.Regexp
	Root    string
	OnlyGet bool
}

// compileShare builds the `<template>/?(.*)` matcher for a share mount.
func compileShare(template string) *regexp.Regexp {
	prefix := regexp.QuoteMeta(pattern.Canonicalize(template))
	return regexp.MustCompile(`(?i)^` + prefix + `/?(.*)$`)
}

// Registry is the route registry: a per-server-kind map from compiled
// pattern to endpoint list, plus a share-mount store. It owns no
// transport; the engine wires it to listeners.
type Registry struct {
	mu sync.RWMutex

	patterns    *pattern.Cache
	requirement *requirement.Registry
	controller  ServerController

	httpEndpoints   map[string][]*Endpoint // keyed by pattern.Canonical
	socketEndpoints map[string][]*Endpoint
	shares          []*Share

	fallback     *Endpoint
	fallbackFunc func(*HTTPExchange)
	seq          uint64

	skipDefaultRoute bool
}

// NewRegistry constructs an empty registry bound to reqs for predicate
// application and ctrl for wake/sleep notifications.
func NewRegistry(reqs *requirement.Registry, ctrl ServerController, skipDefaultRoute bool) *Registry {
	return &Registry{
		patterns:         pattern.NewCache(),
		requirement:      reqs,
		controller:       ctrl,
		httpEndpoints:    make(map[string][]*Endpoint),
		socketEndpoints:  make(map[string][]*Endpoint),
		skipDefaultRoute: skipDefaultRoute,
	}
}

// InstallFallback registers the default fallback handler directly,
// bypassing the normal Register validation path, so the engine can seed it
// at startup. It is a no-op if skipDefaultRoute was set.
func (r *Registry) InstallFallback(fn func(*HTTPExchange)) {
	if r.skipDefaultRoute {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbackFunc = fn
	r.installFallbackLocked()
}

func (r *Registry) installFallbackLocked() {
	if r.fallbackFunc == nil || r.fallback != nil {
		return
	}
	r.fallback = &Endpoint{
		Kind:     HTTPEndpoint,
		Priority: LOWEST,
		Seq:      r.nextSeq(),
		HTTPFunc: r.fallbackFunc,
	}
}

// isEmptyLocked reports whether no user endpoint, share, or WebSocket
// endpoint remains registered, the condition under which the fallback
// handler must be present. The fallback itself, which is kept out of
// httpEndpoints, never counts against emptiness.
func (r *Registry) isEmptyLocked() bool {
	if len(r.socketEndpoints) > 0 || len(r.shares) > 0 {
		return false
	}
	return len(r.httpEndpoints) == 0
}

func (r *Registry) nextSeq() uint64 {
	r.seq++
	return r.seq
}

// HasHTTPWork reports whether any HTTP endpoint or share mount is
// currently registered, the signal a dynamic-mode HTTP listener uses to
// decide whether it may go to sleep.
func (r *Registry) HasHTTPWork() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.httpEndpoints) > 0 || len(r.shares) > 0
}

// HasSocketWork reports whether any WebSocket endpoint is currently
// registered.
func (r *Registry) HasSocketWork() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.socketEndpoints) > 0
}

// Register validates h, compiles its endpoint templates, and installs
// them into the registry, waking the owning server(s) as needed.
func (r *Registry) Register(h Handler) error {
	httpHandler, isHTTP := h.(HTTPHandler)
	socketHandler, isSocket := h.(SocketHandler)
	if !isHTTP && !isSocket {
		return engineerr.New(engineerr.KindInvalidHandler, h.Name(), nil)
	}

	var parent string
	if p, ok := h.(ParentTemplateProvider); ok {
		parent = p.ParentTemplate()
	}
	var classReqs map[string][]string
	if c, ok := h.(ClassRequirementsProvider); ok {
		classReqs = c.ClassRequirements()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	registeredAny := false

	if isHTTP {
		for _, def := range httpHandler.HTTPEndpoints() {
			if def.Func == nil {
				return engineerr.New(engineerr.KindInvalidHandler, h.Name(), nil)
			}
			tmpl := mergeTemplate(parent, def.Template)
			compiled := r.patterns.GetOrCompile(tmpl)
			prio := def.Priority
			if prio == PriorityUnset {
				prio = NORMAL
			}
			reqValues := r.harvest(requirement.HTTP, classReqs, def.Requirements)
			ep := &Endpoint{
				Handler:      h,
				Kind:         HTTPEndpoint,
				Pattern:      compiled,
				Priority:     prio,
				Seq:          r.nextSeq(),
				Requirements: reqValues,
				ClassReqs:    classReqs,
				MethodReqs:   def.Requirements,
				HTTPFunc:     def.Func,
			}
			r.httpEndpoints[compiled.Canonical] = append(r.httpEndpoints[compiled.Canonical], ep)
			registeredAny = true
		}
	}

	if isSocket {
		for _, def := range socketHandler.SocketEndpoints() {
			if def.Func == nil {
				return engineerr.New(engineerr.KindInvalidHandler, h.Name(), nil)
			}
			tmpl := mergeTemplate(parent, def.Template)
			compiled := r.patterns.GetOrCompile(tmpl)
			prio := def.Priority
			if prio == PriorityUnset {
				prio = NORMAL
			}
			reqValues := r.harvest(requirement.WebSocket, classReqs, def.Requirements)
			ep := &Endpoint{
				Handler:      h,
				Kind:         SocketEndpoint,
				Pattern:      compiled,
				Priority:     prio,
				Seq:          r.nextSeq(),
				Requirements: reqValues,
				ClassReqs:    classReqs,
				MethodReqs:   def.Requirements,
				SocketFunc:   def.Func,
			}
			r.socketEndpoints[compiled.Canonical] = append(r.socketEndpoints[compiled.Canonical], ep)
			registeredAny = true
		}
	}

	if registeredAny && r.fallback != nil {
		r.fallback = nil
	}

	if isHTTP {
		r.controller.AwakeOrWarn(requirement.HTTP)
	}
	if isSocket {
		r.controller.AwakeOrWarn(requirement.WebSocket)
	}
	return nil
}

// harvest combines class-wide and method-local requirement values for
// every descriptor kind registered against serverKind, dropping empty
// results.
func (r *Registry) harvest(kind requirement.ServerKind, classReqs, methodReqs map[string][]string) map[string][]string {
	out := make(map[string][]string)
	for _, req := range r.requirement.Requirements(kind) {
		dk := req.DescriptorKind()
		values := mergeRequirementValues(classReqs, methodReqs, dk)
		if len(values) > 0 {
			out[dk] = values
		}
	}
	return out
}

// RegisterRequirement appends pred to kind's requirement bucket. When
// reprocess is true, every endpoint already registered against kind is
// re-scanned: pred.DescriptorKind()'s values are re-derived from that
// endpoint's class-wide and method-local requirement sources and merged
// back into its requirement-map, purging the entry if the result is
// empty. Endpoints registered after this call pick up pred through the
// normal harvest path and need no reprocessing.
func (r *Registry) RegisterRequirement(kind requirement.ServerKind, pred requirement.Requirement, reprocess bool) {
	r.requirement.Register(kind, pred)
	if !reprocess {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reprocessLocked(kind, pred.DescriptorKind())
}

// reprocessLocked re-derives dk's requirement values for every endpoint
// registered against kind from its stored class/method requirement
// sources. Callers must hold r.mu.
func (r *Registry) reprocessLocked(kind requirement.ServerKind, dk string) {
	endpoints := r.httpEndpoints
	if kind == requirement.WebSocket {
		endpoints = r.socketEndpoints
	}
	for _, list := range endpoints {
		for _, ep := range list {
			values := mergeRequirementValues(ep.ClassReqs, ep.MethodReqs, dk)
			if len(values) == 0 {
				delete(ep.Requirements, dk)
				continue
			}
			if ep.Requirements == nil {
				ep.Requirements = make(map[string][]string)
			}
			ep.Requirements[dk] = values
		}
	}
}

// Unregister removes every endpoint owned by h and instructs servers to
// sleep if they're now idle.
func (r *Registry) Unregister(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeHandlerLocked(h)
	if r.isEmptyLocked() {
		r.installFallbackLocked()
	}
	r.controller.SleepIfNotNeeded(requirement.HTTP)
	r.controller.SleepIfNotNeeded(requirement.WebSocket)
}

func (r *Registry) removeHandlerLocked(h Handler) {
	for k, list := range r.httpEndpoints {
		filtered := list[:0]
		for _, ep := range list {
			if ep.Handler != h {
				filtered = append(filtered, ep)
			}
		}
		if len(filtered) == 0 {
			delete(r.httpEndpoints, k)
		} else {
			r.httpEndpoints[k] = filtered
		}
	}
	for k, list := range r.socketEndpoints {
		filtered := list[:0]
		for _, ep := range list {
			if ep.Handler != h {
				filtered = append(filtered, ep)
			}
		}
		if len(filtered) == 0 {
			delete(r.socketEndpoints, k)
		} else {
			r.socketEndpoints[k] = filtered
		}
	}
}

// Share mounts a static-file root at template. It only performs the
// registration side-effect: root is not checked here, and no caller in
// this module checks that it is an existing directory, so an invalid
// root is not rejected with INVALID-SHARE.
func (r *Registry) Share(template, root string, onlyGet bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shares = append(r.shares, &Share{re: compileShare(template), Root: root, OnlyGet: onlyGet})
	r.fallback = nil
	r.controller.AwakeOrWarn(requirement.HTTP)
}

// matchingHTTP returns every HTTP endpoint whose pattern matches
// normalizedPath, along with the captured path parameters per match.
func (r *Registry) matchingHTTP(normalizedPath string) []matchedEndpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []matchedEndpoint
	for _, list := range r.httpEndpoints {
		for _, ep := range list {
			if params, ok := ep.Pattern.Match(normalizedPath); ok {
				out = append(out, matchedEndpoint{endpoint: ep, params: params})
			}
		}
	}
	return out
}

// fallbackEndpoint returns the installed fallback endpoint, or nil if
// none is active.
func (r *Registry) fallbackEndpoint() *Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

func (r *Registry) matchingSocket(normalizedPath string) []matchedEndpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []matchedEndpoint
	for _, list := range r.socketEndpoints {
		for _, ep := range list {
			if params, ok := ep.Pattern.Match(normalizedPath); ok {
				out = append(out, matchedEndpoint{endpoint: ep, params: params})
			}
		}
	}
	return out
}

func (r *Registry) matchingShare(normalizedPath string) (*Share, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.shares {
		if m := s.re.FindStringSubmatch(normalizedPath); m != nil {
			return s, m[1]
		}
	}
	return nil, ""
}

type matchedEndpoint struct {
	endpoint *Endpoint
	params   map[string]string
}

// NormalizePath cleans p with path.Clean (collapsing repeated slashes and
// resolving "." and ".." segments) and keeps a trailing slash if p had
// one. This differs from pattern.Canonicalize, which strips the trailing
// slash; pattern matching canonicalises its input again itself.
func NormalizePath(p string) string {
	clean := path.Clean("/" + p)
	if clean != "/" && strings.HasSuffix(p, "/") {
		clean += "/"
	}
	return clean
}

// RouteInfo is a read-only snapshot of one registered endpoint, for
// diagnostic listing.
type RouteInfo struct {
	Kind     Kind
	Pattern  string
	Priority Priority
	Handler  string
}

// Snapshot returns every currently registered HTTP and WebSocket
// endpoint, plus one HTTP entry per share mount (whose Pattern holds the
// share's filesystem root and whose Handler is "<share>"), in no
// particular order, for diagnostic listing. The fallback handler is not
// listed.
func (r *Registry) Snapshot() []RouteInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []RouteInfo
	for pat, list := range r.httpEndpoints {
		for _, ep := range list {
			out = append(out, RouteInfo{Kind: HTTPEndpoint, Pattern: pat, Priority: ep.Priority, Handler: ep.Handler.Name()})
		}
	}
	for pat, list := range r.socketEndpoints {
		for _, ep := range list {
			out = append(out, RouteInfo{Kind: SocketEndpoint, Pattern: pat, Priority: ep.Priority, Handler: ep.Handler.Name()})
		}
	}
	for _, s := range r.shares {
		out = append(out, RouteInfo{Kind: HTTPEndpoint, Pattern: s.Root, Priority: NORMAL, Handler: "<share>"})
	}
	return out
}

// sortSurvivors orders candidates by priority descending then by
// registration order ascending.
func sortSurvivors(eps []*Endpoint) {
	sort.SliceStable(eps, func(i, j int) bool {
		return eps[i].less(eps[j])
	})
}
