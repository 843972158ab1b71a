package addon

import (
	"archive/zip"
	"context"
	"fmt"
	"strings"
	"sync"

	"forgecore/internal/artifact"
	"forgecore/internal/autoregister"
	"forgecore/internal/codespace"
	"forgecore/internal/engineerr"
	"forgecore/pkg/logging"
)

// Manager ingests discovered addon archives, resolves their dependency
// coordinates, orders them into a DAG, instantiates and wires each one,
// and drives the shared lifecycle state machine, failing slow on every
// addon callback so one misbehaving addon never blocks the rest.
type Manager struct {
	mu      sync.RWMutex
	records map[string]*Record // keyed by lower-case name
	order   []string           // lower-case names, topological order

	resolver     *artifact.Resolver
	codespaces   *codespace.Registry
	markers      autoregister.MarkerScanner
	scheduler    *scheduler
	engine       any
	materializer Materializer
}

// NewManager builds an addon manager backed by resolver for dependency
// coordinates and codespaces for isolation-space bookkeeping. engine is
// the opaque handle threaded into every lifecycle Context; if it also
// implements Materializer, auto-register wiring installs resolved
// handler instances through it.
func NewManager(resolver *artifact.Resolver, codespaces *codespace.Registry, markers autoregister.MarkerScanner, engine any) *Manager {
	m := &Manager{
		records:    make(map[string]*Record),
		resolver:   resolver,
		codespaces: codespaces,
		markers:    markers,
		scheduler:  newScheduler(),
		engine:     engine,
	}
	m.materializer, _ = engine.(Materializer)
	go m.scheduler.run()
	return m
}

// Discover opens every archive path, parses and validates its manifest,
// and registers a DISCOVERED record for it. A failure on one archive
// (missing/malformed manifest, incompatible class version) is returned
// immediately — manifest discovery is not fail-slow, only the later
// lifecycle callbacks are.
func (m *Manager) Discover(paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, path := range paths {
		rc, manifest, err := OpenArchive(path)
		if err != nil {
			return err
		}

		key := strings.ToLower(manifest.Name)
		if _, exists := m.records[key]; exists {
			rc.Close()
			return engineerr.New(engineerr.KindNameConflict, manifest.Name, nil)
		}

		var descriptors, services []autoregister.Descriptor
		for _, d := range autoregister.Scan(&rc.Reader, m.markers) {
			if d.Kind == "SERVICE" {
				services = append(services, d)
				continue
			}
			descriptors = append(descriptors, d)
		}
		rc.Close()

		m.records[key] = &Record{
			Manifest:    *manifest,
			ArchivePath: path,
			State:       StateDiscovered,
			Descriptors: descriptors,
			Services:    services,
		}
		m.order = append(m.order, key) // provisional; replaced by topo order
	}
	return nil
}

// ResolveDependencies fetches every discovered addon's declared
// repositories and dependency coordinates, then builds the ordering
// graph and replaces m.order with its topological result.
func (m *Manager) ResolveDependencies(ctx context.Context) error {
	m.mu.Lock()
	records := make(map[string]*Record, len(m.records))
	for k, r := range m.records {
		records[k] = r
	}
	m.mu.Unlock()

	g := newGraph()
	// Preserve original discovery order for deterministic tie-breaking.
	for _, key := range m.order {
		r := records[key]
		if err := g.add(r.Manifest.Name, r.Manifest.Depends, r.Manifest.SoftDepends); err != nil {
			return err
		}
	}

	for _, key := range m.order {
		r := records[key]
		for _, repoURL := range r.Manifest.Repositories {
			m.resolver.AddRepository(repoURL)
		}
		var coords []artifact.Coordinate
		for _, c := range r.Manifest.Dependencies {
			coord, err := artifact.ParseCoordinate(c)
			if err != nil {
				return err
			}
			coords = append(coords, coord)
		}
		urls, errs := m.resolver.Resolve(ctx, coords)
		for _, e := range errs {
			logging.Warn("addon", "dependency resolution problem for %s: %v", r.Manifest.Name, e)
		}
		r.DependencyURLs = urls
	}

	order, err := g.topoSort()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.order = make([]string, len(order))
	for i, name := range order {
		m.order[i] = strings.ToLower(name)
	}
	m.mu.Unlock()
	return nil
}

// Instantiate constructs each addon's isolation space and instance, in
// topological order.
func (m *Manager) Instantiate(sources map[string]codespace.SourceProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range m.order {
		r := m.records[key]
		if r.Space != nil {
			continue // already instantiated by an earlier call, e.g. hot-add
		}
		source, ok := sources[key]
		if !ok {
			source = emptySource{}
		}
		r.Space = m.codespaces.Register(r.Manifest.Name, source, r.Manifest.Depends)

		instance, err := m.resolveMain(r.Manifest)
		if err != nil {
			return err
		}
		r.Instance = instance
		r.setState(StateInstantiated)
	}
	return nil
}

func (m *Manager) resolveMain(manifest Manifest) (Addon, error) {
	if strings.TrimSpace(manifest.Main) == "" {
		return Hollow{}, nil
	}
	factory, ok := lookupFactory(manifest.Main)
	if !ok {
		return nil, engineerr.New(engineerr.KindInvalidMain, manifest.Name, nil)
	}
	return factory(), nil
}

// Load runs onLoad for every instantiated-but-not-yet-loaded addon in
// topological order, on the dedicated scheduler goroutine, catching and
// reporting any callback failure without halting the remaining addons
// (FAIL-SLOW). Addons already past StateInstantiated are skipped, so a
// second Load call after hot-adding one new addon only loads that one.
func (m *Manager) Load(ctx context.Context) {
	m.forEachInOrder(func(r *Record) {
		if r.CurrentState() != StateInstantiated {
			return
		}
		m.invoke(r, "onLoad", r.Instance.OnLoad)
		m.processDescriptors(r, autoregister.PhaseLoad)
		r.setState(StateLoaded)
	})
}

// Enable runs onEnable for every loaded-but-not-yet-enabled addon in
// topological order, the same hot-add-safe skip discipline as Load.
func (m *Manager) Enable(ctx context.Context) {
	m.forEachInOrder(func(r *Record) {
		if r.CurrentState() != StateLoaded {
			return
		}
		m.invoke(r, "onEnable", r.Instance.OnEnable)
		m.processDescriptors(r, autoregister.PhaseEnable)
		m.wireServices(r)
		r.setState(StateEnabled)
	})
}

// processDescriptors materialises every marker-derived descriptor of r
// due at phase: it resolves the target class through r's code space (the
// same existence check cross-space lookups go through, so an
// auto-registered class the addon can't actually reach surfaces the
// usual diagnostics), constructs it from the component registry, and
// hands the instance to the materializer to install.
func (m *Manager) processDescriptors(r *Record, phase autoregister.Phase) {
	for _, d := range r.Descriptors {
		if d.Phase != phase {
			continue
		}
		if _, err := r.Space.Resolve(d.TargetClass); err != nil {
			logging.Debug("addon", "auto-register target %s declared by %s not resolvable in its code space: %v", d.TargetClass, r.Manifest.Name, err)
		}
		component, ok := lookupComponent(d.TargetClass)
		if !ok {
			logging.Warn("addon", "auto-register target class %s declared by %s has no registered component", d.TargetClass, r.Manifest.Name)
			continue
		}
		if m.materializer == nil {
			continue
		}
		if err := m.materializer.MaterializeHandler(r.Manifest.Name, component()); err != nil {
			logging.Error("addon", err, "failed to materialise auto-register target %s for %s", d.TargetClass, r.Manifest.Name)
		}
	}
}

// wireServices offers every provider collected from r's own archive and
// every jar resolved for its dependency coordinates to the service
// loader registered for its interface, resolving both the interface and
// the provider through r's code space first. Runs once per addon, as
// part of Enable.
func (m *Manager) wireServices(r *Record) {
	for _, d := range m.serviceDescriptors(r) {
		if _, err := r.Space.Resolve(d.Interface); err != nil {
			logging.Debug("addon", "unknown service interface %s declared by %s: %v", d.Interface, r.Manifest.Name, err)
			continue
		}
		loader, ok := lookupServiceLoader(d.Interface)
		if !ok {
			logging.Debug("addon", "no service loader registered for %s, skipping provider %s from %s", d.Interface, d.TargetClass, r.Manifest.Name)
			continue
		}
		if _, err := r.Space.Resolve(d.TargetClass); err != nil {
			logging.Debug("addon", "service provider %s for %s not resolvable in %s's code space: %v", d.TargetClass, d.Interface, r.Manifest.Name, err)
		}
		component, ok := lookupComponent(d.TargetClass)
		if !ok {
			logging.Debug("addon", "service provider %s declared by %s has no registered component, skipping", d.TargetClass, r.Manifest.Name)
			continue
		}
		loader.Provide(r.Manifest.Name, d.TargetClass, component())
	}
}

// serviceDescriptors returns one descriptor per distinct
// (interface, provider) pair collected from r's own archive and every
// jar resolved for its dependency coordinates, so a provider entry
// duplicated across jars is still offered to its loader exactly once.
func (m *Manager) serviceDescriptors(r *Record) []autoregister.Descriptor {
	seen := make(map[string]struct{})
	var out []autoregister.Descriptor
	add := func(d autoregister.Descriptor) {
		for _, provider := range strings.Split(d.TargetClass, ";") {
			key := d.Interface + "\x00" + provider
			if _, exists := seen[key]; exists {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, autoregister.Descriptor{Phase: d.Phase, Kind: d.Kind, Interface: d.Interface, TargetClass: provider})
		}
	}

	for _, d := range r.Services {
		add(d)
	}
	for _, url := range r.DependencyURLs {
		path := strings.TrimPrefix(url, "file://")
		rc, err := zip.OpenReader(path)
		if err != nil {
			logging.Debug("addon", "could not open dependency jar %s for service scanning: %v", path, err)
			continue
		}
		for _, d := range autoregister.Scan(&rc.Reader, nil) {
			if d.Kind == "SERVICE" {
				add(d)
			}
		}
		rc.Close()
	}
	return out
}

// Shutdown disables every addon in reverse topological order, then
// releases its isolation space, and finally stops the scheduler thread.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	reversed := make([]string, len(m.order))
	for i, key := range m.order {
		reversed[len(m.order)-1-i] = key
	}
	m.mu.RUnlock()

	for _, key := range reversed {
		m.mu.RLock()
		r := m.records[key]
		m.mu.RUnlock()
		m.scheduler.submitAndWait(func() {
			m.invoke(r, "onDisable", r.Instance.OnDisable)
			r.setState(StateDisabled)
			if r.Space != nil {
				m.codespaces.Release(r.Space)
			}
		})
	}
	m.scheduler.shutdown()
}

func (m *Manager) forEachInOrder(fn func(*Record)) {
	m.mu.RLock()
	keys := make([]string, len(m.order))
	copy(keys, m.order)
	m.mu.RUnlock()

	for _, key := range keys {
		m.mu.RLock()
		r := m.records[key]
		m.mu.RUnlock()
		m.scheduler.submitAndWait(func() { fn(r) })
	}
}

// invoke calls callback, recovering from a panic and reporting it with
// the addon's name rather than letting it take down the process; the
// manager continues on to the remaining addons regardless.
func (m *Manager) invoke(r *Record, phase string, callback func(Context) error) {
	if callback == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("addon", fmt.Errorf("panic: %v", rec), "%s.%s panicked", r.Manifest.Name, phase)
		}
	}()
	if err := callback(Context{Name: r.Manifest.Name, Manifest: r.Manifest, Engine: m.engine}); err != nil {
		logging.Error("addon", err, "%s.%s failed", r.Manifest.Name, phase)
	}
}

// Records returns a snapshot of every registered record, keyed by
// lower-cased name.
func (m *Manager) Records() map[string]*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Record, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out
}

// Order returns a snapshot of the current topological load order
// (lower-cased names).
func (m *Manager) Order() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

type emptySource struct{}

func (emptySource) Resolve(string) (codespace.Resource, bool) { return codespace.Resource{}, false }
