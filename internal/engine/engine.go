// Package engine wires the route registry, requirement registry, addon
// manager and artifact resolver into a runnable process: it owns the
// HTTP and WebSocket listeners and drives their lifecycle according to
// the configured mode for each.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"forgecore/internal/addon"
	"forgecore/internal/artifact"
	"forgecore/internal/codespace"
	"forgecore/internal/config"
	"forgecore/internal/engineerr"
	"forgecore/internal/requirement"
	"forgecore/internal/route"
	"forgecore/pkg/logging"
)

// enginePrefix hides names rooted here from cross-space resolution, the
// isolation boundary between engine-internal packages and addon code.
const enginePrefix = "forgecore/internal/"

// Engine is the top-level process: configuration, the route and
// requirement registries, the addon manager, the artifact resolver, and
// the HTTP/WebSocket listeners bound to them.
type Engine struct {
	cfg  config.EngineConfig
	root string

	Routes     *route.Registry
	Reqs       *requirement.Registry
	Dispatcher *route.Dispatcher
	Addons     *addon.Manager
	Resolver   *artifact.Resolver
	Codespaces *codespace.Registry

	mu          sync.Mutex
	httpSrv     *httpServer
	wsSrv       *wsServer
	httpRunning bool
	wsRunning   bool

	watcher     *addonWatcher
	watchCancel context.CancelFunc
}

// New builds an engine rooted at root (the directory holding
// ./addons, ./libraries and ./logs) with the given configuration.
func New(cfg config.EngineConfig, root string) *Engine {
	reqs := requirement.NewRegistry()
	resolver := artifact.NewResolver(filepath.Join(root, cfg.LibrariesDir))
	codespaces := codespace.NewRegistry(enginePrefix)

	e := &Engine{
		cfg:        cfg,
		root:       root,
		Reqs:       reqs,
		Resolver:   resolver,
		Codespaces: codespaces,
	}
	e.Routes = route.NewRegistry(reqs, e, cfg.SkipDefaultRoute)
	e.Dispatcher = route.NewDispatcher(e.Routes, reqs)
	e.Addons = addon.NewManager(resolver, codespaces, addon.NewMarkerScanner(), e)
	e.httpSrv = newHTTPServer(cfg.HTTPPort, e.Dispatcher)
	e.wsSrv = newWSServer(cfg.WSPort, e.Dispatcher)
	return e
}

// Start brings the engine up: installs the default fallback route,
// starts whichever listeners are forced on, and — if addons are enabled
// — discovers, resolves, instantiates, loads and enables every addon
// found under <root>/addons.
func (e *Engine) Start(ctx context.Context) error {
	e.Routes.InstallFallback(defaultFallback)

	if e.cfg.HTTPMode == config.ModeEnabled {
		e.startHTTP()
	}
	if e.cfg.WSMode == config.ModeEnabled {
		e.startWS()
	}

	if e.cfg.Addons == config.AddonsDisabled {
		return nil
	}

	addonsDir := filepath.Join(e.root, e.cfg.AddonsDir)
	paths, err := discoverArchives(addonsDir)
	if err != nil {
		return fmt.Errorf("discovering addons in %s: %w", addonsDir, err)
	}
	if len(paths) == 0 {
		logging.Info("engine", "no addon archives found under %s", addonsDir)
	} else {
		if err := e.Addons.Discover(paths); err != nil {
			return err
		}
		if err := e.Addons.ResolveDependencies(ctx); err != nil {
			return err
		}
		if err := e.Addons.Instantiate(archiveSources(e.Addons)); err != nil {
			return err
		}
		e.Addons.Load(ctx)
		e.Addons.Enable(ctx)
	}

	e.startWatcher(addonsDir)
	return nil
}

// startWatcher begins watching dir for newly dropped addon archives; a
// failure to establish the watch (e.g. the directory does not exist
// yet) is logged and otherwise ignored, since hot-add is a convenience
// on top of the startup discovery pass, not a requirement for it.
func (e *Engine) startWatcher(dir string) {
	watchCtx, cancel := context.WithCancel(context.Background())
	e.watchCancel = cancel
	e.watcher = newAddonWatcher(e, dir)
	if err := e.watcher.start(watchCtx); err != nil {
		logging.Warn("engine", "could not watch %s for hot-added addons: %v", dir, err)
		cancel()
	}
}

// hotAddAddon runs a newly detected archive through the same
// discover/resolve/instantiate/load/enable pipeline Start uses at
// boot, skipping every already-instantiated addon so only the new one
// is affected.
func (e *Engine) hotAddAddon(path string) {
	logging.Info("engine", "discovered new addon archive %s", path)
	if err := e.Addons.Discover([]string{path}); err != nil {
		logging.Error("engine", err, "failed to discover hot-added addon %s", path)
		return
	}
	ctx := context.Background()
	if err := e.Addons.ResolveDependencies(ctx); err != nil {
		logging.Error("engine", err, "failed to resolve dependencies for hot-added addon %s", path)
		return
	}
	if err := e.Addons.Instantiate(archiveSources(e.Addons)); err != nil {
		logging.Error("engine", err, "failed to instantiate hot-added addon %s", path)
		return
	}
	e.Addons.Load(ctx)
	e.Addons.Enable(ctx)
}

// Stop performs an orderly shutdown: disables every addon in reverse
// load order, then stops whichever listeners are running. Safe to call
// more than once.
func (e *Engine) Stop(ctx context.Context) {
	if e.watchCancel != nil {
		e.watchCancel()
	}
	e.Addons.Shutdown()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.httpRunning {
		e.httpSrv.stop(ctx)
		e.httpRunning = false
	}
	if e.wsRunning {
		e.wsSrv.stop(ctx)
		e.wsRunning = false
	}
}

// AwakeOrWarn implements route.ServerController: it starts kind's
// listener if its mode permits, or warns once if the listener was
// force-disabled by configuration.
func (e *Engine) AwakeOrWarn(kind requirement.ServerKind) {
	mode := e.modeFor(kind)
	if mode == config.ModeDisabled {
		logging.Warn("engine", "a %s endpoint was registered but %s is force-disabled in configuration", kind, kind)
		return
	}
	switch kind {
	case requirement.HTTP:
		e.startHTTP()
	case requirement.WebSocket:
		e.startWS()
	}
}

// SleepIfNotNeeded implements route.ServerController: in dynamic mode,
// it stops kind's listener once no endpoint or share remains bound to
// it. Forced modes (enabled/disabled) are left untouched.
func (e *Engine) SleepIfNotNeeded(kind requirement.ServerKind) {
	if e.modeFor(kind) != config.ModeDynamic {
		return
	}
	switch kind {
	case requirement.HTTP:
		if !e.Routes.HasHTTPWork() {
			e.mu.Lock()
			if e.httpRunning {
				e.httpSrv.stop(context.Background())
				e.httpRunning = false
			}
			e.mu.Unlock()
		}
	case requirement.WebSocket:
		if !e.Routes.HasSocketWork() {
			e.mu.Lock()
			if e.wsRunning {
				e.wsSrv.stop(context.Background())
				e.wsRunning = false
			}
			e.mu.Unlock()
		}
	}
}

// MaterializeHandler implements addon.Materializer: it installs instance
// into the route registry when it satisfies route.Handler. An
// auto-register target that resolves to something else entirely (a
// service provider with no HTTP/WebSocket surface, say) is not this
// method's concern and is reported as an error for the caller to log.
func (e *Engine) MaterializeHandler(addonName string, instance any) error {
	h, ok := instance.(route.Handler)
	if !ok {
		return engineerr.New(engineerr.KindInvalidHandler, addonName, nil)
	}
	return e.Routes.Register(h)
}

func (e *Engine) modeFor(kind requirement.ServerKind) config.Mode {
	if kind == requirement.WebSocket {
		return e.cfg.WSMode
	}
	return e.cfg.HTTPMode
}

func (e *Engine) startHTTP() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.httpRunning {
		return
	}
	if err := e.httpSrv.start(); err != nil {
		logging.Error("engine", err, "failed to start HTTP listener on port %d", e.cfg.HTTPPort)
		return
	}
	e.httpRunning = true
}

func (e *Engine) startWS() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.wsRunning {
		return
	}
	if err := e.wsSrv.start(); err != nil {
		logging.Error("engine", err, "failed to start WebSocket listener on port %d", e.cfg.WSPort)
		return
	}
	e.wsRunning = true
}

func discoverArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jar" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}

func defaultFallback(ex *route.HTTPExchange) {
	ex.Response.WriteHeader(404)
	fmt.Fprintf(ex.Response, "%s %s\n", engineerr.KindNotFound, ex.Path())
}
