package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forgecore/internal/config"
	"forgecore/internal/requirement"
	"forgecore/internal/route"
)

func newTestEngine(t *testing.T, mutate func(*config.EngineConfig)) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.HTTPPort = 0
	cfg.WSPort = 0
	cfg.Addons = config.AddonsDisabled
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, t.TempDir())
}

func TestAwakeOrWarnRespectsDisabledMode(t *testing.T) {
	e := newTestEngine(t, func(c *config.EngineConfig) { c.HTTPMode = config.ModeDisabled })
	e.AwakeOrWarn(requirement.HTTP)
	assert.False(t, e.httpRunning)
}

func TestAwakeOrWarnStartsEnabledListener(t *testing.T) {
	e := newTestEngine(t, func(c *config.EngineConfig) { c.HTTPMode = config.ModeEnabled })
	e.AwakeOrWarn(requirement.HTTP)
	assert.True(t, e.httpRunning)
	e.Stop(context.Background())
}

func TestSleepIfNotNeededIgnoresForcedModes(t *testing.T) {
	e := newTestEngine(t, func(c *config.EngineConfig) { c.HTTPMode = config.ModeEnabled })
	e.AwakeOrWarn(requirement.HTTP)
	require.True(t, e.httpRunning)

	e.SleepIfNotNeeded(requirement.HTTP)
	assert.True(t, e.httpRunning, "an enabled listener must never be put to sleep")
	e.Stop(context.Background())
}

func TestSleepIfNotNeededStopsDynamicListenerWhenIdle(t *testing.T) {
	e := newTestEngine(t, func(c *config.EngineConfig) { c.HTTPMode = config.ModeDynamic })
	e.startHTTP()
	require.True(t, e.httpRunning)

	e.SleepIfNotNeeded(requirement.HTTP)
	assert.False(t, e.httpRunning, "a dynamic listener with no registered work should go back to sleep")
}

func TestStartWithNoAddonsDirSucceeds(t *testing.T) {
	e := newTestEngine(t, nil)
	err := e.Start(context.Background())
	require.NoError(t, err)
	e.Stop(context.Background())
}

func TestDiscoverArchivesSkipsNonJarFiles(t *testing.T) {
	dir := t.TempDir()
	paths, err := discoverArchives(filepath.Join(dir, "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, paths)
}

type fakeAutoRegisteredHandler struct{}

func (fakeAutoRegisteredHandler) Name() string { return "auto-registered" }
func (fakeAutoRegisteredHandler) HTTPEndpoints() []route.HTTPEndpointDef {
	return []route.HTTPEndpointDef{{Template: "/auto", Func: func(*route.HTTPExchange) {}}}
}

func TestMaterializeHandlerRegistersRouteHandler(t *testing.T) {
	e := newTestEngine(t, nil)
	require.NoError(t, e.MaterializeHandler("demo-addon", fakeAutoRegisteredHandler{}))

	snapshot := e.Routes.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "auto-registered", snapshot[0].Handler)
}

func TestMaterializeHandlerRejectsNonHandlerInstance(t *testing.T) {
	e := newTestEngine(t, nil)
	err := e.MaterializeHandler("demo-addon", "not a handler")
	assert.Error(t, err)
}

func TestStartWithAddonsEnabledWatchesDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "addons"), 0o755))

	cfg := config.Default()
	cfg.HTTPPort, cfg.WSPort = 0, 0
	cfg.Addons = config.AddonsEnabled
	e := New(cfg, root)

	require.NoError(t, e.Start(context.Background()))
	assert.NotNil(t, e.watcher)
	e.Stop(context.Background())
}
