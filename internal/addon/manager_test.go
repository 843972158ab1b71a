package addon

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forgecore/internal/artifact"
	"forgecore/internal/codespace"
)

// countingAddon tracks how many times each lifecycle callback ran, so
// tests can assert a second Load/Enable pass doesn't re-invoke an
// already-loaded/enabled addon.
type countingAddon struct {
	loads, enables, disables int
}

func (c *countingAddon) OnLoad(Context) error    { c.loads++; return nil }
func (c *countingAddon) OnEnable(Context) error   { c.enables++; return nil }
func (c *countingAddon) OnDisable(Context) error { c.disables++; return nil }

func writeTestArchive(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name+".jar")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("addon.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"name":"` + name + `","main":"` + name + `"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	resolver := artifact.NewResolver(t.TempDir())
	codespaces := codespace.NewRegistry("forgecore/internal/")
	return NewManager(resolver, codespaces, nil, nil)
}

// capturingMaterializer is a Materializer test double recording every
// instance handed to it, in call order.
type capturingMaterializer struct {
	instances []any
}

func (c *capturingMaterializer) MaterializeHandler(addonName string, instance any) error {
	c.instances = append(c.instances, instance)
	return nil
}

// capturingLoader is a ServiceLoader test double recording every
// provider handed to it for a given interface.
type capturingLoader struct {
	providers []string
}

func (c *capturingLoader) Provide(addonName, providerClass string, provider any) {
	c.providers = append(c.providers, providerClass)
}

type routeComponent struct{ name string }

func writeArchiveWithMarkedClass(t *testing.T, dir, name, entryPath, tag string) string {
	t.Helper()
	path := filepath.Join(dir, name+".jar")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("addon.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"name":"` + name + `","main":"` + name + `"}`))
	require.NoError(t, err)

	cw, err := zw.Create(entryPath)
	require.NoError(t, err)
	_, err = cw.Write([]byte(classMarker + tag + ";"))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return path
}

func TestProcessDescriptorsMaterializesComponentThroughEngine(t *testing.T) {
	dir := t.TempDir()
	path := writeArchiveWithMarkedClass(t, dir, "marker-test", "org/Example.class", "LOAD:ROUTE")
	RegisterFactory("marker-test", func() Addon { return Hollow{} })
	RegisterComponent("org.Example", func() any { return &routeComponent{name: "org.Example"} })

	mat := &capturingMaterializer{}
	resolver := artifact.NewResolver(t.TempDir())
	codespaces := codespace.NewRegistry("forgecore/internal/")
	m := NewManager(resolver, codespaces, NewMarkerScanner(), mat)

	ctx := context.Background()
	require.NoError(t, m.Discover([]string{path}))
	require.NoError(t, m.ResolveDependencies(ctx))
	require.NoError(t, m.Instantiate(nil))
	m.Load(ctx)
	m.Enable(ctx)

	require.Len(t, mat.instances, 1)
	assert.Equal(t, &routeComponent{name: "org.Example"}, mat.instances[0])

	m.Shutdown()
}

func TestWireServicesOffersEachProviderOnceAcrossOwnAndDependencyJars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service-test.jar")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("addon.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"name":"service-test","main":"service-test"}`))
	require.NoError(t, err)
	sw, err := zw.Create("META-INF/services/example.Iface")
	require.NoError(t, err)
	_, err = sw.Write([]byte("example.ProviderA\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	RegisterFactory("service-test", func() Addon { return Hollow{} })
	RegisterComponent("example.ProviderA", func() any { return "provider-a" })

	loader := &capturingLoader{}
	RegisterServiceLoader("example.Iface", loader)

	resolver := artifact.NewResolver(t.TempDir())
	codespaces := codespace.NewRegistry("forgecore/internal/")
	m := NewManager(resolver, codespaces, nil, nil)

	ctx := context.Background()
	require.NoError(t, m.Discover([]string{path}))
	require.NoError(t, m.ResolveDependencies(ctx))
	require.NoError(t, m.Instantiate(nil))
	m.Load(ctx)
	m.Enable(ctx)

	assert.Equal(t, []string{"example.ProviderA"}, loader.providers)

	m.Shutdown()
}

func TestWireServicesDedupesProviderDeclaredInBothOwnAndDependencyJar(t *testing.T) {
	dir := t.TempDir()

	ownPath := filepath.Join(dir, "own.jar")
	f, err := os.Create(ownPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("addon.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"name":"dedupe-test","main":"dedupe-test"}`))
	require.NoError(t, err)
	sw, err := zw.Create("META-INF/services/example.DedupeIface")
	require.NoError(t, err)
	_, err = sw.Write([]byte("example.ProviderDup\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	depPath := filepath.Join(dir, "dep.jar")
	df, err := os.Create(depPath)
	require.NoError(t, err)
	dzw := zip.NewWriter(df)
	dsw, err := dzw.Create("META-INF/services/example.DedupeIface")
	require.NoError(t, err)
	_, err = dsw.Write([]byte("example.ProviderDup\n"))
	require.NoError(t, err)
	require.NoError(t, dzw.Close())
	require.NoError(t, df.Close())

	RegisterFactory("dedupe-test", func() Addon { return Hollow{} })
	RegisterComponent("example.ProviderDup", func() any { return "dup" })

	loader := &capturingLoader{}
	RegisterServiceLoader("example.DedupeIface", loader)

	resolver := artifact.NewResolver(t.TempDir())
	codespaces := codespace.NewRegistry("forgecore/internal/")
	m := NewManager(resolver, codespaces, nil, nil)

	ctx := context.Background()
	require.NoError(t, m.Discover([]string{ownPath}))
	require.NoError(t, m.ResolveDependencies(ctx))

	m.mu.Lock()
	m.records["dedupe-test"].DependencyURLs = []string{"file://" + depPath}
	m.mu.Unlock()

	require.NoError(t, m.Instantiate(nil))
	m.Load(ctx)
	m.Enable(ctx)

	assert.Equal(t, []string{"example.ProviderDup"}, loader.providers,
		"the same provider declared in both the addon's own jar and a dependency jar must be offered exactly once")

	m.Shutdown()
}

func TestManagerHotAddDoesNotReRunExistingAddon(t *testing.T) {
	dir := t.TempDir()
	first := &countingAddon{}
	RegisterFactory("manager-test-first", func() Addon { return first })

	m := newTestManager(t)
	ctx := context.Background()

	path1 := writeTestArchive(t, dir, "manager-test-first")
	require.NoError(t, m.Discover([]string{path1}))
	require.NoError(t, m.ResolveDependencies(ctx))
	require.NoError(t, m.Instantiate(nil))
	m.Load(ctx)
	m.Enable(ctx)
	assert.Equal(t, 1, first.loads)
	assert.Equal(t, 1, first.enables)

	second := &countingAddon{}
	RegisterFactory("manager-test-second", func() Addon { return second })
	path2 := writeTestArchive(t, dir, "manager-test-second")

	require.NoError(t, m.Discover([]string{path2}))
	require.NoError(t, m.ResolveDependencies(ctx))
	require.NoError(t, m.Instantiate(nil))
	m.Load(ctx)
	m.Enable(ctx)

	assert.Equal(t, 1, first.loads, "hot-adding a second addon must not re-run the first addon's onLoad")
	assert.Equal(t, 1, first.enables, "hot-adding a second addon must not re-run the first addon's onEnable")
	assert.Equal(t, 1, second.loads)
	assert.Equal(t, 1, second.enables)

	m.Shutdown()
}
