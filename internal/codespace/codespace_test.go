package codespace

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource struct {
	mu        sync.Mutex
	owner     string
	resources map[string]Resource
}

func newMapSource(owner string, names ...string) *mapSource {
	m := &mapSource{owner: owner, resources: make(map[string]Resource)}
	for _, n := range names {
		m.resources[n] = Resource{Name: n, Bytes: []byte(owner + ":" + n)}
	}
	return m
}

func (m *mapSource) Resolve(name string) (Resource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[name]
	return r, ok
}

func TestSelfScopeResolvesBeforeCrossSpace(t *testing.T) {
	reg := NewRegistry("forgecore/internal")
	a := reg.Register("a", newMapSource("a", "shared.Widget"), nil)
	reg.Register("b", newMapSource("b", "shared.Widget"), nil)

	res, err := a.Resolve("shared.Widget")
	require.NoError(t, err)
	assert.Equal(t, "a:shared.Widget", string(res.Bytes))
}

func TestCrossSpaceFallsBackInRegistrationOrder(t *testing.T) {
	reg := NewRegistry("forgecore/internal")
	a := reg.Register("a", newMapSource("a"), nil)
	reg.Register("b", newMapSource("b", "shared.Widget"), nil)
	reg.Register("c", newMapSource("c", "shared.Widget"), nil)

	res, err := a.Resolve("shared.Widget")
	require.NoError(t, err)
	assert.Equal(t, "b:shared.Widget", string(res.Bytes))
}

func TestEngineInternalNamesAreHidden(t *testing.T) {
	reg := NewRegistry("forgecore/internal")
	a := reg.Register("a", newMapSource("a", "forgecore/internal/engine.Core"), nil)

	_, err := a.Resolve("forgecore/internal/engine.Core")
	assert.Error(t, err)
}

func TestDeclaredDependencySuppressesWarning(t *testing.T) {
	reg := NewRegistry("")
	a := reg.Register("a", newMapSource("a"), []string{"B"})
	reg.Register("b", newMapSource("b", "shared.Widget"), nil)

	_, err := a.Resolve("shared.Widget")
	require.NoError(t, err)
	assert.False(t, a.dependsOn("missing"))
	assert.True(t, a.dependsOn("b"))
	_, warned := reg.warned.Load("a\x00b\x00shared.Widget")
	assert.False(t, warned, "a declared dependency must not record the undeclared-dependency warning")
}

func TestNotFoundWhenNoSpaceResolves(t *testing.T) {
	reg := NewRegistry("")
	a := reg.Register("a", newMapSource("a"), nil)

	_, err := a.Resolve("nowhere.Class")
	assert.Error(t, err)
}
