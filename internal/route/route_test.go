package route

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forgecore/internal/requirement"
)

type noopController struct{}

func (noopController) AwakeOrWarn(requirement.ServerKind)      {}
func (noopController) SleepIfNotNeeded(requirement.ServerKind) {}

type simpleHandler struct {
	name string
	http []HTTPEndpointDef
	sock []SocketEndpointDef
}

func (h *simpleHandler) Name() string                    { return h.name }
func (h *simpleHandler) HTTPEndpoints() []HTTPEndpointDef { return h.http }
func (h *simpleHandler) SocketEndpoints() []SocketEndpointDef {
	return h.sock
}

func newExchange(method, path string) *HTTPExchange {
	r := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	return NewHTTPExchange(r.Context(), w, r, nil)
}

func TestFallbackRemovedOnceUserHandlerRegistered(t *testing.T) {
	reg := NewRegistry(requirement.NewRegistry(), noopController{}, false)
	reg.InstallFallback(func(e *HTTPExchange) { e.Response.WriteHeader(http.StatusOK) })
	disp := NewDispatcher(reg, requirement.NewRegistry())

	res, err := disp.ResolveHTTP(newExchange(http.MethodGet, "/"))
	require.NoError(t, err)
	require.NotNil(t, res.Primary)

	h := &simpleHandler{name: "demo", http: []HTTPEndpointDef{{Template: "/widgets", Func: func(*HTTPExchange) {}}}}
	require.NoError(t, reg.Register(h))

	_, err = disp.ResolveHTTP(newExchange(http.MethodGet, "/"))
	assert.Error(t, err)
}

func TestPriorityOrderingPicksHighestThenEarliest(t *testing.T) {
	reg := NewRegistry(requirement.NewRegistry(), noopController{}, true)
	disp := NewDispatcher(reg, requirement.NewRegistry())

	var invoked []string
	low := &simpleHandler{name: "low", http: []HTTPEndpointDef{{
		Template: "/widgets", Priority: LOW,
		Func: func(*HTTPExchange) { invoked = append(invoked, "low") },
	}}}
	high := &simpleHandler{name: "high", http: []HTTPEndpointDef{{
		Template: "/widgets", Priority: HIGH,
		Func: func(*HTTPExchange) { invoked = append(invoked, "high") },
	}}}
	require.NoError(t, reg.Register(low))
	require.NoError(t, reg.Register(high))

	res, err := disp.ResolveHTTP(newExchange(http.MethodGet, "/widgets"))
	require.NoError(t, err)
	require.NotNil(t, res.Primary)
	res.Primary.HTTPFunc(nil)
	assert.Equal(t, []string{"high"}, invoked)
}

func TestMonitorEndpointsNeverBecomePrimary(t *testing.T) {
	reg := NewRegistry(requirement.NewRegistry(), noopController{}, true)
	disp := NewDispatcher(reg, requirement.NewRegistry())

	primaryFired := false
	monitorFired := false
	primary := &simpleHandler{name: "primary", http: []HTTPEndpointDef{{
		Template: "/widgets", Priority: NORMAL,
		Func: func(*HTTPExchange) { primaryFired = true },
	}}}
	monitor := &simpleHandler{name: "monitor", http: []HTTPEndpointDef{{
		Template: "/widgets", Priority: MONITOR,
		Func: func(*HTTPExchange) { monitorFired = true },
	}}}
	require.NoError(t, reg.Register(primary))
	require.NoError(t, reg.Register(monitor))

	res, err := disp.ResolveHTTP(newExchange(http.MethodGet, "/widgets"))
	require.NoError(t, err)
	require.NotNil(t, res.Primary)
	assert.Equal(t, "primary", res.Primary.Handler.Name())
	require.Len(t, res.Monitors, 1)

	res.Primary.HTTPFunc(nil)
	res.Monitors[0].HTTPFunc(nil)
	assert.True(t, primaryFired)
	assert.True(t, monitorFired)
}

type alwaysFalse struct{}

func (alwaysFalse) DescriptorKind() string { return "domain" }
func (alwaysFalse) Applies(requirement.Exchange, requirement.EndpointView) bool {
	return false
}

func TestRequirementPredicateExcludesCandidate(t *testing.T) {
	reqs := requirement.NewRegistry()
	reqs.Register(requirement.HTTP, alwaysFalse{})

	reg := NewRegistry(reqs, noopController{}, true)
	disp := NewDispatcher(reg, reqs)

	h := &simpleHandler{name: "demo", http: []HTTPEndpointDef{{Template: "/widgets", Func: func(*HTTPExchange) {}}}}
	require.NoError(t, reg.Register(h))

	_, err := disp.ResolveHTTP(newExchange(http.MethodGet, "/widgets"))
	assert.Error(t, err)
}

type classTaggedHandler struct {
	simpleHandler
	tags map[string][]string
}

func (h *classTaggedHandler) ClassRequirements() map[string][]string { return h.tags }

type capturingKind struct{ kind string }

func (c capturingKind) DescriptorKind() string { return c.kind }
func (c capturingKind) Applies(requirement.Exchange, requirement.EndpointView) bool {
	return true
}

func TestRegisterRequirementWithReprocessBackfillsExistingEndpoint(t *testing.T) {
	reqs := requirement.NewRegistry()
	reg := NewRegistry(reqs, noopController{}, true)

	h := &classTaggedHandler{
		simpleHandler: simpleHandler{name: "tagged", http: []HTTPEndpointDef{{Template: "/widgets", Func: func(*HTTPExchange) {}}}},
		tags:          map[string][]string{"domain": {"example.com"}},
	}
	require.NoError(t, reg.Register(h))

	eps := reg.matchingHTTP("/widgets")
	require.Len(t, eps, 1)
	assert.Empty(t, eps[0].endpoint.Values("domain"), "requirement registered after the endpoint must not yet be harvested")

	reg.RegisterRequirement(requirement.HTTP, capturingKind{kind: "domain"}, true)

	eps = reg.matchingHTTP("/widgets")
	require.Len(t, eps, 1)
	assert.Equal(t, []string{"example.com"}, eps[0].endpoint.Values("domain"))
}

func TestRegisterRequirementWithoutReprocessLeavesExistingEndpointUntouched(t *testing.T) {
	reqs := requirement.NewRegistry()
	reg := NewRegistry(reqs, noopController{}, true)

	h := &classTaggedHandler{
		simpleHandler: simpleHandler{name: "tagged", http: []HTTPEndpointDef{{Template: "/widgets", Func: func(*HTTPExchange) {}}}},
		tags:          map[string][]string{"domain": {"example.com"}},
	}
	require.NoError(t, reg.Register(h))

	reg.RegisterRequirement(requirement.HTTP, capturingKind{kind: "domain"}, false)

	eps := reg.matchingHTTP("/widgets")
	require.Len(t, eps, 1)
	assert.Empty(t, eps[0].endpoint.Values("domain"))
}

func TestShareServesFileAndRejectsWriteMethod(t *testing.T) {
	reg := NewRegistry(requirement.NewRegistry(), noopController{}, true)
	disp := NewDispatcher(reg, requirement.NewRegistry())

	reg.Share("/static", "./testdata", true)

	res, err := disp.ResolveHTTP(newExchange(http.MethodGet, "/static/file.txt"))
	require.NoError(t, err)
	require.NotNil(t, res.Share)
	assert.Equal(t, "file.txt", res.ShareTail)

	_, err = disp.ResolveHTTP(newExchange(http.MethodPost, "/static/file.txt"))
	assert.Error(t, err)
}

func TestUnregisterRemovesEndpointsAndRestoresFallback(t *testing.T) {
	reg := NewRegistry(requirement.NewRegistry(), noopController{}, false)
	reg.InstallFallback(func(e *HTTPExchange) { e.Response.WriteHeader(http.StatusOK) })
	disp := NewDispatcher(reg, requirement.NewRegistry())

	h := &simpleHandler{name: "demo", http: []HTTPEndpointDef{{Template: "/widgets", Func: func(*HTTPExchange) {}}}}
	require.NoError(t, reg.Register(h))
	reg.Unregister(h)

	assert.Empty(t, reg.matchingHTTP("/widgets"))
	res, err := disp.ResolveHTTP(newExchange(http.MethodGet, "/widgets"))
	require.NoError(t, err)
	require.NotNil(t, res.Primary)
	assert.Same(t, reg.fallbackEndpoint(), res.Primary)
}
