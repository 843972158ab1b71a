package route

// Handler identifies a registered object that owns one or more endpoints.
// Unregister matches endpoints by handler value, not by Name; Name labels
// the handler in diagnostic listings.
type Handler interface {
	Name() string
}

// HTTPEndpointDef describes one HTTP entry point on a handler — the
// Go-native stand-in for a reflectively-discovered annotated method: a
// small code-generated trampoline per registered method signature.
type HTTPEndpointDef struct {
	// Template is the method-local ("child") path template.
	Template string
	// Priority is this endpoint's priority; zero value defaults to NORMAL.
	Priority Priority
	// Requirements holds method-local requirement values, keyed by
	// descriptor kind, combined with the handler's class-wide values at
	// registration time.
	Requirements map[string][]string
	// Func is the trampoline invoked for a matching request.
	Func func(*HTTPExchange)
}

// SocketEndpointDef is the WebSocket analogue of HTTPEndpointDef.
type SocketEndpointDef struct {
	Template     string
	Priority     Priority
	Requirements map[string][]string
	Func         func(*SocketExchange, Frame)
}

// HTTPHandler is implemented by handlers exposing HTTP endpoints.
type HTTPHandler interface {
	Handler
	HTTPEndpoints() []HTTPEndpointDef
}

// SocketHandler is implemented by handlers exposing WebSocket endpoints.
type SocketHandler interface {
	Handler
	SocketEndpoints() []SocketEndpointDef
}

// ParentTemplateProvider lets a handler declare a class-level path prefix,
// merged with each method's child template.
type ParentTemplateProvider interface {
	ParentTemplate() string
}

// ClassRequirementsProvider lets a handler declare class-wide requirement
// values, combined with each method's local values.
type ClassRequirementsProvider interface {
	ClassRequirements() map[string][]string
}

// mergeTemplate joins a class-level parent template with a method-local
// child template.
func mergeTemplate(parent, child string) string {
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "/" + child
}

// mergeRequirementValues combines class-wide and method-local values for a
// single descriptor kind, deduplicating (order is not significant).
func mergeRequirementValues(classWide, methodLocal map[string][]string, kind string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(values []string) {
		for _, v := range values {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	add(classWide[kind])
	add(methodLocal[kind])
	return out
}
