package route

import (
	"net/http"

	"forgecore/internal/engineerr"
	"forgecore/internal/requirement"
)

// DispatchResult is what HTTP/WebSocket dispatch resolves a request to:
// at most one primary endpoint, any number of MONITOR-priority observers,
// and/or a share mount.
type DispatchResult struct {
	Primary  *Endpoint
	Monitors []*Endpoint
	Params   map[string]string

	Share     *Share
	ShareTail string
}

// Dispatcher resolves inbound exchanges against a Registry's endpoint and
// share tables, applying the requirement registry's predicate buckets.
type Dispatcher struct {
	registry *Registry
	reqs     *requirement.Registry
}

// NewDispatcher builds a dispatcher over reg, filtering candidates through
// reqs.
func NewDispatcher(reg *Registry, reqs *requirement.Registry) *Dispatcher {
	return &Dispatcher{registry: reg, reqs: reqs}
}

// ResolveHTTP normalizes the path, matches candidate endpoints, applies
// requirement predicates, and falls back to a share mount or the
// installed fallback handler when nothing else matches.
func (d *Dispatcher) ResolveHTTP(exchange *HTTPExchange) (*DispatchResult, error) {
	normalized := NormalizePath(exchange.Path())

	candidates := d.registry.matchingHTTP(normalized)
	survivors := d.filter(requirement.HTTP, exchange, candidates)

	primary, monitors, params := selectSurvivors(survivors)
	if primary != nil {
		return &DispatchResult{Primary: primary, Monitors: monitors, Params: params}, nil
	}

	if share, tail := d.registry.matchingShare(normalized); share != nil {
		if !share.OnlyGet || exchange.Method() == http.MethodGet {
			return &DispatchResult{
				Monitors:  monitors,
				Share:     share,
				ShareTail: tail,
			}, nil
		}
	}

	if fallback := d.registry.fallbackEndpoint(); fallback != nil {
		return &DispatchResult{Primary: fallback, Monitors: monitors}, nil
	}

	if len(monitors) > 0 {
		return &DispatchResult{Monitors: monitors}, nil
	}

	return nil, engineerr.New(engineerr.KindNotFound, normalized, nil)
}

// ResolveSocket runs the same candidate matching and requirement
// filtering as ResolveHTTP, but for WebSocket endpoints: identical
// matching/filtering against the socket bucket using the socket
// requirement predicates.
func (d *Dispatcher) ResolveSocket(exchange *SocketExchange) (*DispatchResult, error) {
	normalized := NormalizePath(exchange.Path)

	candidates := d.registry.matchingSocket(normalized)
	survivors := d.filter(requirement.WebSocket, exchange, candidates)

	primary, monitors, params := selectSurvivors(survivors)
	if primary == nil && len(monitors) == 0 {
		return nil, engineerr.New(engineerr.KindNotFound, normalized, nil)
	}
	return &DispatchResult{Primary: primary, Monitors: monitors, Params: params}, nil
}

func (d *Dispatcher) filter(kind requirement.ServerKind, exchange requirement.Exchange, candidates []matchedEndpoint) []matchedEndpoint {
	bucket := d.reqs.Requirements(kind)
	survivors := candidates[:0]
	for _, c := range candidates {
		if applyAll(bucket, exchange, c.endpoint) {
			survivors = append(survivors, c)
		}
	}
	return survivors
}

func applyAll(bucket []requirement.Requirement, exchange requirement.Exchange, ep requirement.EndpointView) bool {
	for _, req := range bucket {
		if !req.Applies(exchange, ep) {
			return false
		}
	}
	return true
}

// selectSurvivors separates MONITOR-priority survivors (always invoked as
// observers, never as primary) from ordinary candidates, picking the
// highest-priority/earliest-registered ordinary survivor as primary. A
// match set containing only MONITOR-priority endpoints yields no primary,
// per this project's resolution of the MONITOR ordering ambiguity
// (recorded in DESIGN.md).
func selectSurvivors(matches []matchedEndpoint) (primary *Endpoint, monitors []*Endpoint, params map[string]string) {
	var ordinary []*Endpoint
	byEndpoint := make(map[*Endpoint]map[string]string, len(matches))
	for _, m := range matches {
		byEndpoint[m.endpoint] = m.params
		if m.endpoint.Priority == MONITOR {
			monitors = append(monitors, m.endpoint)
		} else {
			ordinary = append(ordinary, m.endpoint)
		}
	}
	sortSurvivors(ordinary)
	sortSurvivors(monitors)
	if len(ordinary) > 0 {
		primary = ordinary[0]
		params = byEndpoint[primary]
	}
	return primary, monitors, params
}
