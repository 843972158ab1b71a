// Package pattern implements the URL normaliser and named-group pattern
// compiler: it turns a path template such as
// "/foo/{name}/bar/{id}" into a canonical string, a compiled regular
// expression, and the ordered list of named groups it declares.
package pattern

import (
	"regexp"
	"strings"
)

// namedGroup matches a single "{name}" placeholder.
var namedGroup = regexp.MustCompile(`\{([^{}/]+)\}`)

// repeatedSlash collapses runs of "/" into one.
var repeatedSlash = regexp.MustCompile(`/+`)

// Compiled is a canonicalised path template together with its compiled
// matcher and the named groups it declares, in order of appearance.
type Compiled struct {
	// Canonical is the normalised source template, e.g. "/foo/{name}".
	Canonical string
	// Groups lists the named path segments in declaration order.
	Groups []string

	re *regexp.Regexp
}

// Canonicalize applies the normalisation rules: trim
// whitespace, ensure a leading slash, collapse repeated slashes, and strip
// any trailing slash. It is idempotent: Canonicalize(Canonicalize(p)) ==
// Canonicalize(p).
func Canonicalize(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = repeatedSlash.ReplaceAllString(p, "/")
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	if p == "" {
		p = "/"
	}
	return p
}

// Compile canonicalises template and compiles it into a named-group
// pattern. Every "{X}" is replaced by a segment-local group "[^/]+"; the
// whole match is anchored and accepts an optional trailing slash, and is
// case-insensitive.
func Compile(template string) *Compiled {
	canonical := Canonicalize(template)

	var groups []string
	segments := strings.Split(canonical, "/")
	for i, seg := range segments {
		m := namedGroup.FindStringSubmatch(seg)
		if m == nil {
			segments[i] = regexp.QuoteMeta(seg)
			continue
		}
		name := m[1]
		groups = append(groups, name)
		segments[i] = "(?P<" + sanitizeGroupName(name) + ">[^/]+)"
	}

	body := strings.Join(segments, "/")
	full := "(?i)^" + body + "/?$"

	return &Compiled{
		Canonical: canonical,
		Groups:    groups,
		re:        regexp.MustCompile(full),
	}
}

// sanitizeGroupName maps a template group name to a syntactically valid Go
// regexp named-capture identifier (regexp group names may not contain
// characters like '-'), while keeping the original name available via
// Groups for callers that need the source spelling.
func sanitizeGroupName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Match reports whether input (canonicalised first) matches the pattern,
// and if so, returns the named group values keyed by their original
// template names.
func (c *Compiled) Match(input string) (map[string]string, bool) {
	in := Canonicalize(input)
	m := c.re.FindStringSubmatch(in)
	if m == nil {
		return nil, false
	}

	values := make(map[string]string, len(c.Groups))
	names := c.re.SubexpNames()
	for i, n := range names {
		if n == "" || i >= len(m) {
			continue
		}
		for _, orig := range c.Groups {
			if sanitizeGroupName(orig) == n {
				values[orig] = m[i]
			}
		}
	}
	return values, true
}

// String returns the canonical template, making Compiled a natural map key
// display value and satisfying fmt.Stringer.
func (c *Compiled) String() string { return c.Canonical }

// Cache deduplicates compilation by canonical string, satisfying spec
// a duplicate registration reuses the already-compiled pattern.
// Callers (the route registry) hold one Cache per server-kind bucket.
type Cache struct {
	entries map[string]*Compiled
}

// NewCache returns an empty pattern cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Compiled)}
}

// GetOrCompile returns the existing Compiled for template's canonical form
// if one was already produced by this cache, compiling and storing it
// otherwise.
func (c *Cache) GetOrCompile(template string) *Compiled {
	canonical := Canonicalize(template)
	if existing, ok := c.entries[canonical]; ok {
		return existing
	}
	compiled := Compile(template)
	c.entries[canonical] = compiled
	return compiled
}
