package addon

import (
	"bytes"
	"strings"

	"forgecore/internal/autoregister"
)

// classMarker is the constant-pool UTF8 literal this host looks for to
// recognise an auto-registered class. There is no JVM here to actually
// walk RuntimeVisibleAnnotations, so the marker convention is reduced to
// a literal embedded by whatever stamped the class, immediately followed
// by a "phase:kind" tag (e.g. "LOAD:ROUTE"). A marker with no
// recognisable tag defaults to ENABLE phase and a "ROUTE" kind.
const classMarker = "io/forgecore/addon/AutoRegister"

// manifestMarkerScanner implements autoregister.MarkerScanner with the
// classMarker substring-search convention above.
type manifestMarkerScanner struct{}

// NewMarkerScanner returns the marker scanner every addon manager is
// wired with in production.
func NewMarkerScanner() autoregister.MarkerScanner { return manifestMarkerScanner{} }

func (manifestMarkerScanner) ScanClass(name string, data []byte) (autoregister.Descriptor, bool) {
	idx := bytes.Index(data, []byte(classMarker))
	if idx < 0 {
		return autoregister.Descriptor{}, false
	}

	phase, kind := autoregister.PhaseEnable, "ROUTE"
	if tag := markerTag(data, idx+len(classMarker)); tag != "" {
		if p, k, ok := strings.Cut(tag, ":"); ok && k != "" {
			if autoregister.Phase(p) == autoregister.PhaseLoad {
				phase = autoregister.PhaseLoad
			}
			kind = k
		}
	}

	return autoregister.Descriptor{
		Phase:       phase,
		Kind:        kind,
		TargetClass: classNameFromEntry(name),
	}, true
}

// markerTag reads up to 32 bytes of tag text immediately following the
// marker literal, stopping at the first byte outside [A-Za-z0-9:_] —
// tolerant of a marker with a truncated or absent tag, matching the
// tolerant-scan discipline the rest of this package's archive reading
// follows.
func markerTag(data []byte, offset int) string {
	end := offset
	for end < len(data) && end-offset < 32 && isTagByte(data[end]) {
		end++
	}
	return string(data[offset:end])
}

func isTagByte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9', b == ':', b == '_':
		return true
	default:
		return false
	}
}

// classNameFromEntry converts a zip entry path into a dotted fully
// qualified class name.
func classNameFromEntry(name string) string {
	return strings.ReplaceAll(strings.TrimSuffix(name, ".class"), "/", ".")
}
