package addon

import (
	"sync"

	"forgecore/internal/autoregister"
	"forgecore/internal/codespace"
)

// Record is one discovered addon's full bookkeeping entry: its manifest,
// resolved instance, isolation space, lifecycle state, and harvested
// auto-register descriptors.
type Record struct {
	mu sync.RWMutex

	Manifest    Manifest
	ArchivePath string
	Instance    Addon
	Space       *codespace.Space
	State       State
	// Descriptors holds every non-service (marker-derived) auto-register
	// entry harvested from this addon's own archive.
	Descriptors []autoregister.Descriptor
	// Services holds every META-INF/services descriptor harvested from
	// this addon's own archive. Service wiring additionally scans
	// DependencyURLs for more at Enable time.
	Services []autoregister.Descriptor

	// DependencyURLs are the jar-urls resolved for this addon's declared
	// `dependencies` coordinates.
	DependencyURLs []string
}

func (r *Record) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = s
}

// CurrentState returns the record's lifecycle state.
func (r *Record) CurrentState() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.State
}
