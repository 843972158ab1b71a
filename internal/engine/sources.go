package engine

import (
	"archive/zip"
	"io"
	"strings"

	"forgecore/internal/addon"
	"forgecore/internal/codespace"
	"forgecore/pkg/logging"
)

// zipSource resolves resource names against a set of open zip readers:
// the addon's own archive first, followed by every dependency jar
// resolved for it, in resolution order.
type zipSource struct {
	readers []*zip.ReadCloser
}

func (s *zipSource) Resolve(name string) (codespace.Resource, bool) {
	for _, rc := range s.readers {
		for _, f := range rc.File {
			if f.Name != name {
				continue
			}
			rf, err := f.Open()
			if err != nil {
				continue
			}
			data, err := io.ReadAll(rf)
			rf.Close()
			if err != nil {
				continue
			}
			return codespace.Resource{Name: name, Bytes: data}, true
		}
	}
	return codespace.Resource{}, false
}

// archiveSources opens each addon's own archive plus its resolved
// dependency jars and builds the per-addon SourceProvider set the
// manager needs for Instantiate. Archives that fail to open are skipped
// with a log line rather than aborting startup.
func archiveSources(mgr *addon.Manager) map[string]codespace.SourceProvider {
	out := make(map[string]codespace.SourceProvider)
	for name, record := range mgr.Records() {
		src := &zipSource{}
		if rc, err := zip.OpenReader(record.ArchivePath); err == nil {
			src.readers = append(src.readers, rc)
		} else {
			logging.Warn("engine", "could not reopen archive %s for code space wiring: %v", record.ArchivePath, err)
		}
		for _, u := range record.DependencyURLs {
			local := strings.TrimPrefix(u, "file://")
			if rc, err := zip.OpenReader(local); err == nil {
				src.readers = append(src.readers, rc)
			}
		}
		out[name] = src
	}
	return out
}
