// Package autoregister implements the auto-register scanner:
// given an open archive, it walks every entry and produces a flat list of
// descriptors — one per META-INF/services provider file, one per marked
// class — attached to the owning addon.
package autoregister

import (
	"archive/zip"
	"bufio"
	"bytes"
	"strings"

	"forgecore/pkg/logging"
)

// Phase is the lifecycle phase a descriptor is materialised at.
type Phase string

const (
	PhaseLoad   Phase = "LOAD"
	PhaseEnable Phase = "ENABLE"
)

// Descriptor is one auto-register entry discovered in an archive.
type Descriptor struct {
	// Phase is when this descriptor is materialised; default is ENABLE.
	Phase Phase
	// Kind distinguishes service-descriptor entries from marker-derived
	// ones; "SERVICE" or a marker-supplied kind string.
	Kind string
	// TargetClass is the fully qualified provider/target class name.
	TargetClass string
	// Interface is set for SERVICE-kind descriptors: the service
	// interface the target provides.
	Interface string
}

// MarkerScanner inspects a .class entry's bytes for the auto-register
// marker and, if present, returns the descriptor it declares. Concrete
// bytecode-annotation inspection is outside this package's scope; the
// addon engine supplies an implementation grounded on whatever marker
// convention its manifest schema defines.
type MarkerScanner interface {
	ScanClass(name string, data []byte) (Descriptor, bool)
}

// Scan walks every entry of an open zip archive, producing the flat
// descriptor list. Entries that fail to read are
// skipped rather than aborting the scan, mirroring the "NoClassDef-style
// failures are non-fatal for unrelated entries" requirement.
func Scan(r *zip.Reader, markers MarkerScanner) []Descriptor {
	var out []Descriptor
	for _, f := range r.File {
		switch {
		case strings.HasPrefix(f.Name, "META-INF/services/") && !f.FileInfo().IsDir():
			iface := strings.TrimPrefix(f.Name, "META-INF/services/")
			if iface == "" {
				continue
			}
			data, err := readZipEntry(f)
			if err != nil {
				logging.Debug("autoregister", "skipping unreadable service descriptor %s: %v", f.Name, err)
				continue
			}
			providers := parseServiceFile(data)
			if len(providers) == 0 {
				continue
			}
			out = append(out, Descriptor{
				Phase:       PhaseEnable,
				Kind:        "SERVICE",
				Interface:   iface,
				TargetClass: strings.Join(providers, ";"),
			})

		case strings.HasSuffix(f.Name, ".class") && !f.FileInfo().IsDir():
			data, err := readZipEntry(f)
			if err != nil {
				logging.Debug("autoregister", "skipping unreadable class entry %s: %v", f.Name, err)
				continue
			}
			if markers == nil {
				continue
			}
			desc, ok := markers.ScanClass(f.Name, data)
			if !ok {
				continue
			}
			if desc.Phase == "" {
				desc.Phase = PhaseEnable
			}
			out = append(out, desc)
		}
	}
	return out
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseServiceFile parses a META-INF/services provider-listing file per
// one provider per line, "#" and "//" comments, blank
// lines skipped.
func parseServiceFile(data []byte) []string {
	var providers []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		providers = append(providers, line)
	}
	return providers
}
