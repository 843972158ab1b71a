package autoregister

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) *zip.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	r, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return r
}

func TestScanParsesServiceDescriptorWithComments(t *testing.T) {
	r := buildZip(t, map[string]string{
		"META-INF/services/com.example.Plugin": "# comment\n\n// also a comment\ncom.example.impl.FirstPlugin\ncom.example.impl.SecondPlugin\n",
	})

	descs := Scan(r, nil)
	require.Len(t, descs, 1)
	assert.Equal(t, "SERVICE", descs[0].Kind)
	assert.Equal(t, "com.example.Plugin", descs[0].Interface)
	assert.Equal(t, "com.example.impl.FirstPlugin;com.example.impl.SecondPlugin", descs[0].TargetClass)
	assert.Equal(t, PhaseEnable, descs[0].Phase)
}

func TestScanSkipsEmptyServiceFile(t *testing.T) {
	r := buildZip(t, map[string]string{
		"META-INF/services/com.example.Empty": "# nothing here\n",
	})

	assert.Empty(t, Scan(r, nil))
}

type fakeMarkerScanner struct {
	hits map[string]Descriptor
}

func (f fakeMarkerScanner) ScanClass(name string, _ []byte) (Descriptor, bool) {
	d, ok := f.hits[name]
	return d, ok
}

func TestScanAppliesMarkerScannerAndDefaultsPhase(t *testing.T) {
	r := buildZip(t, map[string]string{
		"com/example/Registered.class": "bytecode",
		"com/example/Ignored.class":    "bytecode",
	})
	markers := fakeMarkerScanner{hits: map[string]Descriptor{
		"com/example/Registered.class": {Kind: "COMMAND", TargetClass: "com.example.Registered"},
	}}

	descs := Scan(r, markers)
	require.Len(t, descs, 1)
	assert.Equal(t, "COMMAND", descs[0].Kind)
	assert.Equal(t, PhaseEnable, descs[0].Phase)
}

func TestScanSkipsWhenNoMarkerScannerProvided(t *testing.T) {
	r := buildZip(t, map[string]string{
		"com/example/Foo.class": "bytecode",
	})
	assert.Empty(t, Scan(r, nil))
}
