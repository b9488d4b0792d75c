package bundle

import (
	"bufio"
	"io"
	"strings"

	"github.com/matzehuels/cfboot/pkg/errors"
)

// Manifest header names.
const (
	HeaderSymbolicName    = "Bundle-SymbolicName"
	HeaderVersion         = "Bundle-Version"
	HeaderFragmentHost    = "Fragment-Host"
	HeaderRequireBundle   = "Require-Bundle"
	HeaderExportPackage   = "Export-Package"
	HeaderImportPackage   = "Import-Package"
	HeaderDynamicImport   = "DynamicImport-Package"
	HeaderActivator       = "Bundle-Activator"
	HeaderBuiltDate       = "Built-Date"
	HeaderManifestVersion = "Manifest-Version"
)

// ManifestPath is the location of the manifest inside a jar.
const ManifestPath = "META-INF/MANIFEST.MF"

// Manifest holds the main section of a jar manifest.
type Manifest map[string]string

// Get returns the header value, matching the name case-insensitively.
func (m Manifest) Get(name string) string {
	if v, ok := m[name]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// ReadManifest parses the main section of a manifest.
//
// A line starting with a single space continues the previous header. The
// main section ends at the first blank line.
func ReadManifest(r io.Reader) (Manifest, error) {
	m := Manifest{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var key string
	var val strings.Builder
	flush := func() {
		if key != "" {
			m[key] = strings.TrimSpace(val.String())
		}
		key = ""
		val.Reset()
	}

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			if key != "" || len(m) > 0 {
				break
			}
			continue
		}
		if line[0] == ' ' {
			if key == "" {
				return nil, errors.New(errors.ErrCodeDescriptorParse, "manifest continuation line without header")
			}
			val.WriteString(line[1:])
			continue
		}
		flush()
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, errors.New(errors.ErrCodeDescriptorParse, "invalid manifest line %q", line)
		}
		key = strings.TrimSpace(name)
		val.WriteString(strings.TrimPrefix(value, " "))
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDescriptorParse, err, "read manifest")
	}
	flush()
	return m, nil
}

// WriteManifest renders headers in manifest syntax, wrapping lines at 72
// bytes. Manifest-Version is written first.
func WriteManifest(w io.Writer, headers map[string]string) error {
	var b strings.Builder
	mv := headers[HeaderManifestVersion]
	if mv == "" {
		mv = "1.0"
	}
	writeHeader(&b, HeaderManifestVersion, mv)
	for _, k := range sortedKeys(headers) {
		if k == HeaderManifestVersion {
			continue
		}
		writeHeader(&b, k, headers[k])
	}
	b.WriteString("\r\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func writeHeader(b *strings.Builder, key, value string) {
	line := key + ": " + value
	width := 72
	for len(line) > width {
		b.WriteString(line[:width])
		b.WriteString("\r\n ")
		line = line[width:]
		width = 71
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}
