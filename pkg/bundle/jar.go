package bundle

import (
	"archive/zip"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/cfboot/pkg/errors"
)

// ReadFile reads the descriptor of the jar at path. Errors from opening the
// file are wrapped with %w so callers can inspect the underlying os error.
func ReadFile(path string) (*Descriptor, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer zr.Close()

	m, err := readJarManifest(&zr.Reader)
	if err != nil {
		return nil, err
	}
	d, err := FromManifest(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d.Path = path
	return d, nil
}

// ReadManifestFile returns the raw manifest headers of the jar at path.
func ReadManifestFile(path string) (Manifest, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer zr.Close()
	return readJarManifest(&zr.Reader)
}

func readJarManifest(zr *zip.Reader) (Manifest, error) {
	for _, f := range zr.File {
		if !strings.EqualFold(f.Name, ManifestPath) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDescriptorParse, err, "open manifest")
		}
		defer rc.Close()
		return ReadManifest(rc)
	}
	return nil, ErrNotBundle
}

// ReadEntry returns the content of one archive entry.
func ReadEntry(path, name string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer zr.Close()

	f, err := zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// HasEntry reports whether the archive contains name.
func HasEntry(path, name string) bool {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

// ClassPath converts "a.b.C" into the archive entry "a/b/C.class".
func ClassPath(className string) string {
	return strings.ReplaceAll(strings.TrimSpace(className), ".", "/") + ".class"
}

// ExtractDir copies every entry under prefix with the given extension out of
// the jar into dir, keeping base names. Existing files are left alone. It
// returns the paths written.
func ExtractDir(jar, prefix, ext, dir string) ([]string, error) {
	zr, err := zip.OpenReader(jar)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", jar, err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var written []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasPrefix(f.Name, prefix) || !strings.HasSuffix(f.Name, ext) {
			continue
		}
		target := filepath.Join(dir, filepath.Base(f.Name))
		if _, err := os.Stat(target); err == nil {
			continue
		}
		if err := extractFile(f, target); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+"-*.part")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// WriteJar writes a jar containing a manifest built from headers plus the
// given extra entries.
func WriteJar(path string, headers map[string]string, entries map[string][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)

	w, err := zw.Create(ManifestPath)
	if err == nil {
		err = WriteManifest(w, headers)
	}
	for _, name := range sortedEntryNames(entries) {
		if err != nil {
			break
		}
		var ew io.Writer
		if ew, err = zw.Create(name); err == nil {
			_, err = ew.Write(entries[name])
		}
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func sortedEntryNames(entries map[string][]byte) []string {
	return slices.Sorted(maps.Keys(entries))
}
