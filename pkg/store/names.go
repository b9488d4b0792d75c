package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/cfboot/pkg/version"
)

const jarExt = ".jar"

// guesses returns the canonical file names for name and v in every
// location. A location that is a file is included when its name equals one
// of the guesses.
func guesses(locations []string, name string, v version.Version) []string {
	vs := v.String()
	patterns := []string{
		name + "-" + vs + jarExt,
		name + "-" + dashed(vs) + jarExt,
		dashed(name) + "-" + dashed(vs) + jarExt,
	}

	var out []string
	for _, loc := range locations {
		info, err := os.Stat(loc)
		if err != nil {
			continue
		}
		if info.IsDir() {
			for _, p := range patterns {
				out = append(out, filepath.Join(loc, p))
			}
			continue
		}
		for _, p := range patterns {
			if strings.EqualFold(filepath.Base(loc), p) {
				out = append(out, loc)
				break
			}
		}
	}
	return out
}

// variantMatch returns the first jar whose base name, without extension,
// equals one of the separator variants of name and v.
func variantMatch(jars []string, name string, v version.Version) string {
	vs := v.String()
	variants := []string{
		name + "-" + dotted(vs),
		dashed(name) + "-" + vs,
		dashed(name) + "-" + dashed(vs),
		dashed(name) + "-" + dotted(vs),
		dotted(name) + "-" + vs,
		dotted(name) + "-" + dashed(vs),
		dotted(name) + "-" + dotted(vs),
	}
	for _, path := range jars {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		for _, variant := range variants {
			if strings.EqualFold(base, variant) {
				return path
			}
		}
	}
	return ""
}

// listJars lists jar files in every location. Locations that are files are
// included directly when they carry the jar extension.
func listJars(locations []string) []string {
	var out []string
	for _, loc := range locations {
		info, err := os.Stat(loc)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			if isJar(loc) {
				out = append(out, loc)
			}
			continue
		}
		entries, err := os.ReadDir(loc)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() && isJar(e.Name()) {
				out = append(out, filepath.Join(loc, e.Name()))
			}
		}
	}
	return out
}

func isJar(name string) bool { return strings.EqualFold(filepath.Ext(name), jarExt) }

func dashed(s string) string { return strings.ReplaceAll(s, ".", "-") }
func dotted(s string) string { return strings.ReplaceAll(s, "-", ".") }
