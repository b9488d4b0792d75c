package store

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/cache"
	"github.com/matzehuels/cfboot/pkg/errors"
	"github.com/matzehuels/cfboot/pkg/version"
)

func writeBundle(t *testing.T, dir, file, name, ver string, headers map[string]string) string {
	t.Helper()
	h := map[string]string{bundle.HeaderSymbolicName: name, bundle.HeaderVersion: ver}
	for k, v := range headers {
		h[k] = v
	}
	path := filepath.Join(dir, file)
	if err := bundle.WriteJar(path, h, nil); err != nil {
		t.Fatalf("WriteJar(%s) error: %v", file, err)
	}
	return path
}

func vp(s string) *version.Version {
	v := version.MustParse(s)
	return &v
}

func TestFindCanonicalName(t *testing.T) {
	dir := t.TempDir()
	path := writeBundle(t, dir, "hibernate-extension-5.4.29.Final.jar", "hibernate-extension", "5.4.29.Final", nil)

	d := New(dir).Find(context.Background(), "hibernate-extension", vp("5.4.29.Final"))
	if d == nil {
		t.Fatal("Find() = nil, want hibernate-extension")
	}
	if d.Path != path {
		t.Errorf("Path = %q, want %q", d.Path, path)
	}
}

func TestFindDashedName(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "org-lucee-demo-1-0-0.jar", "org.lucee.demo", "1.0.0", nil)

	if d := New(dir).Find(context.Background(), "org.lucee.demo", vp("1.0.0")); d == nil {
		t.Error("Find() missed the fully dashed file name")
	}
}

func TestFindSeparatorVariant(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "ORG-LUCEE-DEMO-1.2.3.4.beta.jar", "org.lucee.demo", "1.2.3.4-BETA", nil)

	d := New(dir).Find(context.Background(), "org.lucee.demo", vp("1.2.3.4-BETA"))
	if d == nil {
		t.Fatal("Find() missed the separator variant")
	}
	if d.Version.String() != "1.2.3.4-BETA" {
		t.Errorf("Version = %s", d.Version)
	}
}

func TestFindByManifestScan(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "renamed.jar", "org.lucee.demo", "1.0.0", nil)

	d := New(dir).Find(context.Background(), "ORG.LUCEE.DEMO", vp("1.0.0"))
	if d == nil || d.SymbolicName != "org.lucee.demo" {
		t.Errorf("Find() = %v, want org.lucee.demo from manifest scan", d)
	}
}

func TestFindWithVersionsReportsCandidates(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "a.jar", "demo", "1.0.0", nil)
	writeBundle(t, dir, "b.jar", "demo", "2.0.0", nil)
	writeBundle(t, dir, "c.jar", "other", "9.9.9", nil)

	d, found := New(dir).FindWithVersions(context.Background(), "demo", vp("9.9.9"))
	if d != nil {
		t.Fatalf("FindWithVersions() = %v, want nil", d)
	}
	if !slices.Equal(found, []string{"1.0.0", "2.0.0"}) {
		t.Errorf("versions found = %v, want [1.0.0 2.0.0]", found)
	}
}

func TestFindNewest(t *testing.T) {
	dir := t.TempDir()
	for _, v := range []string{"1.0.0", "2.0.0", "1.5.0", "2.0.0.SNAPSHOT"} {
		writeBundle(t, dir, "demo-"+v+".jar", "demo", v, nil)
	}

	d := New(dir).Find(context.Background(), "demo", nil)
	if d == nil {
		t.Fatal("Find(nil version) = nil")
	}
	if d.Version.String() != "2.0.0" {
		t.Errorf("newest = %s, want 2.0.0", d.Version)
	}
}

func TestFindNewestFallsBackToScan(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "x.jar", "demo", "3.0.0", nil)

	d := New(dir).Find(context.Background(), "demo", nil)
	if d == nil || d.Version.String() != "3.0.0" {
		t.Errorf("Find(nil version) = %v, want demo:3.0.0", d)
	}
}

func TestFindNewestByScan(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "a.jar", "demo", "1.0.0", nil)
	writeBundle(t, dir, "b.jar", "demo", "3.0.0", nil)
	writeBundle(t, dir, "c.jar", "demo", "2.0.0", nil)

	d := New(dir).Find(context.Background(), "demo", nil)
	if d == nil || d.Version.String() != "3.0.0" {
		t.Errorf("Find(nil version) = %v, want demo:3.0.0", d)
	}
}

func TestFindSkipsNonBundles(t *testing.T) {
	dir := t.TempDir()
	if err := bundle.WriteJar(filepath.Join(dir, "plain.jar"), map[string]string{"Created-By": "test"}, nil); err != nil {
		t.Fatal(err)
	}
	s := New(dir)
	if d := s.Find(context.Background(), "plain", nil); d != nil {
		t.Errorf("Find() = %v, want nil", d)
	}
	if got := s.List(context.Background()); len(got) != 0 {
		t.Errorf("List() = %v, want empty", got)
	}
}

func TestFindExtraLocations(t *testing.T) {
	dir, extraDir, fileDir := t.TempDir(), t.TempDir(), t.TempDir()
	writeBundle(t, extraDir, "a-1.0.0.jar", "a", "1.0.0", nil)
	single := writeBundle(t, fileDir, "b-2.0.0.jar", "b", "2.0.0", nil)

	s := New(dir, WithExtra(extraDir))
	ctx := context.Background()
	if d := s.Find(ctx, "a", vp("1.0.0")); d == nil {
		t.Error("Find() missed bundle in extra directory")
	}
	if d := s.Find(ctx, "b", vp("2.0.0")); d != nil {
		t.Error("Find() should not see a file that was not passed")
	}
	if d := s.Find(ctx, "b", vp("2.0.0"), single); d == nil {
		t.Error("Find() missed extra file")
	}
}

func TestListAndExporting(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "log-3.4.0.jar", "jboss.logging", "3.4.0", map[string]string{
		bundle.HeaderExportPackage: `org.jboss.logging;version="3.4.0"`,
	})
	writeBundle(t, dir, "log-4.0.0.jar", "jboss.logging", "4.0.0", map[string]string{
		bundle.HeaderExportPackage: `org.jboss.logging;version="4.0.0"`,
	})
	writeBundle(t, dir, "other-1.0.0.jar", "other", "1.0.0", nil)

	s := New(dir)
	ctx := context.Background()
	if got := s.List(ctx); len(got) != 3 {
		t.Errorf("len(List()) = %d, want 3", len(got))
	}

	cs := []version.Constraint{
		version.NewConstraint(version.GTE, version.MustParse("3.3.0"), false),
		version.NewConstraint(version.GTE, version.MustParse("4.0.0"), true),
	}
	got := s.Exporting(ctx, "org.jboss.logging", cs, nil)
	if len(got) != 1 || got[0].Version.String() != "3.4.0" {
		t.Errorf("Exporting() = %v, want jboss.logging:3.4.0", got)
	}

	skipAll := func(*bundle.Descriptor) bool { return true }
	if got := s.Exporting(ctx, "org.jboss.logging", nil, skipAll); len(got) != 0 {
		t.Errorf("Exporting() with skip = %v, want empty", got)
	}
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	path := writeBundle(t, dir, "demo-1.0.0.jar", "demo", "1.0.0", nil)
	s := New(dir)
	ctx := context.Background()

	removed, err := s.Remove(ctx, "demo", version.MustParse("1.0.0"))
	if err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if removed != path {
		t.Errorf("Remove() = %q, want %q", removed, path)
	}
	if d := s.Find(ctx, "demo", nil); d != nil {
		t.Error("bundle still found after Remove()")
	}
	if _, err := s.Remove(ctx, "demo", version.MustParse("1.0.0")); !errors.Is(err, errors.ErrCodeModuleNotFound) {
		t.Errorf("second Remove() error = %v, want MODULE_NOT_FOUND", err)
	}
}

func TestLockedFileIsReadFromCopy(t *testing.T) {
	dir := t.TempDir()
	path := writeBundle(t, dir, "demo-1.0.0.jar", "demo", "1.0.0", nil)

	orig := readDescriptor
	defer func() { readDescriptor = orig }()
	var copied string
	readDescriptor = func(p string) (*bundle.Descriptor, error) {
		if p == path {
			return nil, fmt.Errorf("open %s: %w", p, fs.ErrPermission)
		}
		copied = p
		return orig(p)
	}

	d := New(dir).Find(context.Background(), "demo", vp("1.0.0"))
	if d == nil {
		t.Fatal("Find() = nil, want descriptor from the copy")
	}
	if copied == "" {
		t.Fatal("the copy was never read")
	}
	if d.Path != path {
		t.Errorf("Path = %s, want the original jar %s", d.Path, path)
	}
	if _, err := os.Stat(copied); !os.IsNotExist(err) {
		t.Errorf("temporary copy %s still exists: %v", copied, err)
	}
}

func TestPersistentCache(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "demo-1.0.0.jar", "demo", "1.0.0", nil)
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if d := New(dir, WithCache(fc)).Find(ctx, "demo", vp("1.0.0")); d == nil {
		t.Fatal("Find() = nil on first store")
	}

	orig := readDescriptor
	defer func() { readDescriptor = orig }()
	readDescriptor = func(string) (*bundle.Descriptor, error) {
		t.Error("descriptor should have come from the cache")
		return nil, bundle.ErrNotBundle
	}

	d := New(dir, WithCache(fc)).Find(ctx, "demo", vp("1.0.0"))
	if d == nil || d.Key() != "demo:1.0.0" {
		t.Errorf("Find() from cache = %v, want demo:1.0.0", d)
	}
}
