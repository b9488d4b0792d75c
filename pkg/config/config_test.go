package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cfboot/pkg/errors"
)

func TestLookupOrder(t *testing.T) {
	c := New(map[string]string{"cfboot.test.key": "prop"})

	if got, _ := c.Lookup("cfboot.test.key"); got != "prop" {
		t.Errorf("Lookup() = %q, want prop", got)
	}

	t.Setenv("CFBOOT_TEST_KEY", "upper")
	if got, _ := c.Lookup("cfboot.test.key"); got != "prop" {
		t.Errorf("property should win over upper-case env, got %q", got)
	}

	t.Setenv("cfboot.test.key", "exact")
	if got, _ := c.Lookup("cfboot.test.key"); got != "exact" {
		t.Errorf("exact env should win, got %q", got)
	}
}

func TestLookupUpperEnvFallback(t *testing.T) {
	c := New(nil)
	if _, ok := c.Lookup("cfboot.other.key"); ok {
		t.Fatal("Lookup() found an unset key")
	}
	t.Setenv("CFBOOT_OTHER_KEY", "v")
	if got, ok := c.Lookup("cfboot.other.key"); !ok || got != "v" {
		t.Errorf("Lookup() = %q, %v", got, ok)
	}
}

func TestParse(t *testing.T) {
	c, err := Parse(`
"cfboot.enable.bundle.download" = false

[cfboot.update]
location = "https://mirror.example.org/"

[cfboot]
bootdelegation = ["com.sun.*", "sun.misc"]
`)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if c.DownloadEnabled() {
		t.Error("DownloadEnabled() = true, want false")
	}
	if got := c.UpdateLocation(); got != "https://mirror.example.org" {
		t.Errorf("UpdateLocation() = %q", got)
	}
	if got := c.BootDelegation(); !reflect.DeepEqual(got, []string{"com.sun.*", "sun.misc"}) {
		t.Errorf("BootDelegation() = %v", got)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse("this is = = not toml"); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Parse() error = %v, want INVALID_CONFIG", err)
	}
}

func TestLoad(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load(missing) error: %v", err)
	}
	if len(c.Keys()) != 0 {
		t.Errorf("Keys() = %v, want none", c.Keys())
	}

	path := filepath.Join(t.TempDir(), "cfboot.toml")
	if err := os.WriteFile(path, []byte("[cfboot.core]\nname = \"my.core\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.CoreName() != "my.core" {
		t.Errorf("CoreName() = %q", c.CoreName())
	}
}

func TestDefaults(t *testing.T) {
	c := New(map[string]string{KeyServerDir: "/srv/cf"})
	if got := c.UpdateLocation(); got != DefaultUpdateLocation {
		t.Errorf("UpdateLocation() = %q", got)
	}
	if !c.DownloadEnabled() {
		t.Error("DownloadEnabled() should default to true")
	}
	if got := c.BundlesDir(); got != filepath.Join("/srv/cf", "bundles") {
		t.Errorf("BundlesDir() = %q", got)
	}
	if got := c.CoreName(); got != DefaultCoreName {
		t.Errorf("CoreName() = %q", got)
	}
	if b, err := c.CacheBackend(); err != nil || b != CacheFile {
		t.Errorf("CacheBackend() = %q, %v", b, err)
	}
}

func TestCacheBackendInvalid(t *testing.T) {
	c := New(map[string]string{KeyCacheBackend: "memcached"})
	if _, err := c.CacheBackend(); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("CacheBackend() error = %v, want INVALID_CONFIG", err)
	}
}

func TestBoolFallsBackOnGarbage(t *testing.T) {
	c := New(map[string]string{KeyDownload: "maybe"})
	if !c.DownloadEnabled() {
		t.Error("unparseable bool should fall back to the default")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
		ok   bool
	}{
		{"error", log.ErrorLevel, true},
		{"0", log.ErrorLevel, true},
		{"1", log.ErrorLevel, true},
		{"WARNING", log.WarnLevel, true},
		{"2", log.WarnLevel, true},
		{"info", log.InfoLevel, true},
		{"3", log.InfoLevel, true},
		{"debug", log.DebugLevel, true},
		{"4", log.DebugLevel, true},
		{"trace", log.InfoLevel, false},
	}
	for _, tt := range tests {
		got, ok := ParseLogLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLogLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
