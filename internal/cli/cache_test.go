package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/matzehuels/cfboot/pkg/cache"
	"github.com/matzehuels/cfboot/pkg/config"
	"github.com/matzehuels/cfboot/pkg/errors"
)

func TestNewCacheBackends(t *testing.T) {
	base := t.TempDir()
	ctx := context.Background()

	fileCfg := config.New(map[string]string{config.KeyServerDir: base})
	ch, err := newCache(ctx, fileCfg)
	if err != nil {
		t.Fatalf("newCache(file) error: %v", err)
	}
	fc, ok := ch.(*cache.FileCache)
	if !ok {
		t.Fatalf("newCache(file) = %T, want *cache.FileCache", ch)
	}
	if fc.Dir() != filepath.Join(base, "cache") {
		t.Errorf("file cache dir = %q", fc.Dir())
	}

	noneCfg := config.New(map[string]string{config.KeyCacheBackend: "NONE"})
	ch, err = newCache(ctx, noneCfg)
	if err != nil {
		t.Fatalf("newCache(none) error: %v", err)
	}
	if _, ok := ch.(*cache.NullCache); !ok {
		t.Errorf("newCache(none) = %T, want *cache.NullCache", ch)
	}

	badCfg := config.New(map[string]string{config.KeyCacheBackend: "memcached"})
	if _, err := newCache(ctx, badCfg); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("newCache(memcached) error = %v, want INVALID_CONFIG", err)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got, want := defaultConfigPath(), filepath.Join("/tmp/xdg", "cfboot", "cfboot.toml"); got != want {
		t.Errorf("defaultConfigPath() = %q, want %q", got, want)
	}
}
