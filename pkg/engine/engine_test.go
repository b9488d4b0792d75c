package engine

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/config"
	"github.com/matzehuels/cfboot/pkg/errors"
	"github.com/matzehuels/cfboot/pkg/framework"
	"github.com/matzehuels/cfboot/pkg/resolver"
	"github.com/matzehuels/cfboot/pkg/store"
)

type stopRecorder struct {
	mu      sync.Mutex
	stopped []string
}

func (s *stopRecorder) Start(context.Context, *framework.Module) error { return nil }

func (s *stopRecorder) Stop(_ context.Context, m *framework.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = append(s.stopped, m.Name)
	return nil
}

func (s *stopRecorder) order() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.stopped, ",")
}

type fixture struct {
	dir string
	fw  *framework.Local
	r   *resolver.Resolver
}

func newFixture(t *testing.T, opts ...framework.LocalOption) *fixture {
	t.Helper()
	opts = append(opts, framework.WithFrameworkLogger(log.New(os.Stderr)))
	fw, err := framework.NewLocal(t.TempDir(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	return &fixture{dir: dir, fw: fw, r: resolver.New(fw, store.New(dir))}
}

func (f *fixture) bootstrap(props map[string]string, factory Factory) *Bootstrap {
	all := map[string]string{config.KeyDownload: "false"}
	for k, v := range props {
		all[k] = v
	}
	return New(config.New(all), f.r, factory, WithGrace(0))
}

func writeJar(t *testing.T, dir, name, ver string, headers map[string]string, entries map[string][]byte) string {
	t.Helper()
	h := map[string]string{bundle.HeaderSymbolicName: name, bundle.HeaderVersion: ver}
	for k, v := range headers {
		h[k] = v
	}
	path := filepath.Join(dir, name+"-"+ver+".jar")
	if err := bundle.WriteJar(path, h, entries); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGetOrStartCachesEngine(t *testing.T) {
	f := newFixture(t)
	writeJar(t, f.dir, config.DefaultCoreName, "6.0.1", map[string]string{
		bundle.HeaderBuiltDate: "2023-03-14 09:26:53",
	}, nil)
	b := f.bootstrap(nil, nil)
	ctx := context.Background()

	rc, err := b.GetOrStart(ctx, nil)
	if err != nil {
		t.Fatalf("GetOrStart() error: %v", err)
	}
	info := rc.Engine.Info()
	if info.Version != "6.0.1" {
		t.Errorf("Info().Version = %q, want 6.0.1", info.Version)
	}
	if info.BuildTime.Year() != 2023 || info.BuildTime.Month() != 3 {
		t.Errorf("Info().BuildTime = %v", info.BuildTime)
	}
	if f.fw.State(rc.Core) != framework.Active {
		t.Errorf("core state = %s, want active", f.fw.State(rc.Core))
	}

	again, err := b.GetOrStart(ctx, &HostConfig{Name: "web"})
	if err != nil {
		t.Fatalf("second GetOrStart() error: %v", err)
	}
	if again != rc {
		t.Error("second GetOrStart() booted a new engine")
	}
	if len(again.Hosts) != 1 || again.Hosts[0].Name != "web" {
		t.Errorf("Hosts = %+v, want [web]", again.Hosts)
	}
	if b.Current() != rc {
		t.Error("Current() does not return the running context")
	}
	if rc.Engine.ServerConfig().CoreName() != config.DefaultCoreName {
		t.Error("ServerConfig() is not the boot configuration")
	}
}

func TestGetOrStartExtractsEmbeddedBundles(t *testing.T) {
	f := newFixture(t)
	helper := writeJar(t, t.TempDir(), "helper", "1.0.0", nil, nil)
	data, err := os.ReadFile(helper)
	if err != nil {
		t.Fatal(err)
	}
	writeJar(t, f.dir, "engine.core", "1.0.0", map[string]string{
		bundle.HeaderRequireBundle: `helper;bundle-version="1.0.0"`,
	}, map[string][]byte{
		"bundles/helper-1.0.0.jar": data,
		"bundles/readme.txt":       []byte("not a bundle"),
	})
	b := f.bootstrap(map[string]string{config.KeyCoreName: "engine.core"}, nil)

	if _, err := b.GetOrStart(context.Background(), nil); err != nil {
		t.Fatalf("GetOrStart() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "helper-1.0.0.jar")); err != nil {
		t.Errorf("embedded bundle not extracted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "readme.txt")); err == nil {
		t.Error("non-jar entry was extracted")
	}
	m := f.r.Loaded("helper", nil)
	if m == nil {
		t.Fatal("helper is not loaded")
	}
	if f.fw.State(m) != framework.Active {
		t.Errorf("helper state = %s, want active", f.fw.State(m))
	}
}

func TestGetOrStartMissingCore(t *testing.T) {
	f := newFixture(t)
	b := f.bootstrap(nil, nil)

	_, err := b.GetOrStart(context.Background(), nil)
	if err == nil {
		t.Fatal("GetOrStart() without a core module should fail")
	}
	if !errors.Is(err, errors.ErrCodeModuleNotFound) {
		t.Errorf("error chain %v lacks MODULE_NOT_FOUND", errors.Chain(err))
	}
	if !errors.Is(err, errors.ErrCodeStartFailed) {
		t.Errorf("error code = %s, want START_FAILED", errors.GetCode(err))
	}
	if b.Current() != nil {
		t.Error("Current() exposes a failed engine")
	}
}

func TestGetOrStartInvalidCoreVersion(t *testing.T) {
	f := newFixture(t)
	b := f.bootstrap(map[string]string{config.KeyCoreVersion: "six"}, nil)

	_, err := b.GetOrStart(context.Background(), nil)
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("error = %v, want INVALID_CONFIG", err)
	}
}

func TestRestartUnauthorized(t *testing.T) {
	f := newFixture(t)
	writeJar(t, f.dir, config.DefaultCoreName, "6.0.1", nil, nil)
	ctx := context.Background()

	tests := map[string]string{"wrong password": "secret", "no password configured": ""}
	for name, password := range tests {
		t.Run(name, func(t *testing.T) {
			b := f.bootstrap(map[string]string{config.KeyRestartPassword: password}, nil)
			if _, err := b.GetOrStart(ctx, nil); err != nil {
				t.Fatalf("GetOrStart() error: %v", err)
			}
			ok, err := b.Restart(ctx, "guess")
			if ok || !errors.Is(err, errors.ErrCodeUnauthorized) {
				t.Errorf("Restart() = %v, %v, want false, UNAUTHORIZED", ok, err)
			}
		})
	}
}

func TestRestartBeforeBoot(t *testing.T) {
	f := newFixture(t)
	b := f.bootstrap(nil, nil)
	if _, err := b.Restart(context.Background(), "x"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Restart() error = %v, want INVALID_INPUT", err)
	}
}

func TestRestart(t *testing.T) {
	rec := &stopRecorder{}
	f := newFixture(t, framework.WithActivator("helper", rec))
	writeJar(t, f.dir, "helper", "1.0.0", nil, nil)
	writeJar(t, f.dir, config.DefaultCoreName, "6.0.1", map[string]string{
		bundle.HeaderRequireBundle: "helper",
	}, nil)

	var engines int
	factory := FactoryFunc(func(ctx context.Context, rc *RuntimeContext) (Engine, error) {
		engines++
		return ModuleFactory.NewEngine(ctx, rc)
	})
	b := f.bootstrap(map[string]string{config.KeyRestartPassword: "secret"}, factory)
	ctx := context.Background()

	first, err := b.GetOrStart(ctx, &HostConfig{Name: "web"})
	if err != nil {
		t.Fatalf("GetOrStart() error: %v", err)
	}
	ok, err := b.Restart(ctx, "secret")
	if err != nil || !ok {
		t.Fatalf("Restart() = %v, %v", ok, err)
	}
	second := b.Current()
	if second == first || second.Engine == first.Engine {
		t.Error("Restart() kept the previous engine")
	}
	if engines != 2 {
		t.Errorf("engines created = %d, want 2", engines)
	}
	if len(second.Hosts) != 1 {
		t.Errorf("Hosts after restart = %+v", second.Hosts)
	}
	if rec.order() != "helper" {
		t.Errorf("stopped during restart = %q, want helper", rec.order())
	}
	for _, m := range []*framework.Module{second.Core, f.r.Loaded("helper", nil)} {
		if f.fw.State(m) != framework.Active {
			t.Errorf("%s state = %s, want active", m, f.fw.State(m))
		}
	}
}

func TestShutdown(t *testing.T) {
	rec := &stopRecorder{}
	f := newFixture(t,
		framework.WithActivator("helper", rec),
		framework.WithActivator("addon", rec),
		framework.WithActivator(config.DefaultCoreName, rec),
	)
	writeJar(t, f.dir, "helper", "1.0.0", nil, nil)
	writeJar(t, f.dir, "addon", "1.0.0", map[string]string{
		bundle.HeaderRequireBundle: "helper",
	}, nil)
	writeJar(t, f.dir, config.DefaultCoreName, "6.0.1", map[string]string{
		bundle.HeaderRequireBundle: "addon",
	}, nil)
	b := f.bootstrap(nil, nil)
	ctx := context.Background()

	if _, err := b.GetOrStart(ctx, nil); err != nil {
		t.Fatalf("GetOrStart() error: %v", err)
	}
	if err := b.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if got, want := rec.order(), config.DefaultCoreName+",addon,helper"; got != want {
		t.Errorf("stop order = %q, want %q", got, want)
	}
	for _, m := range f.fw.Installed() {
		if !m.IsSystem() {
			t.Errorf("%s still installed after shutdown", m)
		}
	}
	if b.Current() != nil {
		t.Error("Current() after Shutdown() should be nil")
	}
	if err := b.Shutdown(ctx); !stderrors.Is(err, framework.ErrStopped) {
		t.Errorf("second Shutdown() error = %v, want ErrStopped", err)
	}
}
