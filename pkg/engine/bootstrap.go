package engine

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/juju/clock"

	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/config"
	"github.com/matzehuels/cfboot/pkg/errors"
	"github.com/matzehuels/cfboot/pkg/framework"
	"github.com/matzehuels/cfboot/pkg/resolver"
	"github.com/matzehuels/cfboot/pkg/version"
)

// DefaultGrace is how long Shutdown waits for modules to settle.
const DefaultGrace = 5 * time.Second

const settlePollInterval = 10 * time.Millisecond

// Bootstrap owns the single running engine of a process.
type Bootstrap struct {
	cfg      *config.Config
	resolver *resolver.Resolver
	factory  Factory
	logger   *log.Logger
	clock    clock.Clock
	grace    time.Duration

	mu sync.Mutex
	rc *RuntimeContext
}

// Option configures a Bootstrap.
type Option func(*Bootstrap)

func WithLogger(l *log.Logger) Option {
	return func(b *Bootstrap) { b.logger = l }
}

// WithClock replaces the wall clock used for the shutdown grace period.
func WithClock(c clock.Clock) Option {
	return func(b *Bootstrap) { b.clock = c }
}

func WithGrace(d time.Duration) Option {
	return func(b *Bootstrap) { b.grace = d }
}

// New creates a Bootstrap. A nil factory uses ModuleFactory.
func New(cfg *config.Config, r *resolver.Resolver, factory Factory, opts ...Option) *Bootstrap {
	if factory == nil {
		factory = ModuleFactory
	}
	b := &Bootstrap{
		cfg:      cfg,
		resolver: r,
		factory:  factory,
		logger:   log.Default(),
		clock:    clock.WallClock,
		grace:    DefaultGrace,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// GetOrStart returns the running engine, booting it on the first call. Host
// configuration passed to later calls is attached to the running context.
func (b *Bootstrap) GetOrStart(ctx context.Context, host *HostConfig) (*RuntimeContext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rc != nil {
		if host != nil {
			b.rc.Hosts = append(b.rc.Hosts, *host)
		}
		return b.rc, nil
	}

	rc, err := b.boot(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStartFailed, err, "failed to boot engine [%s]", b.cfg.CoreName())
	}
	if host != nil {
		rc.Hosts = append(rc.Hosts, *host)
	}
	b.rc = rc
	return rc, nil
}

// Current returns the running context, or nil before boot and after
// shutdown.
func (b *Bootstrap) Current() *RuntimeContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rc
}

func (b *Bootstrap) boot(ctx context.Context) (*RuntimeContext, error) {
	name := b.cfg.CoreName()
	v, err := b.coreVersion()
	if err != nil {
		return nil, err
	}

	core, err := b.resolver.BundleFile(ctx, name, v, nil, b.cfg.DownloadEnabled())
	if err != nil {
		return nil, err
	}
	extracted, err := bundle.ExtractDir(core.Path, "bundles/", ".jar", b.resolver.Store().Dir())
	if err != nil {
		b.logger.Warn("failed to extract embedded bundles", "core", core.Path, "error", err)
	}
	for _, path := range extracted {
		b.logger.Debug("extracted embedded bundle", "file", filepath.Base(path))
	}

	m, err := b.resolver.Load(ctx, resolver.Request{
		Name:              core.SymbolicName,
		Version:           &core.Version,
		StartIfNecessary:  true,
		DownloadIfMissing: b.cfg.DownloadEnabled(),
	})
	if err != nil {
		return nil, err
	}

	rc := &RuntimeContext{
		Core:      m,
		Framework: b.resolver.Framework(),
		Resolver:  b.resolver,
		Config:    b.cfg,
	}
	e, err := b.factory.NewEngine(ctx, rc)
	if err != nil {
		return nil, err
	}
	if err := e.Start(ctx); err != nil {
		return nil, err
	}
	rc.Engine = e
	info := e.Info()
	b.logger.Info("engine started", "core", m.Key(), "version", info.Version)
	return rc, nil
}

func (b *Bootstrap) coreVersion() (*version.Version, error) {
	text := b.cfg.CoreVersion()
	if text == "" {
		return nil, nil
	}
	v, err := version.ParseStrict(text)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid core version [%s]", text)
	}
	return &v, nil
}

// Restart replaces the running engine with a freshly resolved one. The
// credential must grant CapRestart on the current engine. Modules that do
// not stop within the resolver's stop timeout are stopped forcibly and the
// restart continues.
func (b *Bootstrap) Restart(ctx context.Context, credential string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rc == nil {
		return false, errors.New(errors.ErrCodeInvalidInput, "engine is not running")
	}
	if !b.rc.Engine.Can(CapRestart, credential) {
		return false, errors.New(errors.ErrCodeUnauthorized, "not allowed to restart the engine")
	}

	hosts := b.rc.Hosts
	fw := b.resolver.Framework()
	order := b.stopOrder()
	var wasActive []*framework.Module
	for _, m := range order {
		if fw.State(m) == framework.Active {
			wasActive = append(wasActive, m)
		}
	}

	if err := b.rc.Engine.Stop(ctx); err != nil {
		b.logger.Warn("engine stop failed", "error", err)
	}
	for _, m := range order {
		if err := b.resolver.StopModule(ctx, m); err != nil {
			b.logger.Warn("module stop failed", "module", m.Key(), "error", err)
		}
	}
	// dependencies first
	for i := len(wasActive) - 1; i >= 0; i-- {
		m := wasActive[i]
		if err := b.resolver.Start(ctx, m, resolver.NewVisiting()); err != nil {
			b.logger.Warn("module restart failed", "module", m.Key(), "error", err)
		}
	}

	rc, err := b.boot(ctx)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeStartFailed, err, "failed to restart engine [%s]", b.cfg.CoreName())
	}
	rc.Hosts = hosts
	b.rc = rc
	b.logger.Info("restarted", "core", rc.Core.Key())
	runtime.GC()
	return true, nil
}

// Shutdown stops and uninstalls every module, dependents before their
// dependencies, waits up to the grace period for modules to settle and
// then stops the framework.
func (b *Bootstrap) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rc != nil {
		if err := b.rc.Engine.Stop(ctx); err != nil {
			b.logger.Warn("engine stop failed", "error", err)
		}
	}

	fw := b.resolver.Framework()
	for _, m := range b.stopOrder() {
		if err := b.resolver.StopModule(ctx, m); err != nil {
			b.logger.Warn("module stop failed", "module", m.Key(), "error", err)
		}
		if err := fw.Uninstall(ctx, m); err != nil {
			b.logger.Warn("module uninstall failed", "module", m.Key(), "error", err)
		}
	}
	b.settle(ctx, fw)

	b.rc = nil
	if err := fw.Shutdown(ctx); err != nil {
		return err
	}
	b.logger.Info("shutdown complete")
	return nil
}

// stopOrder lists the installed non-system modules with dependents first.
// Requirement cycles are broken before ordering.
func (b *Bootstrap) stopOrder() []*framework.Module {
	g := b.resolver.Graph()
	if n := g.BreakCycles(); n > 0 {
		b.logger.Debug("broke requirement cycles", "edges", n)
	}
	order, err := g.TopoOrder()
	if err != nil {
		order = nil
		for _, n := range g.Nodes() {
			order = append(order, n.ID)
		}
	}

	byKey := map[string]*framework.Module{}
	for _, m := range b.resolver.Framework().Installed() {
		byKey[m.Key()] = m
	}
	var out []*framework.Module
	for _, key := range order {
		if m, ok := byKey[key]; ok {
			out = append(out, m)
		}
	}
	return out
}

func (b *Bootstrap) settle(ctx context.Context, fw framework.Framework) {
	deadline := b.clock.Now().Add(b.grace)
	for {
		busy := false
		for _, m := range fw.Installed() {
			if fw.State(m).Transient() {
				busy = true
				break
			}
		}
		if !busy {
			return
		}
		if !b.clock.Now().Before(deadline) {
			b.logger.Warn("modules did not settle before shutdown", "grace", b.grace)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-b.clock.After(settlePollInterval):
		}
	}
}
