package framework

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/errors"
	"github.com/matzehuels/cfboot/pkg/version"
)

// SystemModuleName is the symbolic name of module 0.
const SystemModuleName = "system.bundle"

// Activator runs code when a module starts and stops.
type Activator interface {
	Start(ctx context.Context, m *Module) error
	Stop(ctx context.Context, m *Module) error
}

// ActivatorFunc adapts a start function to an Activator with a no-op stop.
type ActivatorFunc func(ctx context.Context, m *Module) error

func (f ActivatorFunc) Start(ctx context.Context, m *Module) error { return f(ctx, m) }
func (f ActivatorFunc) Stop(context.Context, *Module) error        { return nil }

// LocalOption configures a Local framework.
type LocalOption func(*Local)

// WithBootDelegation sets the packages provided by the host.
func WithBootDelegation(b BootDelegation) LocalOption {
	return func(l *Local) { l.boot = b }
}

// WithActivator registers the activator run for modules named name.
func WithActivator(name string, a Activator) LocalOption {
	return func(l *Local) { l.activators[strings.ToLower(name)] = a }
}

// WithFrameworkLogger sets the logger.
func WithFrameworkLogger(logger *log.Logger) LocalOption {
	return func(l *Local) { l.logger = logger }
}

// Local is an in-process Framework. Installed jars are copied into
// {dir}/bundle{id}/module.jar.
type Local struct {
	dir        string
	boot       BootDelegation
	activators map[string]Activator
	logger     *log.Logger

	mu      sync.Mutex
	nextID  int64
	modules map[int64]*installed
	stopped bool
}

type installed struct {
	module *Module
	desc   *bundle.Descriptor
	image  string
	state  State
}

// NewLocal creates the framework storage below dir and installs the system
// module.
func NewLocal(dir string, opts ...LocalOption) (*Local, error) {
	l := &Local{
		dir:        dir,
		boot:       DefaultBootDelegation(),
		activators: map[string]Activator{},
		modules:    map[int64]*installed{},
		nextID:     SystemModuleID + 1,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.New(io.Discard)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	sys := &Module{ID: SystemModuleID, Name: SystemModuleName}
	l.modules[SystemModuleID] = &installed{
		module: sys,
		desc:   &bundle.Descriptor{SymbolicName: SystemModuleName},
		state:  Active,
	}
	return l, nil
}

// BootDelegation returns the packages provided by the host.
func (l *Local) BootDelegation() BootDelegation { return l.boot }

func (l *Local) Install(ctx context.Context, location string) (*Module, error) {
	d, err := bundle.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("install %s: %w", location, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return nil, ErrStopped
	}
	for _, in := range l.modules {
		if strings.EqualFold(in.module.Name, d.SymbolicName) && in.module.Version.Equal(d.Version) {
			return in.module, nil
		}
	}

	id := l.nextID
	image := filepath.Join(l.dir, fmt.Sprintf("bundle%d", id), "module.jar")
	if err := copyFile(location, image); err != nil {
		return nil, fmt.Errorf("install %s: %w", location, err)
	}
	l.nextID++
	m := &Module{ID: id, Name: d.SymbolicName, Version: d.Version, Location: location}
	l.modules[id] = &installed{module: m, desc: d, image: image, state: Installed}
	l.logger.Debug("installed module", "module", m.Key(), "id", id)
	for _, msg := range d.Malformed {
		l.logger.Warn("ignoring malformed requirement", "module", m.Key(), "error", msg)
	}
	return m, nil
}

func (l *Local) Start(ctx context.Context, m *Module, force bool) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	in, ok := l.modules[m.ID]
	if !ok {
		l.mu.Unlock()
		return errors.New(errors.ErrCodeStartFailed, "module [%s] is not installed", m.Key())
	}
	switch {
	case in.state == Active:
		l.mu.Unlock()
		return nil
	case in.desc.IsFragment():
		l.mu.Unlock()
		return errors.New(errors.ErrCodeStartFailed, "module [%s] is a fragment and cannot be started", m.Key())
	case in.state.Transient() && !force:
		l.mu.Unlock()
		return errors.New(errors.ErrCodeStartFailed, "module [%s] is %s", m.Key(), in.state)
	}

	if missing := l.unresolved(in.desc); len(missing) > 0 {
		l.mu.Unlock()
		return errors.New(errors.ErrCodeStartFailed, "Unable to resolve %s: missing requirement [%s]", m.Key(), strings.Join(missing, "; "))
	}
	in.state = Starting
	act := l.activators[strings.ToLower(m.Name)]
	l.mu.Unlock()

	var err error
	if act != nil {
		err = act.Start(ctx, m)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if in.state != Starting {
		// stopped or uninstalled while the activator ran
		return nil
	}
	if err != nil {
		in.state = Resolved
		return errors.Wrap(errors.ErrCodeStartFailed, err, "activator of [%s] failed", m.Key())
	}
	in.state = Active
	l.logger.Debug("started module", "module", m.Key())
	return nil
}

// unresolved lists the mandatory requirements of d no installed module
// satisfies. The caller holds l.mu.
func (l *Local) unresolved(d *bundle.Descriptor) []string {
	var missing []string
	for _, req := range d.RequiredModules {
		if req.Optional {
			continue
		}
		if !l.anyInstalled(func(in *installed) bool { return req.Matches(in.module.Name, in.module.Version) }) {
			missing = append(missing, bundle.NamespaceBundle+"="+req.String())
		}
	}
	for _, req := range d.RequiredPackages {
		if !req.IsRequired() || l.boot.Covers(req.Name) {
			continue
		}
		if !l.anyInstalled(func(in *installed) bool {
			for _, e := range in.desc.Exports {
				if req.Accepts(e) {
					return true
				}
			}
			return false
		}) {
			missing = append(missing, bundle.NamespacePackage+"="+req.String())
		}
	}
	return missing
}

func (l *Local) anyInstalled(pred func(*installed) bool) bool {
	for _, in := range l.modules {
		if in.state != Uninstalled && pred(in) {
			return true
		}
	}
	return false
}

func (l *Local) Stop(ctx context.Context, m *Module) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	in, ok := l.modules[m.ID]
	if !ok || m.IsSystem() || (in.state != Active && in.state != Starting) {
		l.mu.Unlock()
		return nil
	}
	in.state = Stopping
	act := l.activators[strings.ToLower(m.Name)]
	l.mu.Unlock()

	var err error
	if act != nil {
		err = act.Stop(ctx, m)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if in.state == Stopping {
		in.state = Resolved
	}
	if err != nil {
		return fmt.Errorf("stop %s: %w", m.Key(), err)
	}
	l.logger.Debug("stopped module", "module", m.Key())
	return nil
}

func (l *Local) Uninstall(ctx context.Context, m *Module) error {
	if m.IsSystem() {
		return errors.New(errors.ErrCodeInvalidInput, "the system module cannot be uninstalled")
	}
	if err := l.Stop(ctx, m); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	in, ok := l.modules[m.ID]
	if !ok {
		return nil
	}
	in.state = Uninstalled
	delete(l.modules, m.ID)
	if err := os.RemoveAll(filepath.Dir(in.image)); err != nil {
		l.logger.Warn("could not remove module image", "module", m.Key(), "error", err)
	}
	l.logger.Debug("uninstalled module", "module", m.Key())
	return nil
}

func (l *Local) State(m *Module) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if in, ok := l.modules[m.ID]; ok {
		return in.state
	}
	return Uninstalled
}

func (l *Local) Installed() []*Module {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Module, 0, len(l.modules))
	for _, in := range l.modules {
		out = append(out, in.module)
	}
	slices.SortFunc(out, func(a, b *Module) int { return int(a.ID - b.ID) })
	return out
}

func (l *Local) Revision(m *Module) (*Revision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	in, ok := l.modules[m.ID]
	if !ok {
		return nil, errors.New(errors.ErrCodeModuleNotFound, "module [%s] is not installed", m.Key())
	}
	return &Revision{
		Requirements: in.desc.Requirements,
		Exports:      in.desc.Exports,
		FragmentHost: in.desc.FragmentHost,
	}, nil
}

func (l *Local) Entry(m *Module, path string) ([]byte, error) {
	l.mu.Lock()
	in, ok := l.modules[m.ID]
	l.mu.Unlock()
	if !ok || in.image == "" {
		return nil, os.ErrNotExist
	}
	return bundle.ReadEntry(in.image, path)
}

// Shutdown stops modules in reverse install order. Later calls return
// ErrStopped.
func (l *Local) Shutdown(ctx context.Context) error {
	mods := l.Installed()
	slices.Reverse(mods)
	for _, m := range mods {
		if err := l.Stop(ctx, m); err != nil {
			l.logger.Warn("stop during shutdown failed", "module", m.Key(), "error", err)
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrStopped
	}
	l.stopped = true
	return nil
}

// Find returns the installed module with the given name and version.
func Find(fw Framework, name string, v version.Version) *Module {
	for _, m := range fw.Installed() {
		if strings.EqualFold(m.Name, name) && m.Version.Equal(v) {
			return m
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

var _ Framework = (*Local)(nil)
