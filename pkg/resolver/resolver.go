package resolver

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/im7mortal/kmutex"
	"github.com/juju/clock"

	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/errors"
	"github.com/matzehuels/cfboot/pkg/fetch"
	"github.com/matzehuels/cfboot/pkg/framework"
	"github.com/matzehuels/cfboot/pkg/identity"
	"github.com/matzehuels/cfboot/pkg/observability"
	"github.com/matzehuels/cfboot/pkg/store"
	"github.com/matzehuels/cfboot/pkg/version"
)

const (
	// DefaultStopTimeout bounds how long StopModule waits for a module that
	// is starting or stopping.
	DefaultStopTimeout = 5 * time.Second

	stopPollInterval = 10 * time.Millisecond
)

// Resolver finds, installs and starts modules.
//
// A Resolver is safe for concurrent use. Each top-level call owns its own
// Visiting set; installs of the same module name are serialised.
type Resolver struct {
	fw          framework.Framework
	store       *store.Store
	fetch       *fetch.Fetcher
	id          *identity.Identity
	boot        framework.BootDelegation
	logger      *log.Logger
	clock       clock.Clock
	stopTimeout time.Duration
	installs    *kmutex.Kmutex
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFetcher enables downloads from the update provider.
func WithFetcher(f *fetch.Fetcher) Option {
	return func(r *Resolver) { r.fetch = f }
}

// WithIdentity sets the identity sent with nested downloads.
func WithIdentity(id *identity.Identity) Option {
	return func(r *Resolver) { r.id = id }
}

// WithBootDelegation sets the packages the host provides. Requirements on
// them are never resolved.
func WithBootDelegation(b framework.BootDelegation) Option {
	return func(r *Resolver) { r.boot = b }
}

func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithClock replaces the wall clock used by StopModule.
func WithClock(c clock.Clock) Option {
	return func(r *Resolver) { r.clock = c }
}

// WithStopTimeout sets how long StopModule waits before forcing a stop.
func WithStopTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.stopTimeout = d }
}

// New creates a Resolver over a framework and a local store.
func New(fw framework.Framework, st *store.Store, opts ...Option) *Resolver {
	r := &Resolver{
		fw:          fw,
		store:       st,
		boot:        framework.DefaultBootDelegation(),
		clock:       clock.WallClock,
		stopTimeout: DefaultStopTimeout,
		installs:    kmutex.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	return r
}

// Framework returns the framework the resolver drives.
func (r *Resolver) Framework() framework.Framework { return r.fw }

// Store returns the local module store.
func (r *Resolver) Store() *store.Store { return r.store }

// Load resolves a top-level request. A module that was installed but could
// not be started is returned together with the start error.
func (r *Resolver) Load(ctx context.Context, req Request) (*framework.Module, error) {
	res := r.Resolve(ctx, req, NewVisiting())
	return res.Module, res.Err
}

// LoadFromLocal installs and starts a module from the store without
// downloading it.
func (r *Resolver) LoadFromLocal(ctx context.Context, name string, v *version.Version) (*framework.Module, error) {
	return r.Load(ctx, Request{Name: name, Version: v, StartIfNecessary: true})
}

// Resolve makes the requested module available: an installed module is
// reused, then a local file is installed, then the module is downloaded.
func (r *Resolver) Resolve(ctx context.Context, req Request, visiting *Visiting) Result {
	hooks := observability.Resolver()
	hooks.OnResolveStart(ctx, req.Name, req.versionText())
	began := r.clock.Now()

	res := r.resolve(ctx, req, visiting)
	hooks.OnResolveComplete(ctx, req.Name, req.versionText(), res.Status.String(), r.clock.Now().Sub(began), res.Err)
	return res
}

func (r *Resolver) resolve(ctx context.Context, req Request, visiting *Visiting) Result {
	if err := errors.ValidateModuleName(req.Name); err != nil {
		return Result{Status: Failed, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return Result{Status: Failed, Err: err}
	}

	if m := r.loaded(req); m != nil {
		return r.finish(ctx, m, req, visiting)
	}

	d, found := r.store.FindWithVersions(ctx, req.Name, req.Version, req.Extra...)
	if d == nil && req.Version != nil && req.VersionOnlyMattersForDownload {
		d = r.store.Find(ctx, req.Name, nil, req.Extra...)
	}
	if d != nil {
		return r.installAndFinish(ctx, d.Path, req, visiting)
	}

	if !req.DownloadIfMissing || r.fetch == nil {
		return Result{Status: Failed, Err: r.notFound(req, found, false)}
	}
	id := req.Identity
	if id == nil {
		id = r.id
	}
	path, err := r.fetch.Download(ctx, req.Name, req.versionText(), id)
	if err != nil {
		if errors.Is(err, errors.ErrCodeDownloadFailed) {
			err = errors.Wrap(errors.ErrCodeModuleNotFound, err, "%s", r.notFound(req, found, true).Message)
		}
		return Result{Status: Failed, Err: err}
	}
	return r.installAndFinish(ctx, path, req, visiting)
}

func (r *Resolver) installAndFinish(ctx context.Context, path string, req Request, visiting *Visiting) Result {
	lock := strings.ToLower(req.Name)
	r.installs.Lock(lock)
	m := r.loaded(req)
	if m == nil {
		var err error
		m, err = r.fw.Install(ctx, path)
		if err != nil {
			r.installs.Unlock(lock)
			return Result{Status: Failed, Err: err}
		}
		r.logger.Debug("installed module", "module", m.Key(), "path", path)
	}
	r.installs.Unlock(lock)
	return r.finish(ctx, m, req, visiting)
}

func (r *Resolver) finish(ctx context.Context, m *framework.Module, req Request, visiting *Visiting) Result {
	if !req.StartIfNecessary {
		return Result{Status: Resolved, Module: m}
	}
	unmet, err := r.start(ctx, m, visiting)
	if err != nil {
		return Result{Status: PartiallyResolved, Module: m, Unmet: unmet, Err: err}
	}
	return Result{Status: Resolved, Module: m}
}

// loaded returns an installed module satisfying req. When the version only
// matters for downloads, any installed version is accepted as a second
// choice.
func (r *Resolver) loaded(req Request) *framework.Module {
	if m := r.Loaded(req.Name, req.Version); m != nil {
		return m
	}
	if req.Version != nil && req.VersionOnlyMattersForDownload {
		return r.Loaded(req.Name, nil)
	}
	return nil
}

// Loaded returns the installed module with the given name and version. A
// nil version matches the newest installed version.
func (r *Resolver) Loaded(name string, v *version.Version) *framework.Module {
	if v != nil {
		if m := framework.Find(r.fw, name, *v); m != nil && !m.IsSystem() {
			return m
		}
		return nil
	}
	var best *framework.Module
	for _, m := range r.fw.Installed() {
		if m.IsSystem() || !strings.EqualFold(m.Name, name) {
			continue
		}
		if best == nil || m.Version.NewerThan(best.Version) {
			best = m
		}
	}
	return best
}

// Start starts m, resolving its missing requirements when the framework
// refuses to.
func (r *Resolver) Start(ctx context.Context, m *framework.Module, visiting *Visiting) error {
	_, err := r.start(ctx, m, visiting)
	return err
}

// start runs the recovery protocol: resolve required modules (with a second
// chance for those that only installed), retry, resolve required packages,
// retry. It returns the requirements that could not be satisfied.
func (r *Resolver) start(ctx context.Context, m *framework.Module, visiting *Visiting) ([]string, error) {
	if r.fw.State(m) == framework.Active {
		return nil, nil
	}
	rev, err := r.fw.Revision(m)
	if err != nil {
		return nil, err
	}
	if rev.IsFragment() {
		r.logger.Debug("not starting fragment", "module", m.Key(), "host", rev.FragmentHost)
		return nil, nil
	}

	err = r.fw.Start(ctx, m, false)
	if err == nil {
		return nil, nil
	}
	key := m.Key()
	if visiting.Has(key) {
		return nil, err
	}
	visiting.Add(key)
	r.logger.Debug("start failed, resolving requirements", "module", key, "error", err)

	mods, pkgs, skipped := bundle.SplitRequirements(rev.Requirements)
	for _, serr := range skipped {
		r.logger.Debug("ignoring malformed requirement", "module", key, "error", serr)
	}
	var failed []string

	var second []*framework.Module
	for _, mr := range mods {
		if mr.Optional || r.satisfied(mr) {
			continue
		}
		res := r.Resolve(ctx, r.requestFor(ctx, mr, key), visiting)
		switch res.Status {
		case PartiallyResolved:
			second = append(second, res.Module)
		case Failed:
			r.logger.Debug("required module not available", "module", key, "requirement", mr.String(), "error", res.Err)
			failed = append(failed, mr.String())
		}
	}
	for _, dep := range second {
		if err := r.fw.Start(ctx, dep, false); err != nil {
			failed = append(failed, dep.Key())
		}
	}

	if err = r.fw.Start(ctx, m, false); err == nil {
		return nil, nil
	}

	for _, pr := range pkgs {
		if !pr.IsRequired() || r.boot.Covers(pr.Name) || r.exported(pr) {
			continue
		}
		if _, perr := r.loadByPackage(ctx, pr, key, visiting); perr != nil {
			r.logger.Debug("required package not available", "module", key, "package", pr.String(), "error", perr)
			failed = append(failed, pr.Name)
		}
	}

	if err = r.fw.Start(ctx, m, false); err == nil {
		return nil, nil
	}
	if len(failed) == 0 {
		return nil, err
	}
	return failed, errors.Wrap(errors.ErrCodeStartFailed, err,
		"failed to start [%s], was not able to download/load the following bundles [%s]", key, strings.Join(failed, ";"))
}

// requestFor turns a module requirement into a request. Ranged
// requirements pick the newest installed or local version in range and fall
// back to the lower bound for downloads, or to the latest version when the
// bound is excluded.
func (r *Resolver) requestFor(ctx context.Context, mr bundle.ModuleRequirement, parent string) Request {
	req := Request{
		Name:              mr.Name,
		Version:           mr.Version(),
		Identity:          r.id,
		StartIfNecessary:  true,
		DownloadIfMissing: true,
		Parent:            parent,
	}
	if mr.Constraint == nil || mr.Constraint.Op == version.EQ {
		return req
	}
	var best *bundle.Descriptor
	for _, d := range r.store.List(ctx) {
		if mr.Matches(d.SymbolicName, d.Version) && (best == nil || d.Version.NewerThan(best.Version)) {
			best = d
		}
	}
	for _, m := range r.fw.Installed() {
		if !m.IsSystem() && mr.Matches(m.Name, m.Version) && (best == nil || m.Version.NewerThan(best.Version)) {
			best = &bundle.Descriptor{SymbolicName: m.Name, Version: m.Version}
		}
	}
	switch {
	case best != nil:
		v := best.Version
		req.Version = &v
		if best.Path != "" {
			req.Extra = []string{best.Path}
		}
	case mr.Constraint.Op == version.GT || mr.Constraint.Op == version.NEQ:
		// the bound itself is excluded, ask the provider for its latest
		req.Version = nil
	}
	return req
}

// satisfied reports whether an installed module already meets mr.
func (r *Resolver) satisfied(mr bundle.ModuleRequirement) bool {
	for _, m := range r.fw.Installed() {
		if mr.Matches(m.Name, m.Version) && r.fw.State(m) == framework.Active {
			return true
		}
	}
	return false
}

// exported reports whether an installed module exports a package accepted
// by pr.
func (r *Resolver) exported(pr bundle.PackageRequirement) bool {
	for _, m := range r.fw.Installed() {
		rev, err := r.fw.Revision(m)
		if err != nil {
			continue
		}
		for _, e := range rev.Exports {
			if pr.Accepts(e) {
				return true
			}
		}
	}
	return false
}

// notFound builds the error for a module that is neither installed, local
// nor downloadable.
func (r *Resolver) notFound(req Request, found []string, downloaded bool) *errors.Error {
	var b strings.Builder
	fmt.Fprintf(&b, "The module with name [%s]", req.Name)
	if req.Parent != "" {
		fmt.Fprintf(&b, " for [%s]", req.Parent)
	}
	where := fmt.Sprintf("locally [%s]", r.store.Dir())
	if downloaded {
		where += fmt.Sprintf(" or from the update provider [%s]", r.fetch.BaseURL())
	}
	switch {
	case req.Version != nil && len(found) > 0:
		fmt.Fprintf(&b, " is not available in version [%s] %s, the following versions are available locally [%s].",
			req.Version, where, strings.Join(found, ", "))
	case req.Version != nil:
		fmt.Fprintf(&b, " in version [%s] is not available %s.", req.Version, where)
	default:
		fmt.Fprintf(&b, " is not available %s.", where)
	}
	return errors.New(errors.ErrCodeModuleNotFound, "%s", b.String())
}

// BundleFile returns the descriptor of a local module file, downloading it
// when download is set and no local file matches. Nothing is installed.
func (r *Resolver) BundleFile(ctx context.Context, name string, v *version.Version, id *identity.Identity, download bool) (*bundle.Descriptor, error) {
	req := Request{Name: name, Version: v, Identity: id, DownloadIfMissing: download}
	d, found := r.store.FindWithVersions(ctx, name, v)
	if d != nil {
		return d, nil
	}
	if !download || r.fetch == nil {
		return nil, r.notFound(req, found, false)
	}
	if id == nil {
		id = r.id
	}
	path, err := r.fetch.Download(ctx, name, req.versionText(), id)
	if err != nil {
		return nil, err
	}
	return r.store.Describe(ctx, path)
}

// Remove stops and uninstalls the module. With removeFile the jar is also
// deleted from the store; the returned path is the deleted file.
func (r *Resolver) Remove(ctx context.Context, name string, v version.Version, removeFile bool) (string, error) {
	m := r.Loaded(name, &v)
	if m != nil {
		if err := r.StopModule(ctx, m); err != nil {
			r.logger.Warn("stop before uninstall failed", "module", m.Key(), "error", err)
		}
		if err := r.fw.Uninstall(ctx, m); err != nil {
			return "", err
		}
	}
	if !removeFile {
		if m == nil {
			return "", errors.New(errors.ErrCodeModuleNotFound, "module [%s] is not loaded", bundle.Key(name, v))
		}
		return "", nil
	}
	return r.store.Remove(ctx, name, v)
}

// Definitions lists the installed modules with their state names.
func (r *Resolver) Definitions() []Definition {
	var out []Definition
	for _, m := range r.fw.Installed() {
		out = append(out, Definition{
			ID:       m.ID,
			Name:     m.Name,
			Version:  m.Version.String(),
			State:    r.fw.State(m).String(),
			Location: m.Location,
		})
	}
	return out
}
