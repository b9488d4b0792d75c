package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/cache"
	"github.com/matzehuels/cfboot/pkg/errors"
	"github.com/matzehuels/cfboot/pkg/observability"
	"github.com/matzehuels/cfboot/pkg/version"
)

const descriptorTTL = 30 * 24 * time.Hour

// readDescriptor is replaced in tests to simulate locked files.
var readDescriptor = bundle.ReadFile

// Store finds module jars in a bundle directory.
type Store struct {
	dir    string
	extra  []string
	cache  cache.Cache
	keyer  cache.Keyer
	logger *log.Logger

	mu   sync.RWMutex
	memo map[string]*entry
}

// entry is a memoized descriptor. Jars without a symbolic name are
// remembered too so they are not reopened on every scan.
type entry struct {
	Descriptor *bundle.Descriptor `json:"descriptor,omitempty"`
	NotBundle  bool               `json:"not_bundle,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithCache persists descriptors in c.
func WithCache(c cache.Cache) Option {
	return func(s *Store) { s.cache = c }
}

// WithKeyer sets the key scheme of the persistent cache.
func WithKeyer(k cache.Keyer) Option {
	return func(s *Store) { s.keyer = k }
}

// WithLogger sets the logger used for soft failures.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithExtra adds directories or single jar files searched after dir.
func WithExtra(paths ...string) Option {
	return func(s *Store) { s.extra = append(s.extra, paths...) }
}

// New returns a Store over dir.
func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, memo: map[string]*entry{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NewNullCache()
	}
	if s.keyer == nil {
		s.keyer = cache.NewDefaultKeyer()
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	return s
}

// Dir returns the primary bundle directory.
func (s *Store) Dir() string { return s.dir }

// Find returns the jar matching name and v, or nil when there is none. A nil
// v selects the newest candidate. extra adds search locations for this call.
func (s *Store) Find(ctx context.Context, name string, v *version.Version, extra ...string) *bundle.Descriptor {
	d, _ := s.FindWithVersions(ctx, name, v, extra...)
	return d
}

// FindWithVersions is like Find and additionally returns the versions of name
// seen during the manifest scan when the requested version was missing.
func (s *Store) FindWithVersions(ctx context.Context, name string, v *version.Version, extra ...string) (*bundle.Descriptor, []string) {
	locations := append(append([]string{s.dir}, s.extra...), extra...)
	if v != nil {
		for _, path := range guesses(locations, name, *v) {
			if d := s.match(ctx, path, name, v); d != nil {
				return d, nil
			}
		}
	}

	jars := listJars(locations)
	if v != nil {
		if path := variantMatch(jars, name, *v); path != "" {
			if d := s.match(ctx, path, name, v); d != nil {
				return d, nil
			}
		}
	} else if d := s.newestByPrefix(ctx, jars, name); d != nil {
		return d, nil
	}

	var found []string
	var newest *bundle.Descriptor
	for _, path := range jars {
		d := s.describeSoft(ctx, path)
		if d == nil || !strings.EqualFold(d.SymbolicName, name) {
			continue
		}
		switch {
		case v == nil:
			if newest == nil || version.Compare(d.Version, newest.Version) > 0 {
				newest = d
			}
		case d.Version.Equal(*v):
			return d, nil
		default:
			found = append(found, d.Version.String())
		}
	}
	if newest != nil {
		return newest, nil
	}
	return nil, found
}

// List returns every bundle in the searched locations.
func (s *Store) List(ctx context.Context) []*bundle.Descriptor {
	var out []*bundle.Descriptor
	for _, path := range listJars(append([]string{s.dir}, s.extra...)) {
		if d := s.describeSoft(ctx, path); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// Exporting returns local bundles that export pkg in a version accepted by
// every constraint. Bundles for which skip returns true are left out.
func (s *Store) Exporting(ctx context.Context, pkg string, cs []version.Constraint, skip func(*bundle.Descriptor) bool) []*bundle.Descriptor {
	var out []*bundle.Descriptor
	for _, d := range s.List(ctx) {
		if skip != nil && skip(d) {
			continue
		}
		if _, ok := d.ExportFor(pkg, cs); ok {
			out = append(out, d)
		} else if d.ExportsPackage(pkg) {
			s.logger.Debug("bundle exports package outside the requested range", "bundle", d.Key(), "package", pkg)
		}
	}
	return out
}

// Remove deletes the jar of name and v from disk and returns its path.
func (s *Store) Remove(ctx context.Context, name string, v version.Version) (string, error) {
	d := s.Find(ctx, name, &v)
	if d == nil {
		return "", errors.New(errors.ErrCodeModuleNotFound, "no local bundle [%s:%s] in [%s]", name, v, s.dir)
	}
	if err := os.Remove(d.Path); err != nil {
		return "", err
	}
	s.mu.Lock()
	for k, e := range s.memo {
		if e.Descriptor != nil && e.Descriptor.Path == d.Path {
			delete(s.memo, k)
		}
	}
	s.mu.Unlock()
	return d.Path, nil
}

// Describe returns the descriptor of the jar at path.
func (s *Store) Describe(ctx context.Context, path string) (*bundle.Descriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := s.keyer.DescriptorKey(absPath(path), info.Size(), info.ModTime())

	s.mu.RLock()
	e, ok := s.memo[key]
	s.mu.RUnlock()
	if !ok {
		e = s.loadCached(ctx, key)
	}
	if e == nil {
		d, err := s.read(path)
		switch {
		case stderrors.Is(err, bundle.ErrNotBundle):
			e = &entry{NotBundle: true}
		case err != nil:
			return nil, err
		default:
			e = &entry{Descriptor: d}
		}
		s.store(ctx, key, e)
	}
	s.mu.Lock()
	s.memo[key] = e
	s.mu.Unlock()

	if e.NotBundle {
		return nil, bundle.ErrNotBundle
	}
	return e.Descriptor, nil
}

func (s *Store) loadCached(ctx context.Context, key string) *entry {
	data, hit, err := s.cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "descriptor")
		return nil
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil
	}
	observability.Cache().OnCacheHit(ctx, "descriptor")
	return &e
}

func (s *Store) store(ctx context.Context, key string, e *entry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, descriptorTTL); err != nil {
		s.logger.Debug("descriptor cache write failed", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "descriptor", len(data))
}

// read parses a jar, retrying once from a temporary copy when the file is
// locked by another process.
func (s *Store) read(path string) (*bundle.Descriptor, error) {
	d, err := readDescriptor(path)
	if err == nil || !isLocked(err) {
		return d, err
	}
	s.logger.Error("cannot load the bundle, the file seems to be locked; retrying from a copy", "path", path)
	tmp, cerr := copyToTemp(path)
	if cerr != nil {
		return nil, err
	}
	defer os.Remove(tmp)
	d, err = readDescriptor(tmp)
	if err != nil {
		return nil, err
	}
	d.Path = path
	return d, nil
}

// describeSoft returns nil for anything that is not a readable bundle.
func (s *Store) describeSoft(ctx context.Context, path string) *bundle.Descriptor {
	d, err := s.Describe(ctx, path)
	if err != nil {
		if !stderrors.Is(err, bundle.ErrNotBundle) {
			s.logger.Debug("skipping unreadable jar", "path", path, "error", err)
		}
		return nil
	}
	return d
}

func (s *Store) match(ctx context.Context, path, name string, v *version.Version) *bundle.Descriptor {
	d := s.describeSoft(ctx, path)
	if d == nil || !strings.EqualFold(d.SymbolicName, name) {
		return nil
	}
	if v != nil && !d.Version.Equal(*v) {
		return nil
	}
	return d
}

func (s *Store) newestByPrefix(ctx context.Context, jars []string, name string) *bundle.Descriptor {
	prefixes := []string{
		name + "-",
		strings.ReplaceAll(name, "-", ".") + "-",
		strings.ReplaceAll(name, ".", "-") + "-",
	}
	var best *bundle.Descriptor
	for _, path := range jars {
		base := filepath.Base(path)
		if !hasAnyPrefix(base, prefixes) {
			continue
		}
		d := s.match(ctx, path, name, nil)
		if d == nil {
			continue
		}
		if best == nil || d.Version.NewerThan(best.Version) {
			best = d
		}
	}
	return best
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
