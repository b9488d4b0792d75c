package resolver

import (
	"context"
	"strings"

	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/framework"
)

// ClassSource looks up the bytes of a class by its binary name.
type ClassSource interface {
	TryLoad(ctx context.Context, className string) ([]byte, bool)
}

// Classes tries its sources in order.
type Classes []ClassSource

// Load returns the class bytes from the first source that has the class.
// Classes outside any package are never looked up.
func (c Classes) Load(ctx context.Context, className string) ([]byte, bool) {
	if !strings.Contains(className, ".") {
		return nil, false
	}
	for _, src := range c {
		if data, ok := src.TryLoad(ctx, className); ok {
			return data, true
		}
	}
	return nil, false
}

// CoreSource reads classes from the core module.
type CoreSource struct {
	Framework framework.Framework
	Module    func() *framework.Module
}

func (s CoreSource) TryLoad(_ context.Context, className string) ([]byte, bool) {
	m := s.Module()
	if m == nil {
		return nil, false
	}
	return entry(s.Framework, m, className)
}

// ActiveSource reads classes from every active module.
type ActiveSource struct {
	Framework framework.Framework
}

func (s ActiveSource) TryLoad(_ context.Context, className string) ([]byte, bool) {
	for _, m := range s.Framework.Installed() {
		if m.IsSystem() || s.Framework.State(m) != framework.Active {
			continue
		}
		if data, ok := entry(s.Framework, m, className); ok {
			return data, true
		}
	}
	return nil, false
}

// LocalSource installs and starts the first local module that contains the
// class and is not installed yet.
type LocalSource struct {
	Resolver *Resolver
}

func (s LocalSource) TryLoad(ctx context.Context, className string) ([]byte, bool) {
	r := s.Resolver
	path := bundle.ClassPath(className)
	for _, d := range r.store.List(ctx) {
		if r.Loaded(d.SymbolicName, &d.Version) != nil || !bundle.HasEntry(d.Path, path) {
			continue
		}
		v := d.Version
		m, err := r.LoadFromLocal(ctx, d.SymbolicName, &v)
		if err != nil {
			r.logger.Debug("could not load module for class", "class", className, "module", d.Key(), "error", err)
			continue
		}
		if data, ok := entry(r.fw, m, className); ok {
			return data, true
		}
	}
	return nil, false
}

func entry(fw framework.Framework, m *framework.Module, className string) ([]byte, bool) {
	data, err := fw.Entry(m, bundle.ClassPath(className))
	if err != nil {
		return nil, false
	}
	return data, true
}
