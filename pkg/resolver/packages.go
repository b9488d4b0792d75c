package resolver

import (
	"context"
	"strings"

	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/errors"
	"github.com/matzehuels/cfboot/pkg/framework"
)

// packageFallbacks maps legacy package prefixes to the modules that
// provide them today.
var packageFallbacks = []struct {
	prefix string
	module string
}{
	{"org.bouncycastle", "bcprov"},
	{"org.apache.log4j", "log4j"},
}

// fallbackModule returns the module registered for pkg, matching the prefix
// exactly or as a parent package.
func fallbackModule(pkg string) string {
	for _, f := range packageFallbacks {
		if pkg == f.prefix || strings.HasPrefix(pkg, f.prefix+".") {
			return f.module
		}
	}
	return ""
}

// LoadByPackage installs and starts a module exporting a package accepted by
// pr. Packages provided by the host return (nil, nil).
func (r *Resolver) LoadByPackage(ctx context.Context, pr bundle.PackageRequirement, visiting *Visiting) (*framework.Module, error) {
	return r.loadByPackage(ctx, pr, "", visiting)
}

func (r *Resolver) loadByPackage(ctx context.Context, pr bundle.PackageRequirement, parent string, visiting *Visiting) (*framework.Module, error) {
	if r.boot.Covers(pr.Name) {
		return nil, nil
	}

	skip := func(d *bundle.Descriptor) bool { return visiting.Has(d.Key()) }
	for _, d := range r.store.Exporting(ctx, pr.Name, pr.Constraints, skip) {
		v := d.Version
		res := r.Resolve(ctx, Request{
			Name:             d.SymbolicName,
			Version:          &v,
			Extra:            []string{d.Path},
			StartIfNecessary: true,
			Parent:           parent,
		}, visiting)
		if res.Status == Resolved {
			return res.Module, nil
		}
		r.logger.Debug("exporting module did not start", "package", pr.Name, "module", d.Key(), "error", res.Err)
	}

	if pr.IsRequired() {
		if name := fallbackModule(pr.Name); name != "" {
			res := r.Resolve(ctx, Request{
				Name:              name,
				Identity:          r.id,
				StartIfNecessary:  true,
				DownloadIfMissing: true,
				Parent:            parent,
			}, visiting)
			if res.Status == Resolved {
				return res.Module, nil
			}
			return nil, res.Err
		}
	}
	return nil, errors.New(errors.ErrCodeModuleNotFound, "no module exports package [%s]", pr.String())
}
