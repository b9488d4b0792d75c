package bundle

import (
	"errors"
	"strings"

	"github.com/matzehuels/cfboot/pkg/version"
)

// ErrNotBundle is returned for jars whose manifest has no symbolic name.
var ErrNotBundle = errors.New("not a bundle")

// PackageExport is one entry of an Export-Package header. Version is nil for
// unversioned exports and for the placeholder version 0.0.0.
type PackageExport struct {
	Name    string           `json:"name"`
	Version *version.Version `json:"version,omitempty"`
}

// Descriptor is the static metadata of one module file or installed module.
// It is built once and never modified afterwards.
type Descriptor struct {
	SymbolicName     string               `json:"symbolic_name"`
	Version          version.Version      `json:"version"`
	Exports          []PackageExport      `json:"exports,omitempty"`
	Requirements     []Requirement        `json:"requirements,omitempty"`
	RequiredModules  []ModuleRequirement  `json:"required_modules,omitempty"`
	RequiredPackages []PackageRequirement `json:"required_packages,omitempty"`
	FragmentHost     string               `json:"fragment_host,omitempty"`
	Path             string               `json:"path,omitempty"`
	Headers          Manifest             `json:"headers,omitempty"`
	// Malformed lists requirement filters that could not be parsed.
	Malformed []string `json:"malformed,omitempty"`
}

// FromManifest builds a descriptor from manifest headers.
//
// Requirement clauses that cannot be parsed are dropped individually; the
// rest of the manifest still yields a descriptor.
func FromManifest(m Manifest) (*Descriptor, error) {
	name := FirstName(m.Get(HeaderSymbolicName))
	if name == "" {
		return nil, ErrNotBundle
	}
	d := &Descriptor{
		SymbolicName: name,
		Version:      version.Parse(m.Get(HeaderVersion), version.Version{}),
		Exports:      ParseExports(m.Get(HeaderExportPackage)),
		FragmentHost: FirstName(m.Get(HeaderFragmentHost)),
		Headers:      m,
	}

	d.Requirements = RequirementsFromManifest(m)
	var skipped []error
	d.RequiredModules, d.RequiredPackages, skipped = SplitRequirements(d.Requirements)
	for _, err := range skipped {
		d.Malformed = append(d.Malformed, err.Error())
	}
	return d, nil
}

// SplitRequirements parses wiring requirements into module and package
// requirements. Filters that cannot be parsed are skipped and their errors
// returned so the caller can report them.
func SplitRequirements(reqs []Requirement) ([]ModuleRequirement, []PackageRequirement, []error) {
	var mods []ModuleRequirement
	var pkgs []PackageRequirement
	var skipped []error
	for _, r := range reqs {
		switch r.Namespace {
		case NamespaceBundle:
			mr, err := ParseModuleRequirement(r.Filter)
			if err != nil {
				skipped = append(skipped, err)
				continue
			}
			mr.Optional = ParseResolution(r.Directives["resolution"]) == Optional
			mods = append(mods, mr)
		case NamespacePackage:
			pr, err := ParsePackageRequirement(r.Filter, r.Directives["resolution"])
			if err != nil {
				skipped = append(skipped, err)
				continue
			}
			pkgs = append(pkgs, pr)
		}
	}
	return mods, pkgs, skipped
}

// RequirementsFromManifest converts Require-Bundle, Import-Package and
// DynamicImport-Package clauses into wiring filters, in declaration order.
func RequirementsFromManifest(m Manifest) []Requirement {
	var reqs []Requirement
	for _, c := range ParseClauses(m.Get(HeaderRequireBundle)) {
		for _, name := range c.Names {
			reqs = append(reqs, Requirement{
				Namespace:  NamespaceBundle,
				Filter:     ModuleFilter(name, c.Attrs["bundle-version"]),
				Directives: c.Directives,
			})
		}
	}
	for _, c := range ParseClauses(m.Get(HeaderImportPackage)) {
		for _, name := range c.Names {
			reqs = append(reqs, Requirement{
				Namespace:  NamespacePackage,
				Filter:     PackageFilter(name, c.Attrs["version"]),
				Directives: c.Directives,
			})
		}
	}
	for _, c := range ParseClauses(m.Get(HeaderDynamicImport)) {
		for _, name := range c.Names {
			if strings.Contains(name, "*") {
				continue
			}
			reqs = append(reqs, Requirement{
				Namespace:  NamespacePackage,
				Filter:     PackageFilter(name, c.Attrs["version"]),
				Directives: map[string]string{"resolution": "dynamic"},
			})
		}
	}
	return reqs
}

// ParseExports parses an Export-Package header.
func ParseExports(header string) []PackageExport {
	var out []PackageExport
	for _, c := range ParseClauses(header) {
		var v *version.Version
		if text := strings.TrimSpace(c.Attrs["version"]); text != "" && text != "0.0.0" {
			if parsed, err := version.ParseStrict(text); err == nil {
				v = &parsed
			}
		}
		for _, name := range c.Names {
			out = append(out, PackageExport{Name: name, Version: v})
		}
	}
	return out
}

// IsFragment reports whether the module attaches to a host instead of
// running on its own.
func (d *Descriptor) IsFragment() bool { return d.FragmentHost != "" }

// Key identifies the module as "name:version".
func (d *Descriptor) Key() string { return Key(d.SymbolicName, d.Version) }

func (d *Descriptor) String() string { return d.Key() }

// Key builds the "name:version" identity used by recursion guards and logs.
func Key(name string, v version.Version) string { return name + ":" + v.String() }

// ExportFor returns the export of pkg that satisfies every constraint.
func (d *Descriptor) ExportFor(pkg string, cs []version.Constraint) (PackageExport, bool) {
	for _, e := range d.Exports {
		if e.Name != pkg {
			continue
		}
		if e.Version != nil && !version.MatchesAll(cs, *e.Version) {
			continue
		}
		return e, true
	}
	return PackageExport{}, false
}

// ExportsPackage reports whether the module exports pkg in any version.
func (d *Descriptor) ExportsPackage(pkg string) bool {
	for _, e := range d.Exports {
		if e.Name == pkg {
			return true
		}
	}
	return false
}
