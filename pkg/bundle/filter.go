package bundle

import (
	"strings"

	"github.com/matzehuels/cfboot/pkg/errors"
	"github.com/matzehuels/cfboot/pkg/version"
)

// Requirement namespaces.
const (
	NamespaceBundle  = "osgi.wiring.bundle"
	NamespacePackage = "osgi.wiring.package"
)

// Resolution tells whether a package requirement must be satisfied for the
// module to resolve.
type Resolution int

const (
	Mandatory Resolution = iota
	Dynamic
	Optional
)

// ParseResolution maps a resolution directive to a Resolution. Anything other
// than "dynamic" or "optional" is mandatory.
func ParseResolution(s string) Resolution {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dynamic":
		return Dynamic
	case "optional":
		return Optional
	}
	return Mandatory
}

func (r Resolution) String() string {
	switch r {
	case Dynamic:
		return "dynamic"
	case Optional:
		return "optional"
	}
	return "mandatory"
}

// Requirement is a requirement as reported by the module framework: a
// namespace, an LDAP-style filter and its directives.
type Requirement struct {
	Namespace  string            `json:"namespace"`
	Filter     string            `json:"filter"`
	Directives map[string]string `json:"directives,omitempty"`
}

// ModuleRequirement is a Require-Bundle dependency.
type ModuleRequirement struct {
	Name       string              `json:"name"`
	Constraint *version.Constraint `json:"constraint,omitempty"`
	Optional   bool                `json:"optional,omitempty"`
}

// Version returns the bound of the constraint, or nil when unconstrained.
func (r ModuleRequirement) Version() *version.Version {
	if r.Constraint == nil {
		return nil
	}
	v := r.Constraint.Bound
	return &v
}

// Matches reports whether a module with the given name and version satisfies
// the requirement.
func (r ModuleRequirement) Matches(name string, v version.Version) bool {
	if !strings.EqualFold(r.Name, name) {
		return false
	}
	return r.Constraint == nil || r.Constraint.Matches(v)
}

// String renders the requirement as "name:version" or just "name".
func (r ModuleRequirement) String() string {
	if r.Constraint == nil {
		return r.Name
	}
	return r.Name + ":" + r.Constraint.Bound.String()
}

// PackageRequirement is an Import-Package dependency.
type PackageRequirement struct {
	Name        string               `json:"name"`
	Constraints []version.Constraint `json:"constraints,omitempty"`
	Resolution  Resolution           `json:"resolution,omitempty"`
}

// IsRequired reports whether the requirement is mandatory.
func (r PackageRequirement) IsRequired() bool { return r.Resolution == Mandatory }

// Accepts reports whether an export satisfies the requirement. Unversioned
// exports satisfy any constraint.
func (r PackageRequirement) Accepts(e PackageExport) bool {
	if e.Name != r.Name {
		return false
	}
	return e.Version == nil || version.MatchesAll(r.Constraints, *e.Version)
}

func (r PackageRequirement) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	for _, c := range r.Constraints {
		b.WriteString(";version ")
		b.WriteString(c.String())
	}
	return b.String()
}

// ModuleFilter builds the filter for a Require-Bundle clause. rangeText is a
// manifest version range such as "[1.0,2.0)" or a bare minimum version.
func ModuleFilter(name, rangeText string) string {
	return requirementFilter(NamespaceBundle, name, "bundle-version", rangeText)
}

// PackageFilter builds the filter for an Import-Package clause.
func PackageFilter(name, rangeText string) string {
	return requirementFilter(NamespacePackage, name, "version", rangeText)
}

func requirementFilter(ns, name, attr, rangeText string) string {
	terms := rangeTerms(attr, rangeText)
	if len(terms) == 0 {
		return "(" + ns + "=" + name + ")"
	}
	return "(&(" + ns + "=" + name + ")" + strings.Join(terms, "") + ")"
}

func rangeTerms(attr, text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	first, last := text[0], text[len(text)-1]
	if (first == '[' || first == '(') && (last == ']' || last == ')') {
		if low, high, ok := strings.Cut(text[1:len(text)-1], ","); ok {
			var terms []string
			if first == '[' {
				terms = append(terms, "("+attr+">="+normalizeBound(low)+")")
			} else {
				terms = append(terms, "(!("+attr+"<="+normalizeBound(low)+"))")
			}
			if last == ')' {
				terms = append(terms, "(!("+attr+">="+normalizeBound(high)+"))")
			} else {
				terms = append(terms, "("+attr+"<="+normalizeBound(high)+")")
			}
			return terms
		}
	}
	return []string{"(" + attr + ">=" + normalizeBound(text) + ")"}
}

func normalizeBound(s string) string {
	s = strings.TrimSpace(s)
	if v, err := version.ParseStrict(s); err == nil {
		return v.String()
	}
	return s
}

type opToken struct {
	symbol string
	op     version.Op
}

// Trial orders; the first symbol found inside a term wins.
var (
	moduleOps = []opToken{
		{"<=", version.LTE}, {">=", version.GTE}, {"=", version.EQ},
	}
	packageOps = []opToken{
		{"<=", version.LTE}, {">=", version.GTE}, {"==", version.EQ}, {"!=", version.NEQ},
		{"=", version.EQ}, {"<", version.LT}, {">", version.GT},
	}
)

// ParseModuleRequirement reads a bundle wiring filter such as
// "(&(osgi.wiring.bundle=foo)(bundle-version>=1.0.0))". Only the first
// bundle-version term is kept.
func ParseModuleRequirement(filter string) (ModuleRequirement, error) {
	name, _, err := filterName(filter, "("+NamespaceBundle)
	if err != nil {
		return ModuleRequirement{}, err
	}
	req := ModuleRequirement{Name: name}

	idx := strings.Index(filter, "(bundle-version")
	if idx == -1 {
		return req, nil
	}
	c, ok, err := parseTerm(filter, idx, len("(bundle-version"), moduleOps)
	if err != nil {
		return ModuleRequirement{}, err
	}
	if ok {
		req.Constraint = &c
	}
	return req, nil
}

// ParsePackageRequirement reads a package wiring filter and every version
// term in it. A "!" directly before a term negates it.
func ParsePackageRequirement(filter, resolution string) (PackageRequirement, error) {
	name, last, err := filterName(filter, "("+NamespacePackage)
	if err != nil {
		return PackageRequirement{}, err
	}
	req := PackageRequirement{Name: name, Resolution: ParseResolution(resolution)}

	for {
		idx := indexFrom(filter, "(version", last)
		if idx == -1 {
			break
		}
		end := indexFrom(filter, ")", idx)
		if end == -1 {
			return PackageRequirement{}, errors.New(errors.ErrCodeDescriptorParse, "unterminated version term in filter %q", filter)
		}
		c, ok, err := parseTerm(filter, idx, len("(version"), packageOps)
		if err != nil {
			return PackageRequirement{}, err
		}
		if ok {
			req.Constraints = append(req.Constraints, c)
		}
		last = end
	}
	return req, nil
}

// parseTerm reads the comparison that starts at filter[idx:]. ok is false
// when the term has no recognised operator.
func parseTerm(filter string, idx, prefixLen int, ops []opToken) (version.Constraint, bool, error) {
	end := indexFrom(filter, ")", idx)
	if end == -1 {
		return version.Constraint{}, false, errors.New(errors.ErrCodeDescriptorParse, "unterminated term in filter %q", filter)
	}
	term := filter[idx+prefixLen : end]
	for _, tok := range ops {
		pos := strings.Index(term, tok.symbol)
		if pos == -1 {
			continue
		}
		text := strings.TrimSpace(term[pos+len(tok.symbol):])
		v, err := version.ParseStrict(text)
		if err != nil {
			return version.Constraint{}, false, errors.Wrap(errors.ErrCodeDescriptorParse, err, "invalid version in filter %q", filter)
		}
		not := idx > 0 && filter[idx-1] == '!'
		return version.NewConstraint(tok.op, v, not), true, nil
	}
	return version.Constraint{}, false, nil
}

func filterName(filter, prefix string) (string, int, error) {
	idx := strings.Index(filter, prefix)
	if idx == -1 {
		return "", 0, errors.New(errors.ErrCodeDescriptorParse, "filter %q has no %s term", filter, prefix[1:])
	}
	start := indexFrom(filter, "=", idx)
	end := indexFrom(filter, ")", idx)
	if start == -1 || end == -1 || end < start {
		return "", 0, errors.New(errors.ErrCodeDescriptorParse, "malformed filter %q", filter)
	}
	name := strings.TrimSpace(filter[start+1 : end])
	if name == "" {
		return "", 0, errors.New(errors.ErrCodeDescriptorParse, "empty name in filter %q", filter)
	}
	return name, end, nil
}

func indexFrom(s, sub string, from int) int {
	if from >= len(s) {
		return -1
	}
	i := strings.Index(s[from:], sub)
	if i == -1 {
		return -1
	}
	return from + i
}
