package framework

import "strings"

// BootDelegation lists packages the host provides to every module. An entry
// "a.b" matches that package, "a.b.*" matches it and its subpackages, and
// "*" matches everything. Packages below "java." are always delegated.
type BootDelegation []string

// DefaultBootDelegation returns the default list plus extra entries.
func DefaultBootDelegation(extra ...string) BootDelegation {
	return append(BootDelegation{"java.lang", "java.lang.*"}, extra...)
}

// Covers reports whether pkg is provided by the host.
func (b BootDelegation) Covers(pkg string) bool {
	if strings.HasPrefix(pkg, "java.") {
		return true
	}
	for _, entry := range b {
		switch {
		case entry == "*":
			return true
		case strings.HasSuffix(entry, ".*"):
			prefix := strings.TrimSuffix(entry, ".*")
			if pkg == prefix || strings.HasPrefix(pkg, prefix+".") {
				return true
			}
		case entry == pkg:
			return true
		}
	}
	return false
}
