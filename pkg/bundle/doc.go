// Package bundle reads module metadata from jar files.
//
// A module ("bundle") is a jar whose META-INF/MANIFEST.MF carries at least a
// Bundle-SymbolicName header. [ReadFile] turns such a jar into a [Descriptor]
// holding the symbolic name, version, exported packages, required modules,
// required packages and the fragment host.
//
// # Requirements
//
// Requirements travel as LDAP-style filters, the same form the module
// framework reports them in:
//
//	(&(osgi.wiring.package=org.jboss.logging)(version>=3.3.0)(!(version>=4.0.0)))
//
// [PackageFilter] and [ModuleFilter] build such filters from manifest
// clauses; [ParsePackageRequirement] and [ParseModuleRequirement] read them
// back into typed requirements. A fragment that cannot be parsed yields a
// DESCRIPTOR_PARSE error for that single entry; callers skip it and continue.
package bundle
