// Package resolver turns module requests into started modules.
//
// # Resolution
//
// [Resolver.Resolve] tries, in order:
//
//  1. a module already installed in the framework
//  2. a matching jar in the local [store.Store]
//  3. a download from the update provider through [fetch.Fetcher]
//
// and then installs and, when asked, starts the module. The outcome is a
// tagged [Result]: Resolved, PartiallyResolved (installed but not started,
// with the unmet requirements) or Failed.
//
// # Start recovery
//
// When the framework refuses to start a module, its required modules are
// resolved recursively. Modules that only install get a second chance once
// all siblings were attempted, because a later sibling may provide what an
// earlier one missed. The start is retried, then required packages are
// resolved through local exporters or a small fallback table, and the start
// is retried once more.
//
// A [Visiting] set scoped to the top-level call prevents a module from
// recovering its own start twice, which keeps cyclic requirements finite.
//
// # Class sources
//
// [Classes] models class lookup as an ordered list of [ClassSource]s: the
// core module, every active module, then local jars that are not installed.
package resolver
