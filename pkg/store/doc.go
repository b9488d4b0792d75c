// Package store finds module jars in local directories.
//
// A [Store] observes a primary bundle directory plus optional extra
// directories or files. It never creates module files itself; deployment and
// the fetch package put them there.
//
// Lookups for a specific version try progressively more expensive strategies
// and stop at the first jar whose manifest confirms both the symbolic name
// (case-insensitive) and the exact version:
//
//  1. three canonical file names: name-1.2.3.jar, name-1-2-3.jar and
//     name-with-dashes-1-2-3.jar
//  2. seven case-insensitive variants swapping "." and "-" in the name and
//     the version independently, matched against the directory listing
//  3. a manifest scan of every jar, collecting the versions that were found
//     for the name
//
// Without a version the newest jar whose file name starts with the name wins,
// falling back to the manifest scan.
//
// Parsed descriptors are memoized by path, size and modification time and
// can additionally be persisted in a [cache.Cache].
package store
