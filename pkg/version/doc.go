// Package version parses, orders and range-matches module versions.
//
// A [Version] has three numeric components and an optional free-text
// qualifier: "5.3.2.63-SNAPSHOT" is major 5, minor 3, micro 2 and qualifier
// "63-SNAPSHOT". Versions are plain values and never change after parsing.
//
// # Parsing
//
// [Parse] is lenient and falls back to a caller supplied default, while
// [ParseStrict] reports an INVALID_VERSION error:
//
//	v := version.Parse(text, version.Version{})
//	v, err := version.ParseStrict(text)
//
// # Ordering
//
// [Compare] implements the update-channel ordering used when picking the
// newest candidate and when checking ranges. After the numeric triple, the
// qualifier is split into a numeric build part and an appendix, and the
// appendix is ranked:
//
//	SNAPSHOT < BETA < RC < other text < no appendix (stable)
//
// so "1.0.0.31" is newer than "1.0.0.SNAPSHOT", and "5.4.0.0-ALPHA" sorts
// below "5.4.0.0".
//
// [Constraint] follows the ordering of the module framework instead: the
// numeric triple, then a plain string comparison of the qualifiers. This is
// what requirement filters such as "(version>=3.3.0)" are evaluated with.
//
// # Ranges
//
// [ParseRange] accepts "low" (unbounded above) and "low,high" (closed-open):
//
//	r, _ := version.ParseRange("5.3.2.63,5.4.0.0-SNAPSHOT")
//	r.Includes(version.MustParse("5.4.0.0-ALPHA")) // true
package version
