package version

import (
	"cmp"
	"math"
	"strconv"
	"strings"
)

// Appendix classes in ascending order of precedence.
const (
	appendixSnapshot = iota + 1
	appendixBeta
	appendixRC
	appendixOther
	appendixStable
)

// Compare returns -1, 0 or 1 depending on whether a sorts before, equal to or
// after b in update-channel order. See the package documentation for the
// qualifier rules.
func Compare(a, b Version) int {
	if c := compareTriple(a, b); c != 0 {
		return c
	}

	an, aa := splitQualifier(a.Qualifier)
	bn, ba := splitQualifier(b.Qualifier)
	if c := cmp.Compare(an, bn); c != 0 {
		return c
	}

	ac, bc := appendixClass(aa), appendixClass(ba)
	if c := cmp.Compare(ac, bc); c != 0 {
		return c
	}
	if ac == appendixOther {
		return strings.Compare(a.Qualifier, b.Qualifier)
	}
	return 0
}

// compareStandard orders by the numeric triple and then by the plain string
// value of the qualifier.
func compareStandard(a, b Version) int {
	if c := compareTriple(a, b); c != 0 {
		return c
	}
	return strings.Compare(a.Qualifier, b.Qualifier)
}

func compareTriple(a, b Version) int {
	if c := cmp.Compare(a.Major, b.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Minor, b.Minor); c != 0 {
		return c
	}
	return cmp.Compare(a.Micro, b.Micro)
}

// splitQualifier separates a qualifier into its numeric build part and its
// appendix. An empty build part sorts lowest, a non-numeric one highest.
func splitQualifier(q string) (int, string) {
	if i := strings.IndexByte(q, '-'); i >= 0 {
		return buildNumber(q[:i]), strings.TrimSpace(q[i+1:])
	}
	if q == "" {
		return math.MinInt, ""
	}
	if n, err := strconv.Atoi(strings.TrimSpace(q)); err == nil {
		return n, ""
	}
	return math.MinInt, q
}

func buildNumber(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.MinInt
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return math.MaxInt
	}
	return n
}

func appendixClass(s string) int {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return appendixStable
	case strings.EqualFold(s, "SNAPSHOT"):
		return appendixSnapshot
	case strings.EqualFold(s, "BETA"):
		return appendixBeta
	case strings.EqualFold(s, "RC"):
		return appendixRC
	}
	return appendixOther
}

// withoutSnapshot drops a SNAPSHOT appendix, turning "5.4.0.0-SNAPSHOT" into
// "5.4.0.0" and "1.0.0.SNAPSHOT" into "1.0.0".
func withoutSnapshot(v Version) Version {
	_, appendix := splitQualifier(v.Qualifier)
	if appendixClass(appendix) != appendixSnapshot {
		return v
	}
	if i := strings.IndexByte(v.Qualifier, '-'); i >= 0 {
		v.Qualifier = v.Qualifier[:i]
	} else {
		v.Qualifier = ""
	}
	return v
}

// Newest returns the newest version in vs and false when vs is empty.
func Newest(vs []Version) (Version, bool) {
	if len(vs) == 0 {
		return Version{}, false
	}
	best := vs[0]
	for _, v := range vs[1:] {
		if Compare(v, best) > 0 {
			best = v
		}
	}
	return best, true
}
