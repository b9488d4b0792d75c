package version

import (
	"strings"

	"github.com/matzehuels/cfboot/pkg/errors"
)

// Range is a closed-open version interval [Lower, Upper). A nil Upper means
// the range is unbounded above.
type Range struct {
	Lower Version
	Upper *Version
}

// ParseRange parses "low" or "low,high".
func ParseRange(text string) (Range, error) {
	low, high, bounded := strings.Cut(text, ",")
	lower, err := ParseStrict(low)
	if err != nil {
		return Range{}, errors.Wrap(errors.ErrCodeInvalidVersion, err, "invalid version range [%s]", text)
	}
	r := Range{Lower: lower}
	if !bounded {
		return r, nil
	}
	upper, err := ParseStrict(high)
	if err != nil {
		return Range{}, errors.Wrap(errors.ErrCodeInvalidVersion, err, "invalid version range [%s]", text)
	}
	r.Upper = &upper
	return r, nil
}

// Includes reports whether v lies within the range.
//
// A SNAPSHOT upper bound excludes only what reaches its released
// counterpart, so [5.3.2.63, 5.4.0.0-SNAPSHOT) includes 5.4.0.0-ALPHA.
func (r Range) Includes(v Version) bool {
	if Compare(r.Lower, v) > 0 {
		return false
	}
	if r.Upper == nil {
		return true
	}
	return Compare(v, withoutSnapshot(*r.Upper)) < 0
}

// String renders the range in the form accepted by ParseRange.
func (r Range) String() string {
	if r.Upper == nil {
		return r.Lower.String()
	}
	return r.Lower.String() + "," + r.Upper.String()
}
