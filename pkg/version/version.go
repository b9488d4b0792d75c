package version

import (
	"strconv"
	"strings"

	"github.com/matzehuels/cfboot/pkg/errors"
)

// Version is a parsed module version. The zero value is "0.0.0".
type Version struct {
	Major     int
	Minor     int
	Micro     int
	Qualifier string // empty when absent
}

// New returns a version with the given components.
func New(major, minor, micro int, qualifier string) Version {
	return Version{Major: major, Minor: minor, Micro: micro, Qualifier: qualifier}
}

// String renders the version as "major.minor.micro[.qualifier]".
func (v Version) String() string {
	s := strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor) + "." + strconv.Itoa(v.Micro)
	if v.Qualifier != "" {
		s += "." + v.Qualifier
	}
	return s
}

// Equal reports whether both versions are literally identical, qualifier
// included.
func (v Version) Equal(o Version) bool { return v == o }

// IsZero reports whether v is "0.0.0" without qualifier.
func (v Version) IsZero() bool { return v == Version{} }

// NewerThan reports whether v sorts after o under [Compare].
func (v Version) NewerThan(o Version) bool { return Compare(v, o) > 0 }

// Parse parses text leniently.
//
// Missing components default to zero. A non-numeric major or minor makes the
// whole text invalid and def is returned. A non-numeric micro is read as 0 and
// the remaining tokens become the qualifier, joined with "_", so
// "1.2.bla.bla" parses as 1.2.0.bla_bla. Empty text returns def.
func Parse(text string, def Version) Version {
	v, ok := parse(text, true)
	if !ok {
		return def
	}
	return v
}

// ParseStrict parses text and returns an INVALID_VERSION error when any of the
// numeric components is missing or malformed.
func ParseStrict(text string) (Version, error) {
	v, ok := parse(text, false)
	if !ok {
		return Version{}, errors.New(errors.ErrCodeInvalidVersion,
			"Given version [%s] is invalid, a valid version is following this pattern <major-number>.<minor-number>.<micro-number>[.<qualifier>]", text)
	}
	return v, nil
}

// MustParse is like ParseStrict but panics on error. Intended for constants
// and tests.
func MustParse(text string) Version {
	v, err := ParseStrict(text)
	if err != nil {
		panic(err)
	}
	return v
}

func parse(text string, lenientMicro bool) (Version, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Version{}, false
	}
	tokens := strings.Split(text, ".")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}

	var v Version
	var ok bool
	if v.Major, ok = component(tokens[0]); !ok {
		return Version{}, false
	}
	if len(tokens) > 1 {
		if v.Minor, ok = component(tokens[1]); !ok {
			return Version{}, false
		}
	}
	if len(tokens) > 2 {
		if v.Micro, ok = component(tokens[2]); !ok {
			if !lenientMicro {
				return Version{}, false
			}
			v.Micro = 0
			v.Qualifier = strings.Join(tokens[2:], "_")
			return v, true
		}
	}
	if len(tokens) > 3 {
		v.Qualifier = strings.Join(tokens[3:], "_")
	}
	return v, true
}

func component(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
