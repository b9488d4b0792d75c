package version

import (
	"slices"
	"testing"

	"github.com/matzehuels/cfboot/pkg/errors"
)

func TestParse(t *testing.T) {
	def := New(0, 0, 0, "bla")

	tests := []struct {
		input string
		want  Version
	}{
		{"1.2.3.4", New(1, 2, 3, "4")},
		{"1.2.bla.bla", New(1, 2, 0, "bla_bla")},
		{"1.2.3", New(1, 2, 3, "")},
		{"1.2", New(1, 2, 0, "")},
		{"7", New(7, 0, 0, "")},
		{" 5 . 3 . 2 . 63-SNAPSHOT ", New(5, 3, 2, "63-SNAPSHOT")},
		{"1.2.3.4.5", New(1, 2, 3, "4_5")},
		{"5.4.29.Final", New(5, 4, 29, "Final")},
		{"", def},
		{"x.1.2", def},
		{"1.y.2", def},
		{"-1.0.0", def},
	}

	for _, tt := range tests {
		if got := Parse(tt.input, def); got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{"1.2.3.4", "1.0.0", "5.3.2.63-ALPHA", "6.0.0.346-SNAPSHOT", "0.0.0.SNAPSHOT"} {
		v, err := ParseStrict(s)
		if err != nil {
			t.Fatalf("ParseStrict(%q) error: %v", s, err)
		}
		if v.String() != s {
			t.Errorf("ParseStrict(%q).String() = %q", s, v.String())
		}
	}
}

func TestParseStrict(t *testing.T) {
	for _, s := range []string{"", "a.b.c", "1.2.bla.bla", "1.x"} {
		_, err := ParseStrict(s)
		if err == nil {
			t.Errorf("ParseStrict(%q) expected error", s)
			continue
		}
		if !errors.Is(err, errors.ErrCodeInvalidVersion) {
			t.Errorf("ParseStrict(%q) code = %v, want %v", s, errors.GetCode(err), errors.ErrCodeInvalidVersion)
		}
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse(\"bad\") did not panic")
		}
	}()
	MustParse("bad")
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"2.0.0", "1.9.9", 1},
		{"1.2.0", "1.10.0", -1},
		{"1.0.1", "1.0.0", 1},
		{"1.0.0.31", "1.0.0.SNAPSHOT", 1},
		{"1.0.0.SNAPSHOT", "1.0.0", -1},
		{"5.4.0.0-ALPHA", "5.4.0.0", -1},
		{"5.4.0.0-SNAPSHOT", "5.4.0.0-BETA", -1},
		{"5.4.0.0-BETA", "5.4.0.0-RC", -1},
		{"5.4.0.0-RC", "5.4.0.0-ALPHA", -1},
		{"5.4.0.0-rc", "5.4.0.0-RC", 0},
		{"5.3.2.63", "5.3.2.64", -1},
		{"5.3.2.100-SNAPSHOT", "5.3.2.99", 1},
		{"1.0.0.0-ALPHA", "1.0.0.0-GAMMA", -1},
		{"1.0.0", "1.0.0.5", -1},
	}

	for _, tt := range tests {
		a, b := MustParse(tt.a), MustParse(tt.b)
		if got := Compare(a, b); got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := Compare(b, a); got != -tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.b, tt.a, got, -tt.want)
		}
	}
}

func TestNewest(t *testing.T) {
	vs := []Version{MustParse("1.0.0"), MustParse("1.0.0.SNAPSHOT"), MustParse("1.2.0.RC"), MustParse("1.1.9")}
	got, ok := Newest(vs)
	if !ok || got != MustParse("1.2.0.RC") {
		t.Errorf("Newest() = %v, %v; want 1.2.0.RC", got, ok)
	}
	if _, ok := Newest(nil); ok {
		t.Error("Newest(nil) ok = true, want false")
	}
}

func TestRangeIncludes(t *testing.T) {
	tests := []struct {
		rng, v string
		want   bool
	}{
		{"5.3.2.63-ALPHA", "6.0.0.1", true},
		{"5.3.2.63-ALPHA", "1.0.0.1", false},
		{"5.3.2.63,5.4.0.0", "5.3.2.64", true},
		{"5.3.2.63,5.4.0.0-SNAPSHOT", "5.4.0.0-ALPHA", true},
		{"5.3.2.63-SNAPSHOT,6.0.0.0-SNAPSHOT", "5.4.0.1", true},
		{"5.3.2.63,0.0.0.SNAPSHOT", "6.0.0.346-SNAPSHOT", false},
		{"5.3.2.63-ALPHA,5.40.0.0", "5.40.1.0", false},
		{"1.0.0,2.0.0", "2.0.0", false},
		{"1.0.0,2.0.0", "1.0.0", true},
	}

	for _, tt := range tests {
		r, err := ParseRange(tt.rng)
		if err != nil {
			t.Fatalf("ParseRange(%q) error: %v", tt.rng, err)
		}
		if got := r.Includes(MustParse(tt.v)); got != tt.want {
			t.Errorf("ParseRange(%q).Includes(%s) = %v, want %v", tt.rng, tt.v, got, tt.want)
		}
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("1.0.0")
	if err != nil {
		t.Fatalf("ParseRange() error: %v", err)
	}
	if r.Upper != nil {
		t.Errorf("Upper = %v, want nil", r.Upper)
	}
	if r.String() != "1.0.0" {
		t.Errorf("String() = %q, want %q", r.String(), "1.0.0")
	}

	r, err = ParseRange("1.0.0,2.0.0.RC")
	if err != nil {
		t.Fatalf("ParseRange() error: %v", err)
	}
	if r.String() != "1.0.0,2.0.0.RC" {
		t.Errorf("String() = %q", r.String())
	}

	for _, bad := range []string{"", "x", "1.0.0,", "1.0.0,y"} {
		if _, err := ParseRange(bad); !errors.Is(err, errors.ErrCodeInvalidVersion) {
			t.Errorf("ParseRange(%q) error = %v, want INVALID_VERSION", bad, err)
		}
	}
}

func TestOpNegate(t *testing.T) {
	pairs := [][2]Op{{LTE, GT}, {LT, GTE}, {GTE, LT}, {GT, LTE}, {EQ, NEQ}, {NEQ, EQ}}
	for _, p := range pairs {
		if got := p[0].Negate(); got != p[1] {
			t.Errorf("%s.Negate() = %s, want %s", p[0].Name(), got.Name(), p[1].Name())
		}
	}
}

func TestConstraintMatches(t *testing.T) {
	tests := []struct {
		c    Constraint
		v    string
		want bool
	}{
		{NewConstraint(GTE, MustParse("3.3.0"), false), "3.3.0.Final", true},
		{NewConstraint(GTE, MustParse("3.3.0"), false), "3.2.9", false},
		{NewConstraint(GTE, MustParse("4.0.0"), true), "3.9.9", true},
		{NewConstraint(GTE, MustParse("4.0.0"), true), "4.0.0", false},
		{NewConstraint(EQ, MustParse("1.0.0"), false), "1.0.0", true},
		{NewConstraint(EQ, MustParse("1.0.0"), false), "1.0.0.0", false},
		{NewConstraint(NEQ, MustParse("1.0.0"), false), "1.0.1", true},
		{NewConstraint(LT, MustParse("2.0.0"), false), "1.99.0", true},
		{NewConstraint(LTE, MustParse("2.0.0"), false), "2.0.0", true},
		{NewConstraint(GT, MustParse("2.0.0"), false), "2.0.0", false},
	}

	for _, tt := range tests {
		if got := tt.c.Matches(MustParse(tt.v)); got != tt.want {
			t.Errorf("(%s).Matches(%s) = %v, want %v", tt.c, tt.v, got, tt.want)
		}
	}
}

func TestMatchesAll(t *testing.T) {
	cs := []Constraint{
		NewConstraint(GTE, MustParse("3.3.0"), false),
		NewConstraint(GTE, MustParse("4.0.0"), true),
	}
	var got []string
	for _, s := range []string{"3.2.0", "3.3.0", "3.4.1.Final", "4.0.0"} {
		if MatchesAll(cs, MustParse(s)) {
			got = append(got, s)
		}
	}
	if want := []string{"3.3.0", "3.4.1.Final"}; !slices.Equal(got, want) {
		t.Errorf("MatchesAll() kept %v, want %v", got, want)
	}
	if !MatchesAll(nil, MustParse("9.9.9")) {
		t.Error("MatchesAll(nil) = false, want true")
	}
}
