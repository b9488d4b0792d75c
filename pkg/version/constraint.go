package version

import "fmt"

// Op is a comparison operator of a requirement filter term.
type Op int

const (
	EQ Op = iota + 1
	NEQ
	LT
	LTE
	GT
	GTE
)

// String returns the operator symbol.
func (o Op) String() string {
	switch o {
	case EQ:
		return "=="
	case NEQ:
		return "!="
	case LT:
		return "<"
	case LTE:
		return "<="
	case GT:
		return ">"
	case GTE:
		return ">="
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Name returns the operator mnemonic (EQ, LTE, ...).
func (o Op) Name() string {
	switch o {
	case EQ:
		return "EQ"
	case NEQ:
		return "NEQ"
	case LT:
		return "LT"
	case LTE:
		return "LTE"
	case GT:
		return "GT"
	case GTE:
		return "GTE"
	}
	return ""
}

// Negate returns the complementary operator: !(v >= x) is v < x.
func (o Op) Negate() Op {
	switch o {
	case LTE:
		return GT
	case LT:
		return GTE
	case GTE:
		return LT
	case GT:
		return LTE
	case EQ:
		return NEQ
	case NEQ:
		return EQ
	}
	return o
}

// Constraint is a single version comparison such as ">= 3.3.0".
type Constraint struct {
	Op    Op
	Bound Version
}

// NewConstraint builds a constraint, flipping the operator when not is set.
func NewConstraint(op Op, bound Version, not bool) Constraint {
	if not {
		op = op.Negate()
	}
	return Constraint{Op: op, Bound: bound}
}

// Matches reports whether v satisfies the constraint.
func (c Constraint) Matches(v Version) bool {
	switch c.Op {
	case EQ:
		return v.Equal(c.Bound)
	case NEQ:
		return !v.Equal(c.Bound)
	case LT:
		return compareStandard(v, c.Bound) < 0
	case LTE:
		return compareStandard(v, c.Bound) <= 0
	case GT:
		return compareStandard(v, c.Bound) > 0
	case GTE:
		return compareStandard(v, c.Bound) >= 0
	}
	return false
}

func (c Constraint) String() string {
	return c.Op.String() + " " + c.Bound.String()
}

// MatchesAll reports whether v satisfies every constraint in cs. An empty list
// matches any version.
func MatchesAll(cs []Constraint, v Version) bool {
	for _, c := range cs {
		if !c.Matches(v) {
			return false
		}
	}
	return true
}
