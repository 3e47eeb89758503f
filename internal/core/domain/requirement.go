package domain

import (
	"regexp"
	"strings"

	"go.trai.ch/zerr"
)

// Operator is a comparison operator of a requirement clause.
type Operator string

const (
	OpEqual       Operator = "="
	OpNotEqual    Operator = "!="
	OpGreater     Operator = ">"
	OpLess        Operator = "<"
	OpGreaterOrEq Operator = ">="
	OpLessOrEq    Operator = "<="
	// OpPessimistic is the "compatible with" operator: "~> 1.2" admits 1.2 <= v < 2.
	OpPessimistic Operator = "~>"
)

// operatorRank orders operators the way the compatibility table is keyed.
var operatorRank = map[Operator]int{
	OpEqual:       0,
	OpNotEqual:    1,
	OpGreater:     2,
	OpLess:        3,
	OpGreaterOrEq: 4,
	OpLessOrEq:    5,
	OpPessimistic: 6,
}

var clausePattern = regexp.MustCompile(`^\s*(~>|>=|<=|!=|=|>|<)?\s*(\S+)\s*$`)

// Clause is a single "<op> <version>" predicate.
type Clause struct {
	Op      Operator
	Version Version
}

// String renders the clause as "<op> <version>".
func (c Clause) String() string {
	return string(c.Op) + " " + c.Version.String()
}

func (c Clause) satisfiedBy(v Version) bool {
	cmp := v.Compare(c.Version)
	switch c.Op {
	case OpEqual:
		return cmp == 0
	case OpNotEqual:
		return cmp != 0
	case OpGreater:
		return cmp > 0
	case OpLess:
		return cmp < 0
	case OpGreaterOrEq:
		return cmp >= 0
	case OpLessOrEq:
		return cmp <= 0
	case OpPessimistic:
		return cmp >= 0 && v.release().Compare(c.Version.bump()) < 0
	}
	return false
}

// compatible reports whether some version could satisfy both clauses.
func compatible(a, b Clause) bool {
	if operatorRank[a.Op] > operatorRank[b.Op] {
		a, b = b, a
	}
	s, o := a.Version, b.Version
	switch a.Op {
	case OpEqual:
		return b.satisfiedBy(s)
	case OpNotEqual:
		return true
	case OpGreater:
		switch b.Op {
		case OpLess, OpLessOrEq:
			return s.Compare(o) < 0
		case OpPessimistic:
			return s.Compare(o.bump()) < 0
		}
		return true
	case OpLess:
		switch b.Op {
		case OpGreaterOrEq, OpPessimistic:
			return s.Compare(o) > 0
		}
		return true
	case OpGreaterOrEq:
		switch b.Op {
		case OpLessOrEq:
			return s.Compare(o) <= 0
		case OpPessimistic:
			return s.Compare(o.bump()) < 0
		}
		return true
	case OpLessOrEq:
		if b.Op == OpPessimistic {
			return s.Compare(o) >= 0
		}
		return true
	case OpPessimistic:
		return s.Compare(o.bump()) < 0 && s.bump().Compare(o) > 0
	}
	return false
}

// Requirement is an immutable predicate over versions built from one or more clauses.
// The zero Requirement is unconstrained.
type Requirement struct {
	clauses []Clause
}

var anyVersion = Clause{Op: OpGreaterOrEq, Version: MustParseVersion("0")}

// ParseRequirement builds a Requirement from clause expressions. Each expression may itself hold
// several comma-separated clauses. A bare version means "=". No clauses at all means ">= 0".
func ParseRequirement(exprs ...string) (Requirement, error) {
	var clauses []Clause
	for _, expr := range exprs {
		for part := range strings.SplitSeq(expr, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			c, err := parseClause(part)
			if err != nil {
				return Requirement{}, err
			}
			if !containsClause(clauses, c) {
				clauses = append(clauses, c)
			}
		}
	}
	return Requirement{clauses: clauses}, nil
}

// MustParseRequirement is like ParseRequirement but panics on error.
func MustParseRequirement(exprs ...string) Requirement {
	r, err := ParseRequirement(exprs...)
	if err != nil {
		panic(err)
	}
	return r
}

func parseClause(text string) (Clause, error) {
	m := clausePattern.FindStringSubmatch(text)
	if m == nil {
		return Clause{}, zerr.With(zerr.Wrap(ErrInvalidRequirement, "unrecognized clause"), "clause", text)
	}
	op := Operator(m[1])
	if op == "" {
		op = OpEqual
	}
	v, err := ParseVersion(m[2])
	if err != nil {
		return Clause{}, zerr.With(zerr.Wrap(ErrInvalidRequirement, err.Error()), "clause", text)
	}
	return Clause{Op: op, Version: v}, nil
}

func containsClause(clauses []Clause, c Clause) bool {
	for _, e := range clauses {
		if e.Op == c.Op && e.Version.String() == c.Version.String() {
			return true
		}
	}
	return false
}

// Clauses returns the clauses of r. An unconstrained requirement has the single clause ">= 0".
func (r Requirement) Clauses() []Clause {
	if len(r.clauses) == 0 {
		return []Clause{anyVersion}
	}
	out := make([]Clause, len(r.clauses))
	copy(out, r.clauses)
	return out
}

// Unconstrained reports whether r admits every version.
func (r Requirement) Unconstrained() bool {
	if len(r.clauses) == 0 {
		return true
	}
	return len(r.clauses) == 1 && r.clauses[0].Op == anyVersion.Op &&
		r.clauses[0].Version.Compare(anyVersion.Version) == 0
}

// SatisfiedBy reports whether v satisfies every clause of r.
func (r Requirement) SatisfiedBy(v Version) bool {
	for _, c := range r.clauses {
		if !c.satisfiedBy(v) {
			return false
		}
	}
	return true
}

// ConsistentWith reports, without enumerating versions, whether some version could satisfy both
// r and other. Clauses are compared pairwise.
func (r Requirement) ConsistentWith(other Requirement) bool {
	for _, a := range r.Clauses() {
		for _, b := range other.Clauses() {
			if !compatible(a, b) {
				return false
			}
		}
	}
	return true
}

// Equal reports whether r and other render identically.
func (r Requirement) Equal(other Requirement) bool {
	return r.String() == other.String()
}

// String renders the clauses joined by ", ".
func (r Requirement) String() string {
	clauses := r.Clauses()
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}
