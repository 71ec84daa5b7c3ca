package gamedb

import (
	"fmt"
	"strings"
)

// Field names an Object column that predicates may test.
type Field int

const (
	FieldID Field = iota
	FieldType
	FieldName
	FieldLocation
	FieldTarget
	FieldOwner
	FieldKey
	FieldPassword
)

func (f Field) String() string {
	switch f {
	case FieldID:
		return "id"
	case FieldType:
		return "type"
	case FieldName:
		return "name"
	case FieldLocation:
		return "locationId"
	case FieldTarget:
		return "targetId"
	case FieldOwner:
		return "ownerId"
	case FieldKey:
		return "keyId"
	case FieldPassword:
		return "password"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Op is a clause comparison.
type Op int

const (
	OpEq   Op = iota // equality
	OpNe             // inequality
	OpLike           // case-insensitive substring, names only
)

// Clause is one field test. Value is a DBRef for reference fields, an
// ObjectType for FieldType and a string for FieldName/FieldPassword.
type Clause struct {
	Field Field
	Op    Op
	Value any
}

// Predicate is an AND of All, further ANDed with the OR of Any when Any is
// non-empty. That is the whole algebra stores must support.
type Predicate struct {
	All []Clause
	Any []Clause
}

func Eq(f Field, v any) Clause   { return Clause{Field: f, Op: OpEq, Value: v} }
func Ne(f Field, v any) Clause   { return Clause{Field: f, Op: OpNe, Value: v} }
func Like(f Field, v any) Clause { return Clause{Field: f, Op: OpLike, Value: v} }

// Where builds a conjunction.
func Where(clauses ...Clause) Predicate {
	return Predicate{All: clauses}
}

// Or attaches a one-level disjunction to the predicate.
func (p Predicate) Or(clauses ...Clause) Predicate {
	p.Any = append(append([]Clause(nil), p.Any...), clauses...)
	return p
}

// And appends further conjuncts.
func (p Predicate) And(clauses ...Clause) Predicate {
	p.All = append(append([]Clause(nil), p.All...), clauses...)
	return p
}

// ByID matches exactly one object id.
func ByID(ref DBRef) Predicate {
	return Where(Eq(FieldID, ref))
}

// Match evaluates the predicate against an object in memory.
func (p Predicate) Match(o *Object) bool {
	for _, c := range p.All {
		if !c.Match(o) {
			return false
		}
	}
	if len(p.Any) == 0 {
		return true
	}
	for _, c := range p.Any {
		if c.Match(o) {
			return true
		}
	}
	return false
}

// Match evaluates a single clause.
func (c Clause) Match(o *Object) bool {
	switch c.Op {
	case OpEq:
		return c.equal(o)
	case OpNe:
		return !c.equal(o)
	case OpLike:
		s, ok := c.Value.(string)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(c.text(o)), strings.ToLower(s))
	}
	return false
}

func (c Clause) equal(o *Object) bool {
	switch c.Field {
	case FieldType:
		t, ok := c.Value.(ObjectType)
		return ok && o.Type == t
	case FieldName, FieldPassword:
		s, ok := c.Value.(string)
		return ok && c.text(o) == s
	default:
		r, ok := c.Value.(DBRef)
		return ok && c.ref(o) == r
	}
}

func (c Clause) text(o *Object) string {
	switch c.Field {
	case FieldName:
		return o.Name
	case FieldPassword:
		return o.Password
	}
	return ""
}

func (c Clause) ref(o *Object) DBRef {
	switch c.Field {
	case FieldID:
		return o.ID
	case FieldLocation:
		return o.Location
	case FieldTarget:
		return o.Target
	case FieldOwner:
		return o.Owner
	case FieldKey:
		return o.Key
	}
	return Nothing
}

func (c Clause) String() string {
	op := "="
	switch c.Op {
	case OpNe:
		op = "!="
	case OpLike:
		op = "LIKE"
	}
	return fmt.Sprintf("%s %s %v", c.Field, op, c.Value)
}
