// Package query turns search requests into store-independent predicates.
//
// Go Pattern: A small tagged-variant AST. Instead of concatenating SQL
// strings while reading HTTP parameters, the request is first translated
// into a Predicate tree. Each store backend then compiles (Postgres) or
// evaluates (in-memory) the same tree, so the translation rules can be unit
// tested without any database.
package query

import (
	"time"
)

// Op identifies the kind of a Predicate node.
type Op int

const (
	OpAll          Op = iota // matches every record
	OpEq                     // Field == Value
	OpNe                     // Field != Value (null fields never match)
	OpContains               // case-sensitive substring
	OpContainsFold           // case-insensitive substring
	OpRange                  // From <= Field < To (time fields)
	OpIn                     // Field is one of Values
	OpNotNull                // Field is present
	OpAnd
	OpOr
)

func (o Op) String() string {
	switch o {
	case OpAll:
		return "all"
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpContains:
		return "contains"
	case OpContainsFold:
		return "icontains"
	case OpRange:
		return "range"
	case OpIn:
		return "in"
	case OpNotNull:
		return "notnull"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	}
	return "unknown"
}

// Field names a filterable attribute of a video.
type Field string

const (
	FieldID          Field = "id"
	FieldTitle       Field = "title"
	FieldChannelID   Field = "channel_id"
	FieldStatus      Field = "status"
	FieldTopicID     Field = "topic_id"
	FieldAvailableAt Field = "available_at"
	FieldRaw         Field = "raw" // the full serialized upstream payload
)

// Predicate is one node of a filter expression.
//
// Leaf nodes use Field plus Value, Values or From/To depending on Op.
// And/Or nodes only use Children. The zero value matches everything.
type Predicate struct {
	Op       Op
	Field    Field
	Value    string
	Values   []string
	From     time.Time
	To       time.Time
	Children []Predicate
}

// All returns the pass-through predicate.
func All() Predicate { return Predicate{Op: OpAll} }

// Eq matches an exact field value.
func Eq(f Field, v string) Predicate { return Predicate{Op: OpEq, Field: f, Value: v} }

// Ne matches records whose field is present and differs from v.
func Ne(f Field, v string) Predicate { return Predicate{Op: OpNe, Field: f, Value: v} }

// Contains matches a case-sensitive substring.
func Contains(f Field, v string) Predicate { return Predicate{Op: OpContains, Field: f, Value: v} }

// ContainsFold matches a case-insensitive substring.
func ContainsFold(f Field, v string) Predicate {
	return Predicate{Op: OpContainsFold, Field: f, Value: v}
}

// Range matches a half-open time interval [from, to).
func Range(f Field, from, to time.Time) Predicate {
	return Predicate{Op: OpRange, Field: f, From: from.UTC(), To: to.UTC()}
}

// In matches any of the listed values.
func In(f Field, values ...string) Predicate {
	return Predicate{Op: OpIn, Field: f, Values: append([]string(nil), values...)}
}

// NotNull matches records where the field is set.
func NotNull(f Field) Predicate { return Predicate{Op: OpNotNull, Field: f} }

// And is the conjunction of its arguments. Pass-through children are
// dropped and single-child conjunctions collapse to the child.
func And(ps ...Predicate) Predicate { return combine(OpAnd, ps) }

// Or is the disjunction of its arguments. A pass-through child makes the
// whole disjunction pass-through.
func Or(ps ...Predicate) Predicate {
	for _, p := range ps {
		if p.IsAll() {
			return All()
		}
	}
	return combine(OpOr, ps)
}

func combine(op Op, ps []Predicate) Predicate {
	children := make([]Predicate, 0, len(ps))
	for _, p := range ps {
		if p.IsAll() {
			continue
		}
		children = append(children, p)
	}
	switch len(children) {
	case 0:
		return All()
	case 1:
		return children[0]
	}
	return Predicate{Op: op, Children: children}
}

// IsAll reports whether p matches every record.
func (p Predicate) IsAll() bool { return p.Op == OpAll }
