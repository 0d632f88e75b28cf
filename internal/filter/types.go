package filter

import (
	"time"

	"github.com/paulmach/orb"
)

// Predicate is a node of a filter tree.
//
// This is a sealed interface - only types in this package implement it.
// The compiler switches over every node type and rejects anything else, so
// a new node kind cannot be added without the compiler handling it.
//
// Predicate types:
//   - Ids: document identifier set
//   - IsNull: property has no value
//   - Compare, Between, Like: attribute tests against literals
//   - Spatial: geometry relation against a geometry literal
//   - Temporal: time relation against an instant or period literal
//   - And, Or, Not: logical combinators
//   - Include, Exclude: match everything / nothing
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Expr is an operand of a comparison or temporal relation.
//
// Operands may appear in either order; "5 < x" is as valid as "x > 5".
type Expr interface {
	exprNode()
}

// Property names a document attribute.
type Property struct {
	Name string
}

// Literal is a constant operand.
//
// Value is one of: string, bool, int, int32, int64, float32, float64,
// time.Time, Instant, Period, or an orb.Geometry.
type Literal struct {
	Value any
}

// Instant is a single point in time.
type Instant struct {
	Time time.Time
}

// Period is a closed time interval.
type Period struct {
	Begin time.Time
	End   time.Time
}

// Ids matches documents whose identifier is in Values.
type Ids struct {
	Values []string
}

// IsNull matches documents with no value for Property.
type IsNull struct {
	Property string
}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEqual          CompareOp = "="
	OpNotEqual       CompareOp = "<>"
	OpLess           CompareOp = "<"
	OpLessOrEqual    CompareOp = "<="
	OpGreater        CompareOp = ">"
	OpGreaterOrEqual CompareOp = ">="
)

// Flip returns the operator that holds with the operands swapped.
func (op CompareOp) Flip() CompareOp {
	switch op {
	case OpLess:
		return OpGreater
	case OpLessOrEqual:
		return OpGreaterOrEqual
	case OpGreater:
		return OpLess
	case OpGreaterOrEqual:
		return OpLessOrEqual
	}
	return op
}

// Compare is a binary comparison. IgnoreCase requests case-insensitive
// string matching.
type Compare struct {
	Op         CompareOp
	Left       Expr
	Right      Expr
	IgnoreCase bool
}

// Between matches Lower <= Property <= Upper.
type Between struct {
	Property string
	Lower    any
	Upper    any
}

// Like is a pattern match.
//
// Zero metacharacters take the defaults '*' (Wildcard), '?' (SingleChar)
// and '\' (Escape). Decode fills in the CQL2 metacharacters '%' and '_'
// unless the document names its own.
type Like struct {
	Property   string
	Pattern    string
	Wildcard   rune
	SingleChar rune
	Escape     rune
	IgnoreCase bool
}

// SpatialOp is a spatial relation.
type SpatialOp string

const (
	SpatialBBox       SpatialOp = "bbox"
	SpatialIntersects SpatialOp = "intersects"
	SpatialDWithin    SpatialOp = "dwithin"
	SpatialBeyond     SpatialOp = "beyond"
	SpatialWithin     SpatialOp = "within"
	SpatialContains   SpatialOp = "contains"
	SpatialDisjoint   SpatialOp = "disjoint"
	SpatialCrosses    SpatialOp = "crosses"
	SpatialOverlaps   SpatialOp = "overlaps"
	SpatialTouches    SpatialOp = "touches"
	SpatialEquals     SpatialOp = "equals"
)

// Spatial relates a geometry property to a geometry literal:
// Property <Op> Geometry.
//
// Distance and Units apply to dwithin and beyond only. An empty Property
// means the layer's default geometry attribute.
type Spatial struct {
	Op       SpatialOp
	Property string
	Geometry orb.Geometry
	Distance float64
	Units    string
}

// TemporalOp is a time relation.
type TemporalOp string

const (
	TemporalAfter        TemporalOp = "after"
	TemporalBefore       TemporalOp = "before"
	TemporalBegins       TemporalOp = "begins"
	TemporalBegunBy      TemporalOp = "begunby"
	TemporalDuring       TemporalOp = "during"
	TemporalEnds         TemporalOp = "ends"
	TemporalEndedBy      TemporalOp = "endedby"
	TemporalContains     TemporalOp = "tcontains"
	TemporalEquals       TemporalOp = "tequals"
	TemporalMeets        TemporalOp = "meets"
	TemporalMetBy        TemporalOp = "metby"
	TemporalOverlaps     TemporalOp = "toverlaps"
	TemporalOverlappedBy TemporalOp = "overlappedby"
	TemporalAnyInteracts TemporalOp = "anyinteracts"
)

// Temporal is a time relation between two operands, one a Property.
type Temporal struct {
	Op    TemporalOp
	Left  Expr
	Right Expr
}

// And matches when every child matches.
type And struct {
	Predicates []Predicate
}

// Or matches when any child matches.
type Or struct {
	Predicates []Predicate
}

// Not inverts its child.
type Not struct {
	Predicate Predicate
}

// Include matches every document.
type Include struct{}

// Exclude matches no document.
type Exclude struct{}

func (*Ids) predicateNode()      {}
func (*IsNull) predicateNode()   {}
func (*Compare) predicateNode()  {}
func (*Between) predicateNode()  {}
func (*Like) predicateNode()     {}
func (*Spatial) predicateNode()  {}
func (*Temporal) predicateNode() {}
func (*And) predicateNode()      {}
func (*Or) predicateNode()       {}
func (*Not) predicateNode()      {}
func (*Include) predicateNode()  {}
func (*Exclude) predicateNode()  {}

func (*Property) exprNode() {}
func (*Literal) exprNode()  {}

// Prop builds a Property operand.
func Prop(name string) *Property {
	return &Property{Name: name}
}

// Lit builds a Literal operand.
func Lit(v any) *Literal {
	return &Literal{Value: v}
}

// Cmp builds a property-first comparison.
func Cmp(property string, op CompareOp, value any) *Compare {
	return &Compare{Op: op, Left: Prop(property), Right: Lit(value)}
}
