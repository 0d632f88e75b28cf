// Package compiler translates filter predicates into Elasticsearch query
// DSL.
//
// Compile produces two halves. Query is suitable for scored retrieval;
// PostFilter is the unscored boolean gate applied to the result set. Both
// are built from the same predicate and differ only when view parameters
// add backend-native text to one side.
//
// Every node either has an exact native form or compiles to a superset
// approximation recorded as a Gap. When any Gap exists, FullySupported is
// false and the caller must re-test the original predicate against the
// documents it retrieves; native hit counts are then advisory.
//
// Compile keeps all of its working state in locals of a single call. The
// Schema is only read, so any number of goroutines may compile against the
// same Schema at once.
package compiler

import (
	"github.com/roach88/esfilter/internal/dsl"
	"github.com/roach88/esfilter/internal/filter"
	"github.com/roach88/esfilter/internal/schema"
)

// Result is a compiled filter.
type Result struct {
	Query          dsl.Query
	PostFilter     dsl.Query
	FullySupported bool
	Gaps           []Gap
}

// halves is the (query, post filter) pair for one subtree.
type halves struct {
	query  dsl.Query
	filter dsl.Query
}

func same(q dsl.Query) halves {
	return halves{query: q, filter: q}
}

// compilation holds the state of one Compile call.
type compilation struct {
	schema  *schema.Schema
	tracker tracker
}

// Compile translates p against s and merges params into the output.
//
// s may be nil, in which case every property is treated as undeclared and
// literals pass through uncoerced. params may be nil.
func Compile(s *schema.Schema, p filter.Predicate, params ViewParams) (*Result, error) {
	c := &compilation{schema: s}

	h, err := c.compile(p)
	if err != nil {
		return nil, err
	}

	r := &Result{
		Query:          h.query,
		PostFilter:     h.filter,
		FullySupported: c.tracker.fullySupported(),
		Gaps:           c.tracker.result(),
	}
	return Inject(r, params), nil
}

func (c *compilation) compile(p filter.Predicate) (halves, error) {
	switch n := p.(type) {
	case *filter.Include:
		return same(&dsl.MatchAll{}), nil

	case *filter.Exclude:
		return same(dsl.Not(&dsl.MatchAll{})), nil

	case *filter.Ids:
		values := make([]string, len(n.Values))
		copy(values, n.Values)
		return same(&dsl.Ids{Values: values}), nil

	case *filter.IsNull:
		return same(&dsl.Missing{Field: n.Property}), nil

	case *filter.Not:
		if isNull, ok := n.Predicate.(*filter.IsNull); ok {
			return same(&dsl.Exists{Field: isNull.Property}), nil
		}
		before := len(c.tracker.gaps)
		child, err := c.compile(n.Predicate)
		if err != nil {
			return halves{}, err
		}
		if len(c.tracker.gaps) > before {
			// The negation of a superset is a subset; fall back to
			// matching everything so re-evaluation still sees every hit.
			return same(&dsl.MatchAll{}), nil
		}
		return halves{query: dsl.Not(child.query), filter: dsl.Not(child.filter)}, nil

	case *filter.And:
		if len(n.Predicates) == 0 {
			return same(&dsl.MatchAll{}), nil
		}
		qs, fs, err := c.compileAll(n.Predicates)
		if err != nil {
			return halves{}, err
		}
		return halves{query: &dsl.Bool{Must: qs}, filter: &dsl.Bool{Must: fs}}, nil

	case *filter.Or:
		if len(n.Predicates) == 0 {
			return same(dsl.Not(&dsl.MatchAll{})), nil
		}
		qs, fs, err := c.compileAll(n.Predicates)
		if err != nil {
			return halves{}, err
		}
		return halves{query: &dsl.Bool{Should: qs}, filter: &dsl.Bool{Should: fs}}, nil

	case *filter.Compare:
		return c.compare(n)

	case *filter.Between:
		return c.between(n)

	case *filter.Like:
		return c.like(n)

	case *filter.Spatial:
		return c.spatial(n)

	case *filter.Temporal:
		return c.temporal(n)

	case nil:
		return halves{}, &Error{Code: ErrCodeInvalidPredicate, Message: "nil predicate"}

	default:
		return halves{}, &Error{Code: ErrCodeInvalidPredicate, Message: unsupportedType(p)}
	}
}

func (c *compilation) compileAll(ps []filter.Predicate) ([]dsl.Query, []dsl.Query, error) {
	qs := make([]dsl.Query, 0, len(ps))
	fs := make([]dsl.Query, 0, len(ps))
	for _, child := range ps {
		h, err := c.compile(child)
		if err != nil {
			return nil, nil, err
		}
		qs = append(qs, h.query)
		fs = append(fs, h.filter)
	}
	return qs, fs, nil
}

// attribute looks up a declared attribute. Undeclared names report false.
func (c *compilation) attribute(name string) (schema.Attribute, bool) {
	if c.schema == nil {
		return schema.Attribute{}, false
	}
	return c.schema.Attribute(name)
}

// operands splits a binary node into its property and literal sides.
// swapped reports that the literal came first.
func operands(left, right filter.Expr) (prop *filter.Property, lit *filter.Literal, swapped, ok bool) {
	if p, isProp := left.(*filter.Property); isProp {
		if l, isLit := right.(*filter.Literal); isLit {
			return p, l, false, true
		}
		return nil, nil, false, false
	}
	if l, isLit := left.(*filter.Literal); isLit {
		if p, isProp := right.(*filter.Property); isProp {
			return p, l, true, true
		}
	}
	return nil, nil, false, false
}

// unsupportedNode is the degraded form of a node with no native
// translation: match everything and let the caller re-test.
func (c *compilation) unsupportedNode(node, field, reason string) (halves, error) {
	c.tracker.unsupported(node, field, reason)
	return same(&dsl.MatchAll{}), nil
}
