package compiler

import (
	"time"

	"github.com/roach88/esfilter/internal/dsl"
	"github.com/roach88/esfilter/internal/filter"
	"github.com/roach88/esfilter/internal/schema"
	"github.com/roach88/esfilter/internal/temporal"
)

// bounds are a temporal literal's formatted endpoints. For an instant or a
// text literal begin and end are the same value.
type bounds struct {
	begin  any
	end    any
	period bool
}

func temporalBounds(field string, f temporal.Format, v any) (bounds, error) {
	switch x := v.(type) {
	case string:
		return bounds{begin: x, end: x}, nil
	case time.Time:
		s := f.Value(x)
		return bounds{begin: s, end: s}, nil
	case filter.Instant:
		s := f.Value(x.Time)
		return bounds{begin: s, end: s}, nil
	case filter.Period:
		return bounds{begin: f.Value(x.Begin), end: f.Value(x.End), period: true}, nil
	default:
		return bounds{}, invalidLiteral(field, "temporal relation needs an instant, period or date text, got %T", v)
	}
}

// temporal compiles a time relation. With the literal first the relation
// reads from the literal's point of view, so after(L, A) means A < L.
func (c *compilation) temporal(n *filter.Temporal) (halves, error) {
	node := "t_" + string(n.Op)

	prop, lit, swapped, ok := operands(n.Left, n.Right)
	if !ok {
		return c.unsupportedNode(node, "", "temporal relation needs one property and one literal")
	}
	field := prop.Name

	attr, declared := c.attribute(field)
	if declared && attr.Type != schema.TypeDate {
		return c.unsupportedNode(node, field, "temporal relation on a "+string(attr.Type)+" attribute")
	}

	b, err := temporalBounds(field, attr.DateFormat(), lit.Value)
	if err != nil {
		return halves{}, err
	}

	switch n.Op {
	case filter.TemporalAfter:
		if swapped {
			return same(&dsl.Range{Field: field, LT: b.begin}), nil
		}
		return same(&dsl.Range{Field: field, GT: b.end}), nil

	case filter.TemporalBefore:
		if swapped {
			return same(&dsl.Range{Field: field, GT: b.end}), nil
		}
		return same(&dsl.Range{Field: field, LT: b.begin}), nil

	case filter.TemporalBegins, filter.TemporalBegunBy:
		return same(&dsl.Term{Field: field, Value: b.begin}), nil

	case filter.TemporalEnds, filter.TemporalEndedBy:
		return same(&dsl.Term{Field: field, Value: b.end}), nil

	case filter.TemporalDuring, filter.TemporalContains:
		return same(&dsl.Range{Field: field, GT: b.begin, LT: b.end}), nil

	case filter.TemporalEquals:
		if b.period {
			if b.begin == b.end {
				return same(&dsl.Term{Field: field, Value: b.begin}), nil
			}
			return same(dsl.Not(&dsl.MatchAll{})), nil
		}
		return same(&dsl.Term{Field: field, Value: b.begin}), nil

	case filter.TemporalAnyInteracts:
		if !b.period {
			return same(&dsl.Term{Field: field, Value: b.begin}), nil
		}
		return same(&dsl.Range{Field: field, GTE: b.begin, LTE: b.end}), nil

	case filter.TemporalMeets, filter.TemporalMetBy, filter.TemporalOverlaps, filter.TemporalOverlappedBy:
		return c.unsupportedNode(node, field, "relation needs interval-valued documents")

	default:
		return halves{}, &Error{Code: ErrCodeInvalidPredicate, Field: field, Message: "unknown temporal operator " + string(n.Op)}
	}
}
