package compiler

import (
	"github.com/roach88/esfilter/internal/dsl"
	"github.com/roach88/esfilter/internal/filter"
	"github.com/roach88/esfilter/internal/querystring"
	"github.com/roach88/esfilter/internal/schema"
)

func (c *compilation) compare(n *filter.Compare) (halves, error) {
	prop, lit, swapped, ok := operands(n.Left, n.Right)
	if !ok {
		return c.unsupportedNode(string(n.Op), "", "comparison needs one property and one literal")
	}

	op := n.Op
	if swapped {
		op = op.Flip()
	}

	attr, declared := c.attribute(prop.Name)
	if declared && attr.Type == schema.TypeGeometry {
		return c.unsupportedNode(string(op), prop.Name, "geometry attributes need a spatial relation")
	}

	value, err := coerce(attr, declared, prop.Name, lit.Value)
	if err != nil {
		return halves{}, err
	}

	// Case only matters on text fields; dates and numbers compare as usual.
	if text, isText := value.(string); isText && n.IgnoreCase && (!declared || attr.Type == schema.TypeString) {
		return c.compareIgnoreCase(op, prop.Name, attr, text)
	}

	switch op {
	case filter.OpEqual:
		return same(&dsl.Term{Field: prop.Name, Value: value}), nil
	case filter.OpNotEqual:
		return same(dsl.Not(&dsl.Term{Field: prop.Name, Value: value})), nil
	case filter.OpLess:
		return same(&dsl.Range{Field: prop.Name, LT: value}), nil
	case filter.OpLessOrEqual:
		return same(&dsl.Range{Field: prop.Name, LTE: value}), nil
	case filter.OpGreater:
		return same(&dsl.Range{Field: prop.Name, GT: value}), nil
	case filter.OpGreaterOrEqual:
		return same(&dsl.Range{Field: prop.Name, GTE: value}), nil
	default:
		return halves{}, &Error{Code: ErrCodeInvalidPredicate, Field: prop.Name, Message: "unknown comparison operator " + string(n.Op)}
	}
}

// compareIgnoreCase handles case-insensitive string comparisons. Equality
// on keyword fields becomes an exact regexp with per-letter case classes.
// Analyzed fields and ordered comparisons have no exact form.
func (c *compilation) compareIgnoreCase(op filter.CompareOp, field string, attr schema.Attribute, text string) (halves, error) {
	if attr.Analyzed {
		return c.unsupportedNode(string(op), field, "case-insensitive comparison on an analyzed field")
	}
	re := &dsl.Regexp{Field: field, Value: querystring.Literal(text, false)}
	switch op {
	case filter.OpEqual:
		return same(re), nil
	case filter.OpNotEqual:
		return same(dsl.Not(re)), nil
	default:
		return c.unsupportedNode(string(op), field, "case-insensitive ordering")
	}
}

func (c *compilation) between(n *filter.Between) (halves, error) {
	attr, declared := c.attribute(n.Property)
	if declared && attr.Type == schema.TypeGeometry {
		return c.unsupportedNode("between", n.Property, "geometry attributes need a spatial relation")
	}

	lower, err := coerce(attr, declared, n.Property, n.Lower)
	if err != nil {
		return halves{}, err
	}
	upper, err := coerce(attr, declared, n.Property, n.Upper)
	if err != nil {
		return halves{}, err
	}
	return same(&dsl.Range{Field: n.Property, GTE: lower, LTE: upper}), nil
}

// like compiles a pattern match. Analyzed fields take a query_string over
// the rewritten pattern; keyword and undeclared fields take an anchored
// regexp, which matches the whole value exactly as the pattern does.
func (c *compilation) like(n *filter.Like) (halves, error) {
	attr, declared := c.attribute(n.Property)
	if declared && attr.Type != schema.TypeString {
		return c.unsupportedNode("like", n.Property, "pattern match on a "+string(attr.Type)+" attribute")
	}

	pattern := querystring.Pattern{
		Escape:     orDefault(n.Escape, querystring.Default.Escape),
		Wildcard:   orDefault(n.Wildcard, querystring.Default.Wildcard),
		SingleChar: orDefault(n.SingleChar, querystring.Default.SingleChar),
		MatchCase:  !n.IgnoreCase,
	}

	if attr.Analyzed {
		return same(&dsl.QueryString{Query: pattern.QueryString(n.Pattern), DefaultField: n.Property}), nil
	}
	return same(&dsl.Regexp{Field: n.Property, Value: pattern.Regexp(n.Pattern)}), nil
}

func orDefault(r, def rune) rune {
	if r == 0 {
		return def
	}
	return r
}
