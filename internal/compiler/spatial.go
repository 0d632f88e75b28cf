package compiler

import (
	"github.com/paulmach/orb"

	"github.com/roach88/esfilter/internal/dsl"
	"github.com/roach88/esfilter/internal/filter"
	"github.com/roach88/esfilter/internal/geo"
	"github.com/roach88/esfilter/internal/schema"
)

func (c *compilation) spatial(n *filter.Spatial) (halves, error) {
	node := string(n.Op)

	field := n.Property
	attr, declared := c.attribute(field)
	if field == "" && c.schema != nil {
		attr, declared = c.schema.DefaultGeometry()
		field = attr.Name
	}
	if field == "" {
		return c.unsupportedNode(node, "", "no geometry attribute to test")
	}
	if declared && attr.Type != schema.TypeGeometry {
		return c.unsupportedNode(node, field, "spatial relation on a "+string(attr.Type)+" attribute")
	}
	if n.Geometry == nil {
		return halves{}, invalidLiteral(field, "%s needs a geometry literal", n.Op)
	}

	if !declared {
		return c.unsupportedNode(node, field, "undeclared geometry attribute")
	}

	var (
		q   dsl.Query
		err error
	)
	switch attr.Geometry {
	case schema.GeoPoint:
		q, err = c.pointQuery(node, field, n)
	default:
		q, err = c.shapeQuery(node, field, n)
	}
	if err != nil {
		return halves{}, err
	}
	return same(q), nil
}

// pointQuery compiles a relation against a geo_point attribute.
func (c *compilation) pointQuery(node, field string, n *filter.Spatial) (dsl.Query, error) {
	switch n.Op {
	case filter.SpatialBBox:
		return boundingBox(field, n.Geometry.Bound()), nil

	case filter.SpatialIntersects, filter.SpatialWithin, filter.SpatialEquals, filter.SpatialContains:
		return c.pointIntersects(node, field, n.Op, n.Geometry), nil

	case filter.SpatialDisjoint:
		before := len(c.tracker.gaps)
		q := c.pointIntersects(node, field, filter.SpatialIntersects, n.Geometry)
		if len(c.tracker.gaps) > before {
			return &dsl.MatchAll{}, nil
		}
		return dsl.Not(q), nil

	case filter.SpatialDWithin:
		return distance(field, n)

	case filter.SpatialBeyond:
		q, err := distance(field, n)
		if err != nil {
			return nil, err
		}
		return dsl.Not(q), nil

	default:
		c.tracker.unsupported(node, field, "relation has no geo_point form")
		return boundingBox(field, n.Geometry.Bound()), nil
	}
}

// pointIntersects compiles the relations a point can have with a literal
// whose interior it lies in. Polygons use their outer ring; shapes with no
// region fall back to their bounding box.
func (c *compilation) pointIntersects(node, field string, op filter.SpatialOp, g orb.Geometry) dsl.Query {
	switch g := g.(type) {
	case orb.Point:
		return boundingBox(field, g.Bound())

	case orb.Bound:
		if op == filter.SpatialEquals || op == filter.SpatialContains {
			break
		}
		return boundingBox(field, g)

	case orb.Ring:
		if op == filter.SpatialEquals || op == filter.SpatialContains {
			break
		}
		return &dsl.GeoPolygon{Field: field, Points: geo.RingPoints(g)}

	case orb.Polygon:
		if op == filter.SpatialEquals || op == filter.SpatialContains || len(g) == 0 {
			break
		}
		if len(g) > 1 {
			c.tracker.unsupported(node, field, "polygon holes are ignored by geo_polygon")
		}
		return &dsl.GeoPolygon{Field: field, Points: geo.RingPoints(g[0])}

	case orb.MultiPolygon:
		if op == filter.SpatialEquals || op == filter.SpatialContains {
			break
		}
		should := make([]dsl.Query, 0, len(g))
		holes := false
		for _, p := range g {
			if len(p) == 0 {
				continue
			}
			holes = holes || len(p) > 1
			should = append(should, &dsl.GeoPolygon{Field: field, Points: geo.RingPoints(p[0])})
		}
		if holes {
			c.tracker.unsupported(node, field, "polygon holes are ignored by geo_polygon")
		}
		return &dsl.Bool{Should: should}
	}

	c.tracker.unsupported(node, field, "approximated by the literal's bounding box")
	return boundingBox(field, g.Bound())
}

func boundingBox(field string, b orb.Bound) *dsl.GeoBoundingBox {
	tl, br := geo.Corners(b)
	return &dsl.GeoBoundingBox{Field: field, TopLeft: tl, BottomRight: br}
}

// distance builds a geo_distance query centred on the literal's centroid.
func distance(field string, n *filter.Spatial) (*dsl.GeoDistance, error) {
	center, err := geo.Center(n.Geometry)
	if err != nil {
		return nil, invalidLiteral(field, "%s: %v", n.Op, err)
	}
	d, err := geo.Distance(n.Distance, n.Units)
	if err != nil {
		return nil, invalidLiteral(field, "%s: %v", n.Op, err)
	}
	return &dsl.GeoDistance{Field: field, Center: geo.LatLon(center), Distance: d}, nil
}

// shapeQuery compiles a relation against a geo_shape attribute. The
// relations the backend names directly keep the literal geometry.
func (c *compilation) shapeQuery(node, field string, n *filter.Spatial) (dsl.Query, error) {
	shape := func(g orb.Geometry, relation string) *dsl.GeoShape {
		return &dsl.GeoShape{Field: field, Shape: dsl.Shape{Geometry: g}, Relation: relation}
	}

	switch n.Op {
	case filter.SpatialBBox:
		ring := geo.EnvelopeRing(n.Geometry.Bound())
		return shape(orb.Polygon{ring}, dsl.RelationIntersects), nil
	case filter.SpatialIntersects:
		return shape(n.Geometry, dsl.RelationIntersects), nil
	case filter.SpatialWithin:
		return shape(n.Geometry, dsl.RelationWithin), nil
	case filter.SpatialContains:
		return shape(n.Geometry, dsl.RelationContains), nil
	case filter.SpatialDisjoint:
		return shape(n.Geometry, dsl.RelationDisjoint), nil

	case filter.SpatialDWithin, filter.SpatialBeyond:
		circle, err := distance(field, n)
		if err != nil {
			return nil, err
		}
		q := &dsl.GeoShape{
			Field:    field,
			Shape:    dsl.Shape{Geometry: orb.Point{circle.Center.Lon, circle.Center.Lat}, Radius: circle.Distance},
			Relation: dsl.RelationIntersects,
		}
		if n.Op == filter.SpatialBeyond {
			return dsl.Not(q), nil
		}
		return q, nil

	default:
		c.tracker.unsupported(node, field, "approximated by intersects")
		return shape(n.Geometry, dsl.RelationIntersects), nil
	}
}
