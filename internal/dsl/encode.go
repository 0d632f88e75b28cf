package dsl

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/valyala/fastjson"
)

var arenas fastjson.ArenaPool

// Marshal renders q as compact query DSL JSON.
//
// Keys are written in a fixed order so the same node always yields the same
// bytes; fingerprints and golden files depend on that.
func Marshal(q Query) ([]byte, error) {
	a := arenas.Get()
	defer arenas.Put(a)

	v, err := Value(a, q)
	if err != nil {
		return nil, err
	}
	return v.MarshalTo(nil), nil
}

// MustMarshal is Marshal for tests and fixtures. It panics on error.
func MustMarshal(q Query) string {
	b, err := Marshal(q)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// Value builds q on the arena a. The result is only valid until a is reset.
func Value(a *fastjson.Arena, q Query) (*fastjson.Value, error) {
	switch n := q.(type) {
	case *Term:
		val, err := literal(a, n.Value)
		if err != nil {
			return nil, fmt.Errorf("term %q: %w", n.Field, err)
		}
		return wrap(a, "term", field(a, n.Field, val)), nil

	case *Range:
		bounds := a.NewObject()
		for _, b := range []struct {
			key string
			val any
		}{{"gt", n.GT}, {"gte", n.GTE}, {"lt", n.LT}, {"lte", n.LTE}} {
			if b.val == nil {
				continue
			}
			val, err := literal(a, b.val)
			if err != nil {
				return nil, fmt.Errorf("range %q %s: %w", n.Field, b.key, err)
			}
			bounds.Set(b.key, val)
		}
		return wrap(a, "range", field(a, n.Field, bounds)), nil

	case *Bool:
		body := a.NewObject()
		for _, clause := range []struct {
			key     string
			queries []Query
		}{{"must", n.Must}, {"should", n.Should}, {"must_not", n.MustNot}} {
			if len(clause.queries) == 0 {
				continue
			}
			arr, err := queryArray(a, clause.queries)
			if err != nil {
				return nil, err
			}
			body.Set(clause.key, arr)
		}
		return wrap(a, "bool", body), nil

	case *MatchAll:
		return wrap(a, "match_all", a.NewObject()), nil

	case *Missing:
		return wrap(a, "missing", field(a, "field", a.NewString(n.Field))), nil

	case *Exists:
		return wrap(a, "exists", field(a, "field", a.NewString(n.Field))), nil

	case *Ids:
		values := a.NewArray()
		for i, id := range n.Values {
			values.SetArrayItem(i, a.NewString(id))
		}
		return wrap(a, "ids", field(a, "values", values)), nil

	case *GeoBoundingBox:
		box := a.NewObject()
		box.Set("top_left", latLon(a, n.TopLeft))
		box.Set("bottom_right", latLon(a, n.BottomRight))
		return wrap(a, "geo_bounding_box", field(a, n.Field, box)), nil

	case *GeoShape:
		shape, err := shapeValue(a, n.Shape)
		if err != nil {
			return nil, fmt.Errorf("geo_shape %q: %w", n.Field, err)
		}
		body := a.NewObject()
		body.Set("shape", shape)
		body.Set("relation", a.NewString(n.Relation))
		return wrap(a, "geo_shape", field(a, n.Field, body)), nil

	case *GeoDistance:
		body := a.NewObject()
		body.Set("distance", a.NewString(n.Distance))
		body.Set(n.Field, latLon(a, n.Center))
		return wrap(a, "geo_distance", body), nil

	case *GeoPolygon:
		points := a.NewArray()
		for i, p := range n.Points {
			points.SetArrayItem(i, latLon(a, p))
		}
		return wrap(a, "geo_polygon", field(a, n.Field, field(a, "points", points))), nil

	case *QueryString:
		body := a.NewObject()
		body.Set("query", a.NewString(n.Query))
		body.Set("default_field", a.NewString(n.DefaultField))
		return wrap(a, "query_string", body), nil

	case *Regexp:
		return wrap(a, "regexp", field(a, n.Field, field(a, "value", a.NewString(n.Value)))), nil

	case *Wrapper:
		return wrap(a, "wrapper", field(a, "query", a.NewString(n.Query))), nil

	case nil:
		return nil, fmt.Errorf("nil query node")

	default:
		return nil, fmt.Errorf("unsupported query node type: %T", q)
	}
}

func wrap(a *fastjson.Arena, kind string, body *fastjson.Value) *fastjson.Value {
	return field(a, kind, body)
}

func field(a *fastjson.Arena, key string, v *fastjson.Value) *fastjson.Value {
	o := a.NewObject()
	o.Set(key, v)
	return o
}

func queryArray(a *fastjson.Arena, queries []Query) (*fastjson.Value, error) {
	arr := a.NewArray()
	for i, q := range queries {
		v, err := Value(a, q)
		if err != nil {
			return nil, err
		}
		arr.SetArrayItem(i, v)
	}
	return arr, nil
}

func latLon(a *fastjson.Arena, p LatLon) *fastjson.Value {
	o := a.NewObject()
	o.Set("lat", a.NewNumberFloat64(p.Lat))
	o.Set("lon", a.NewNumberFloat64(p.Lon))
	return o
}

// literal encodes a coerced scalar. float32 keeps its own precision so 4.5f
// renders as 4.5 rather than a widened float64 expansion.
func literal(a *fastjson.Arena, v any) (*fastjson.Value, error) {
	switch x := v.(type) {
	case string:
		return a.NewString(x), nil
	case bool:
		if x {
			return a.NewTrue(), nil
		}
		return a.NewFalse(), nil
	case int:
		return a.NewNumberInt(x), nil
	case int32:
		return a.NewNumberString(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		return a.NewNumberString(strconv.FormatInt(x, 10)), nil
	case float32:
		return a.NewNumberString(strconv.FormatFloat(float64(x), 'g', -1, 32)), nil
	case float64:
		return a.NewNumberString(strconv.FormatFloat(x, 'g', -1, 64)), nil
	default:
		return nil, fmt.Errorf("unsupported literal type %T", v)
	}
}

func shapeValue(a *fastjson.Arena, s Shape) (*fastjson.Value, error) {
	o := a.NewObject()
	if s.Radius != "" {
		p, ok := s.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("circle centre must be a point, got %T", s.Geometry)
		}
		o.Set("type", a.NewString("circle"))
		o.Set("coordinates", position(a, p))
		o.Set("radius", a.NewString(s.Radius))
		return o, nil
	}

	if c, ok := s.Geometry.(orb.Collection); ok {
		geoms := a.NewArray()
		for i, g := range c {
			v, err := shapeValue(a, Shape{Geometry: g})
			if err != nil {
				return nil, err
			}
			geoms.SetArrayItem(i, v)
		}
		o.Set("type", a.NewString("geometrycollection"))
		o.Set("geometries", geoms)
		return o, nil
	}

	kind, coords, err := coordinates(a, s.Geometry)
	if err != nil {
		return nil, err
	}
	o.Set("type", a.NewString(kind))
	o.Set("coordinates", coords)
	return o, nil
}

// coordinates renders g in GeoJSON [lon, lat] order.
func coordinates(a *fastjson.Arena, g orb.Geometry) (string, *fastjson.Value, error) {
	switch g := g.(type) {
	case orb.Point:
		return "point", position(a, g), nil
	case orb.MultiPoint:
		return "multipoint", positions(a, g), nil
	case orb.LineString:
		return "linestring", positions(a, g), nil
	case orb.MultiLineString:
		arr := a.NewArray()
		for i, ls := range g {
			arr.SetArrayItem(i, positions(a, ls))
		}
		return "multilinestring", arr, nil
	case orb.Ring:
		return "polygon", rings(a, orb.Polygon{g}), nil
	case orb.Polygon:
		return "polygon", rings(a, g), nil
	case orb.MultiPolygon:
		arr := a.NewArray()
		for i, p := range g {
			arr.SetArrayItem(i, rings(a, p))
		}
		return "multipolygon", arr, nil
	case orb.Bound:
		arr := a.NewArray()
		arr.SetArrayItem(0, position(a, orb.Point{g.Min[0], g.Max[1]}))
		arr.SetArrayItem(1, position(a, orb.Point{g.Max[0], g.Min[1]}))
		return "envelope", arr, nil
	default:
		return "", nil, fmt.Errorf("unsupported geometry type %T", g)
	}
}

func position(a *fastjson.Arena, p orb.Point) *fastjson.Value {
	arr := a.NewArray()
	arr.SetArrayItem(0, a.NewNumberFloat64(p[0]))
	arr.SetArrayItem(1, a.NewNumberFloat64(p[1]))
	return arr
}

func positions[P ~[]orb.Point](a *fastjson.Arena, pts P) *fastjson.Value {
	arr := a.NewArray()
	for i, p := range pts {
		arr.SetArrayItem(i, position(a, p))
	}
	return arr
}

func rings(a *fastjson.Arena, p orb.Polygon) *fastjson.Value {
	arr := a.NewArray()
	for i, r := range p {
		arr.SetArrayItem(i, positions(a, r))
	}
	return arr
}
