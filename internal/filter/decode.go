package filter

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/valyala/fastjson"
)

var parsers fastjson.ParserPool

// DecodeError reports a malformed filter document. Path is a JSONPath-like
// location of the offending value, for example "$.args[1]".
type DecodeError struct {
	Path    string
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func errorf(path, format string, args ...any) error {
	return &DecodeError{Path: path, Message: fmt.Sprintf(format, args...)}
}

var compareOps = map[string]CompareOp{
	"=":  OpEqual,
	"<>": OpNotEqual,
	"<":  OpLess,
	"<=": OpLessOrEqual,
	">":  OpGreater,
	">=": OpGreaterOrEqual,
}

var spatialOps = map[string]SpatialOp{
	"bbox":         SpatialBBox,
	"s_intersects": SpatialIntersects,
	"s_within":     SpatialWithin,
	"s_contains":   SpatialContains,
	"s_disjoint":   SpatialDisjoint,
	"s_crosses":    SpatialCrosses,
	"s_overlaps":   SpatialOverlaps,
	"s_touches":    SpatialTouches,
	"s_equals":     SpatialEquals,
	"dwithin":      SpatialDWithin,
	"beyond":       SpatialBeyond,
}

var temporalOps = map[string]TemporalOp{
	"t_after":        TemporalAfter,
	"t_before":       TemporalBefore,
	"t_begins":       TemporalBegins,
	"t_begunby":      TemporalBegunBy,
	"t_during":       TemporalDuring,
	"t_ends":         TemporalEnds,
	"t_endedby":      TemporalEndedBy,
	"t_contains":     TemporalContains,
	"t_equals":       TemporalEquals,
	"t_meets":        TemporalMeets,
	"t_metby":        TemporalMetBy,
	"t_overlaps":     TemporalOverlaps,
	"t_overlappedby": TemporalOverlappedBy,
	"t_intersects":   TemporalAnyInteracts,
	"anyinteracts":   TemporalAnyInteracts,
}

// Decode parses a CQL2-JSON filter document.
func Decode(data []byte) (Predicate, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, errorf("$", "invalid JSON: %v", err)
	}
	return predicate(v, "$")
}

func predicate(v *fastjson.Value, path string) (Predicate, error) {
	switch v.Type() {
	case fastjson.TypeTrue:
		return &Include{}, nil
	case fastjson.TypeFalse:
		return &Exclude{}, nil
	case fastjson.TypeObject:
	default:
		return nil, errorf(path, "expected an operation object, got %s", v.Type())
	}

	op := string(v.GetStringBytes("op"))
	if op == "" {
		return nil, errorf(path, `missing "op"`)
	}
	args := v.GetArray("args")
	argPath := func(i int) string { return fmt.Sprintf("%s.args[%d]", path, i) }

	if cmp, ok := compareOps[op]; ok {
		return comparison(cmp, args, path, argPath)
	}
	if sop, ok := spatialOps[op]; ok {
		return spatial(sop, args, path, argPath)
	}
	if top, ok := temporalOps[op]; ok {
		if len(args) != 2 {
			return nil, errorf(path, "%s takes 2 arguments, got %d", op, len(args))
		}
		left, _, err := expr(args[0], argPath(0))
		if err != nil {
			return nil, err
		}
		right, _, err := expr(args[1], argPath(1))
		if err != nil {
			return nil, err
		}
		return &Temporal{Op: top, Left: left, Right: right}, nil
	}

	switch op {
	case "and", "or":
		if len(args) == 0 {
			return nil, errorf(path, "%s needs at least one argument", op)
		}
		children := make([]Predicate, len(args))
		for i, a := range args {
			child, err := predicate(a, argPath(i))
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		if op == "and" {
			return &And{Predicates: children}, nil
		}
		return &Or{Predicates: children}, nil

	case "not":
		if len(args) != 1 {
			return nil, errorf(path, "not takes 1 argument, got %d", len(args))
		}
		child, err := predicate(args[0], argPath(0))
		if err != nil {
			return nil, err
		}
		return &Not{Predicate: child}, nil

	case "isNull":
		if len(args) != 1 {
			return nil, errorf(path, "isNull takes 1 argument, got %d", len(args))
		}
		name, err := propertyName(args[0], argPath(0))
		if err != nil {
			return nil, err
		}
		return &IsNull{Property: name}, nil

	case "between":
		if len(args) != 3 {
			return nil, errorf(path, "between takes 3 arguments, got %d", len(args))
		}
		name, err := propertyName(args[0], argPath(0))
		if err != nil {
			return nil, err
		}
		lower, err := scalar(args[1], argPath(1))
		if err != nil {
			return nil, err
		}
		upper, err := scalar(args[2], argPath(2))
		if err != nil {
			return nil, err
		}
		return &Between{Property: name, Lower: lower, Upper: upper}, nil

	case "like":
		return like(v, args, path, argPath)

	case "in":
		if len(args) != 2 {
			return nil, errorf(path, "in takes 2 arguments, got %d", len(args))
		}
		name, err := propertyName(args[0], argPath(0))
		if err != nil {
			return nil, err
		}
		list, err := args[1].Array()
		if err != nil {
			return nil, errorf(argPath(1), "expected a list of values")
		}
		if len(list) == 0 {
			return &Exclude{}, nil
		}
		children := make([]Predicate, len(list))
		for i, item := range list {
			val, err := scalar(item, fmt.Sprintf("%s[%d]", argPath(1), i))
			if err != nil {
				return nil, err
			}
			children[i] = Cmp(name, OpEqual, val)
		}
		return &Or{Predicates: children}, nil

	case "ids":
		ids := make([]string, len(args))
		for i, a := range args {
			s, err := a.StringBytes()
			if err != nil {
				return nil, errorf(argPath(i), "identifier must be a string")
			}
			ids[i] = string(s)
		}
		return &Ids{Values: ids}, nil
	}

	return nil, errorf(path, "unknown operation %q", op)
}

func comparison(op CompareOp, args []*fastjson.Value, path string, argPath func(int) string) (Predicate, error) {
	if len(args) != 2 {
		return nil, errorf(path, "%s takes 2 arguments, got %d", op, len(args))
	}
	left, lci, err := expr(args[0], argPath(0))
	if err != nil {
		return nil, err
	}
	right, rci, err := expr(args[1], argPath(1))
	if err != nil {
		return nil, err
	}
	return &Compare{Op: op, Left: left, Right: right, IgnoreCase: lci || rci}, nil
}

func like(v *fastjson.Value, args []*fastjson.Value, path string, argPath func(int) string) (Predicate, error) {
	if len(args) != 2 {
		return nil, errorf(path, "like takes 2 arguments, got %d", len(args))
	}
	prop, ci, err := expr(args[0], argPath(0))
	if err != nil {
		return nil, err
	}
	p, ok := prop.(*Property)
	if !ok {
		return nil, errorf(argPath(0), "like needs a property")
	}
	pattern, pci, err := expr(args[1], argPath(1))
	if err != nil {
		return nil, err
	}
	lit, ok := pattern.(*Literal)
	if !ok {
		return nil, errorf(argPath(1), "like needs a string pattern")
	}
	text, ok := lit.Value.(string)
	if !ok {
		return nil, errorf(argPath(1), "like needs a string pattern")
	}

	l := &Like{
		Property:   p.Name,
		Pattern:    text,
		Wildcard:   '%',
		SingleChar: '_',
		Escape:     '\\',
		IgnoreCase: ci || pci,
	}
	for _, opt := range []struct {
		key string
		dst *rune
	}{{"wildcard", &l.Wildcard}, {"single_char", &l.SingleChar}, {"escape", &l.Escape}} {
		ov := v.Get(opt.key)
		if ov == nil {
			continue
		}
		s, err := ov.StringBytes()
		if err != nil || utf8.RuneCount(s) != 1 {
			return nil, errorf(path+"."+opt.key, "must be a single character")
		}
		*opt.dst, _ = utf8.DecodeRune(s)
	}
	if mc := v.Get("match_case"); mc != nil {
		b, err := mc.Bool()
		if err != nil {
			return nil, errorf(path+".match_case", "must be a boolean")
		}
		l.IgnoreCase = l.IgnoreCase || !b
	}
	return l, nil
}

func spatial(op SpatialOp, args []*fastjson.Value, path string, argPath func(int) string) (Predicate, error) {
	if op == SpatialDWithin || op == SpatialBeyond {
		if len(args) != 3 && len(args) != 4 {
			return nil, errorf(path, "%s takes 3 or 4 arguments, got %d", op, len(args))
		}
	} else if len(args) != 2 {
		return nil, errorf(path, "%s takes 2 arguments, got %d", op, len(args))
	}

	propIdx, geomIdx := 0, 1
	if args[0].Get("property") == nil && args[1].Get("property") != nil {
		propIdx, geomIdx = 1, 0
		switch op {
		case SpatialWithin:
			op = SpatialContains
		case SpatialContains:
			op = SpatialWithin
		}
	}

	name, err := propertyName(args[propIdx], argPath(propIdx))
	if err != nil {
		return nil, err
	}
	g, err := geometry(args[geomIdx], argPath(geomIdx))
	if err != nil {
		return nil, err
	}
	s := &Spatial{Op: op, Property: name, Geometry: g}

	if len(args) > 2 {
		d, err := args[2].Float64()
		if err != nil {
			return nil, errorf(argPath(2), "distance must be a number")
		}
		s.Distance = d
	}
	if len(args) > 3 {
		u, err := args[3].StringBytes()
		if err != nil {
			return nil, errorf(argPath(3), "units must be a string")
		}
		s.Units = string(u)
	}
	return s, nil
}

// expr decodes an operand. The second result reports a casei() wrapper.
func expr(v *fastjson.Value, path string) (Expr, bool, error) {
	if v.Type() == fastjson.TypeObject {
		if name := v.Get("property"); name != nil {
			s, err := name.StringBytes()
			if err != nil {
				return nil, false, errorf(path+".property", "must be a string")
			}
			return Prop(string(s)), false, nil
		}
		if string(v.GetStringBytes("op")) == "casei" {
			inner := v.GetArray("args")
			if len(inner) != 1 {
				return nil, false, errorf(path, "casei takes 1 argument")
			}
			e, _, err := expr(inner[0], path+".args[0]")
			return e, true, err
		}
		if t, ok, err := temporalLiteral(v, path); ok || err != nil {
			return Lit(t), false, err
		}
		g, err := geometry(v, path)
		if err != nil {
			return nil, false, err
		}
		return Lit(g), false, nil
	}

	val, err := scalar(v, path)
	if err != nil {
		return nil, false, err
	}
	return Lit(val), false, nil
}

func propertyName(v *fastjson.Value, path string) (string, error) {
	e, _, err := expr(v, path)
	if err != nil {
		return "", err
	}
	p, ok := e.(*Property)
	if !ok {
		return "", errorf(path, "expected a property reference")
	}
	return p.Name, nil
}

// scalar decodes a JSON string, number or boolean, or a temporal literal.
// Integral numbers decode as int64 so large identifiers keep full
// precision.
func scalar(v *fastjson.Value, path string) (any, error) {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes()), nil
	case fastjson.TypeNumber:
		raw := v.MarshalTo(nil)
		if !bytes.ContainsAny(raw, ".eE") {
			if n, err := v.Int64(); err == nil {
				return n, nil
			}
		}
		f, err := v.Float64()
		if err != nil {
			return nil, errorf(path, "invalid number %s", raw)
		}
		return f, nil
	case fastjson.TypeTrue:
		return true, nil
	case fastjson.TypeFalse:
		return false, nil
	case fastjson.TypeObject:
		t, ok, err := temporalLiteral(v, path)
		if err != nil {
			return nil, err
		}
		if ok {
			return t, nil
		}
	}
	return nil, errorf(path, "expected a literal value, got %s", v.Type())
}

// temporalLiteral decodes {"timestamp"}, {"date"} and {"interval"}.
// ok is false when v is none of those.
func temporalLiteral(v *fastjson.Value, path string) (any, bool, error) {
	if ts := v.Get("timestamp"); ts != nil {
		t, err := parseInstant(ts, path+".timestamp")
		return Instant{Time: t}, true, err
	}
	if d := v.Get("date"); d != nil {
		t, err := parseInstant(d, path+".date")
		return Instant{Time: t}, true, err
	}
	if iv := v.Get("interval"); iv != nil {
		bounds, err := iv.Array()
		if err != nil || len(bounds) != 2 {
			return nil, true, errorf(path+".interval", "must hold two bounds")
		}
		begin, err := parseInstant(bounds[0], path+".interval[0]")
		if err != nil {
			return nil, true, err
		}
		end, err := parseInstant(bounds[1], path+".interval[1]")
		if err != nil {
			return nil, true, err
		}
		if end.Before(begin) {
			return nil, true, errorf(path+".interval", "end is before begin")
		}
		return Period{Begin: begin, End: end}, true, nil
	}
	return nil, false, nil
}

func parseInstant(v *fastjson.Value, path string) (time.Time, error) {
	b, err := v.StringBytes()
	if err != nil {
		return time.Time{}, errorf(path, "must be a string")
	}
	s := string(b)
	if s == ".." {
		return time.Time{}, errorf(path, "open interval bounds are not supported")
	}
	layout := "2006-01-02"
	if strings.Contains(s, "T") {
		layout = time.RFC3339Nano
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, errorf(path, "invalid time %q", s)
	}
	return t.UTC(), nil
}

// geometry decodes GeoJSON, {"wkt": ...} or {"bbox": [...]}.
func geometry(v *fastjson.Value, path string) (orb.Geometry, error) {
	if v.Type() != fastjson.TypeObject {
		return nil, errorf(path, "expected a geometry, got %s", v.Type())
	}

	if bb := v.Get("bbox"); bb != nil && v.Get("type") == nil {
		nums, err := bb.Array()
		if err != nil || (len(nums) != 4 && len(nums) != 6) {
			return nil, errorf(path+".bbox", "must hold 4 or 6 numbers")
		}
		c := make([]float64, len(nums))
		for i, n := range nums {
			f, err := n.Float64()
			if err != nil {
				return nil, errorf(fmt.Sprintf("%s.bbox[%d]", path, i), "must be a number")
			}
			c[i] = f
		}
		if len(c) == 6 {
			c = []float64{c[0], c[1], c[3], c[4]}
		}
		return orb.Bound{Min: orb.Point{c[0], c[1]}, Max: orb.Point{c[2], c[3]}}, nil
	}

	if w := v.Get("wkt"); w != nil {
		s, err := w.StringBytes()
		if err != nil {
			return nil, errorf(path+".wkt", "must be a string")
		}
		g, err := wkt.Unmarshal(string(s))
		if err != nil {
			return nil, errorf(path+".wkt", "invalid WKT: %v", err)
		}
		return g, nil
	}

	if v.Get("type") != nil {
		g, err := geojson.UnmarshalGeometry(v.MarshalTo(nil))
		if err != nil {
			return nil, errorf(path, "invalid GeoJSON: %v", err)
		}
		if g.Geometry() == nil {
			return nil, errorf(path, "empty GeoJSON geometry")
		}
		return g.Geometry(), nil
	}

	return nil, errorf(path, "unrecognized literal object")
}
