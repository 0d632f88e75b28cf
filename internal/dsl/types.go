package dsl

import (
	"encoding/base64"
	"fmt"

	"github.com/paulmach/orb"
)

// Query is one node of the Elasticsearch query DSL.
//
// This is a sealed interface - only types in this package implement it.
// The marker method keeps the node alphabet closed so the encoder and the
// compiler can switch over it exhaustively.
//
// Node types:
//   - Term, Range, Bool, MatchAll, Missing, Exists, Ids
//   - GeoBoundingBox, GeoShape, GeoDistance, GeoPolygon
//   - QueryString, Regexp, Wrapper
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Term matches documents whose field holds exactly Value.
//
// Value is already coerced to the attribute's type: string, bool, int32,
// int64, float32 or float64.
type Term struct {
	Field string
	Value any
}

// Range bounds a field. Nil bounds are omitted; at most one of GT/GTE and
// one of LT/LTE is expected to be set.
type Range struct {
	Field string
	GT    any
	GTE   any
	LT    any
	LTE   any
}

// Bool combines clauses. Empty clause lists are not rendered.
type Bool struct {
	Must    []Query
	Should  []Query
	MustNot []Query
}

// MatchAll matches every document.
type MatchAll struct{}

// Missing matches documents with no value for Field.
type Missing struct {
	Field string
}

// Exists matches documents with a value for Field.
type Exists struct {
	Field string
}

// Ids matches documents by identifier.
type Ids struct {
	Values []string
}

// LatLon is a point in the backend's {"lat", "lon"} object form.
type LatLon struct {
	Lat float64
	Lon float64
}

// GeoBoundingBox matches geo_point values inside the box.
type GeoBoundingBox struct {
	Field       string
	TopLeft     LatLon
	BottomRight LatLon
}

// Shape relation keywords accepted by geo_shape.
const (
	RelationIntersects = "intersects"
	RelationWithin     = "within"
	RelationContains   = "contains"
	RelationDisjoint   = "disjoint"
)

// Shape is the literal geometry carried by a geo_shape query.
//
// Geometry supplies the coordinates. When Radius is set the shape is a
// circle centred on Geometry, which must then be an orb.Point.
type Shape struct {
	Geometry orb.Geometry
	Radius   string
}

// GeoShape matches geo_shape values standing in Relation to Shape.
type GeoShape struct {
	Field    string
	Shape    Shape
	Relation string
}

// GeoDistance matches geo_point values within Distance of Center.
// Distance carries its unit suffix, for example "1m" or "2.5km".
type GeoDistance struct {
	Field    string
	Center   LatLon
	Distance string
}

// GeoPolygon matches geo_point values inside the ring Points.
type GeoPolygon struct {
	Field  string
	Points []LatLon
}

// QueryString is a full-text pattern query against DefaultField.
type QueryString struct {
	Query        string
	DefaultField string
}

// Regexp matches a non-analyzed field against a Lucene regular expression.
type Regexp struct {
	Field string
	Value string
}

// Wrapper carries backend-native query text, base64 encoded.
type Wrapper struct {
	Query string
}

// NewWrapper encodes raw query text into a Wrapper node.
func NewWrapper(raw string) *Wrapper {
	return &Wrapper{Query: base64.StdEncoding.EncodeToString([]byte(raw))}
}

// Raw decodes the wrapped payload.
func (w *Wrapper) Raw() (string, error) {
	b, err := base64.StdEncoding.DecodeString(w.Query)
	if err != nil {
		return "", fmt.Errorf("decode wrapper payload: %w", err)
	}
	return string(b), nil
}

func (*Term) queryNode()           {}
func (*Range) queryNode()          {}
func (*Bool) queryNode()           {}
func (*MatchAll) queryNode()       {}
func (*Missing) queryNode()        {}
func (*Exists) queryNode()         {}
func (*Ids) queryNode()            {}
func (*GeoBoundingBox) queryNode() {}
func (*GeoShape) queryNode()       {}
func (*GeoDistance) queryNode()    {}
func (*GeoPolygon) queryNode()     {}
func (*QueryString) queryNode()    {}
func (*Regexp) queryNode()         {}
func (*Wrapper) queryNode()        {}

// IsMatchAll reports whether q is the bare match_all node.
func IsMatchAll(q Query) bool {
	_, ok := q.(*MatchAll)
	return ok
}

// Not wraps q in a bool must_not.
func Not(q Query) *Bool {
	return &Bool{MustNot: []Query{q}}
}
