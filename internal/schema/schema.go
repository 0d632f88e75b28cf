// Package schema describes the attributes of one backend document type.
//
// A Schema is built once from layer configuration and then shared
// read-only by every compilation against that layer. Constructors validate
// and copy their input; accessors return copies, so a Schema can never
// change after New returns.
package schema

import (
	"fmt"

	"github.com/roach88/esfilter/internal/temporal"
)

// ValueType is the declared type of an attribute's values.
type ValueType string

const (
	TypeString   ValueType = "string"
	TypeInteger  ValueType = "integer"
	TypeLong     ValueType = "long"
	TypeBoolean  ValueType = "boolean"
	TypeDouble   ValueType = "double"
	TypeFloat    ValueType = "float"
	TypeDate     ValueType = "date"
	TypeGeometry ValueType = "geometry"
)

// Valid reports whether t is one of the declared value types.
func (t ValueType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeLong, TypeBoolean, TypeDouble, TypeFloat, TypeDate, TypeGeometry:
		return true
	}
	return false
}

// Numeric reports whether t is an integer or floating-point type.
func (t ValueType) Numeric() bool {
	switch t {
	case TypeInteger, TypeLong, TypeDouble, TypeFloat:
		return true
	}
	return false
}

// GeometryKind selects which spatial query family applies to a geometry
// attribute.
type GeometryKind string

const (
	// GeoPoint fields hold single points and use bounding-box, polygon and
	// distance queries.
	GeoPoint GeometryKind = "geo_point"

	// GeoShape fields hold arbitrary geometries and use geo_shape queries.
	GeoShape GeometryKind = "geo_shape"
)

// Attribute is one field of a document type.
type Attribute struct {
	Name     string
	Type     ValueType
	Geometry GeometryKind    // set only when Type is TypeGeometry
	Format   temporal.Format // set only when Type is TypeDate
	Analyzed bool            // full-text analyzed string field
}

// DateFormat returns the attribute's date format, Default if none was given.
func (a Attribute) DateFormat() temporal.Format {
	if a.Format.IsZero() {
		return temporal.Default
	}
	return a.Format
}

// Schema is an immutable, ordered set of attributes.
type Schema struct {
	name   string
	attrs  []Attribute
	byName map[string]int
}

// AttributeSpec is the configuration form of an Attribute.
type AttributeSpec struct {
	Name       string `yaml:"name" json:"name"`
	Type       string `yaml:"type" json:"type"`
	Geometry   string `yaml:"geometry,omitempty" json:"geometry,omitempty"`
	DateFormat string `yaml:"date_format,omitempty" json:"date_format,omitempty"`
	Analyzed   bool   `yaml:"analyzed,omitempty" json:"analyzed,omitempty"`
}

// New validates specs and builds a Schema named name.
//
// Geometry attributes without an explicit kind default to geo_shape.
// Date formats are compiled here so a bad pattern fails at load time
// rather than on the first query.
func New(name string, specs []AttributeSpec) (*Schema, error) {
	s := &Schema{
		name:   name,
		attrs:  make([]Attribute, 0, len(specs)),
		byName: make(map[string]int, len(specs)),
	}

	for i, spec := range specs {
		attr, err := build(spec)
		if err != nil {
			return nil, fmt.Errorf("schema %q: attribute %d: %w", name, i, err)
		}
		if _, dup := s.byName[attr.Name]; dup {
			return nil, fmt.Errorf("schema %q: duplicate attribute %q", name, attr.Name)
		}
		s.byName[attr.Name] = len(s.attrs)
		s.attrs = append(s.attrs, attr)
	}

	return s, nil
}

// MustNew is New for test fixtures. It panics on error.
func MustNew(name string, specs ...AttributeSpec) *Schema {
	s, err := New(name, specs)
	if err != nil {
		panic(err)
	}
	return s
}

func build(spec AttributeSpec) (Attribute, error) {
	if spec.Name == "" {
		return Attribute{}, fmt.Errorf("name is required")
	}

	t := ValueType(spec.Type)
	if !t.Valid() {
		return Attribute{}, fmt.Errorf("%q: unknown type %q", spec.Name, spec.Type)
	}
	attr := Attribute{Name: spec.Name, Type: t, Analyzed: spec.Analyzed}

	switch {
	case t == TypeGeometry:
		kind := GeometryKind(spec.Geometry)
		if kind == "" {
			kind = GeoShape
		}
		if kind != GeoPoint && kind != GeoShape {
			return Attribute{}, fmt.Errorf("%q: unknown geometry kind %q", spec.Name, spec.Geometry)
		}
		attr.Geometry = kind
	case spec.Geometry != "":
		return Attribute{}, fmt.Errorf("%q: geometry kind set on %s attribute", spec.Name, t)
	}

	switch {
	case t == TypeDate:
		f, err := temporal.ParseFormat(spec.DateFormat)
		if err != nil {
			return Attribute{}, fmt.Errorf("%q: %w", spec.Name, err)
		}
		if spec.DateFormat != "" {
			attr.Format = f
		}
	case spec.DateFormat != "":
		return Attribute{}, fmt.Errorf("%q: date_format set on %s attribute", spec.Name, t)
	}

	if spec.Analyzed && t != TypeString {
		return Attribute{}, fmt.Errorf("%q: analyzed set on %s attribute", spec.Name, t)
	}

	return attr, nil
}

// Name returns the schema's name.
func (s *Schema) Name() string {
	return s.name
}

// Attribute looks up an attribute by name.
func (s *Schema) Attribute(name string) (Attribute, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Attribute{}, false
	}
	return s.attrs[i], true
}

// Attributes returns the attributes in declaration order.
func (s *Schema) Attributes() []Attribute {
	out := make([]Attribute, len(s.attrs))
	copy(out, s.attrs)
	return out
}

// Len returns the number of attributes.
func (s *Schema) Len() int {
	return len(s.attrs)
}

// DefaultGeometry returns the first geometry attribute, which filters use
// when a spatial predicate names no property.
func (s *Schema) DefaultGeometry() (Attribute, bool) {
	for _, a := range s.attrs {
		if a.Type == TypeGeometry {
			return a, true
		}
	}
	return Attribute{}, false
}
