// Package testutil holds fixtures shared by package tests.
package testutil

import "github.com/roach88/esfilter/internal/schema"

// Roads returns the layer most package tests query: a "gis" index with a
// keyword name, an integer lane count and a default-format opening date.
func Roads() schema.Layer {
	return schema.Layer{
		Name:    "roads",
		Index:   "gis",
		DocType: "road",
		Schema: schema.MustNew("roads",
			schema.AttributeSpec{Name: "name", Type: "string"},
			schema.AttributeSpec{Name: "lanes", Type: "integer"},
			schema.AttributeSpec{Name: "opened", Type: "date"},
		),
	}
}
