// Package geo converts geometry literals into the coordinate forms used by
// the backend's spatial queries.
//
// Literals arrive as orb geometries in (x, y) = (lon, lat) order. The
// point-kind queries (geo_bounding_box, geo_polygon, geo_distance) take
// {lat, lon} objects; geo_shape takes GeoJSON coordinates.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/roach88/esfilter/internal/dsl"
)

// LatLon converts an orb point.
func LatLon(p orb.Point) dsl.LatLon {
	return dsl.LatLon{Lat: p.Lat(), Lon: p.Lon()}
}

// Corners returns the top-left and bottom-right corners of b.
func Corners(b orb.Bound) (topLeft, bottomRight dsl.LatLon) {
	return dsl.LatLon{Lat: b.Top(), Lon: b.Left()},
		dsl.LatLon{Lat: b.Bottom(), Lon: b.Right()}
}

// EnvelopeRing returns b as a closed ring starting at the lower-left corner
// and running up the left edge.
func EnvelopeRing(b orb.Bound) orb.Ring {
	return orb.Ring{
		{b.Min[0], b.Min[1]},
		{b.Min[0], b.Max[1]},
		{b.Max[0], b.Max[1]},
		{b.Max[0], b.Min[1]},
		{b.Min[0], b.Min[1]},
	}
}

// RingPoints lists the ring's vertices in input order.
func RingPoints(r orb.Ring) []dsl.LatLon {
	pts := make([]dsl.LatLon, len(r))
	for i, p := range r {
		pts[i] = LatLon(p)
	}
	return pts
}

// Center returns the point a distance query is centred on.
//
// Points are used as-is. Every other geometry uses its planar centroid:
// area-weighted for polygons and length-weighted for lines. This is not
// the envelope midpoint; existing distance queries depend on the
// centroid. Bounds use their midpoint, which is also their centroid.
func Center(g orb.Geometry) (orb.Point, error) {
	switch g := g.(type) {
	case orb.Point:
		return g, nil
	case orb.Bound:
		return g.Center(), nil
	case nil:
		return orb.Point{}, fmt.Errorf("nil geometry")
	}

	if empty(g) {
		return orb.Point{}, fmt.Errorf("no centroid for empty %s", g.GeoJSONType())
	}
	c, _ := planar.CentroidArea(g)
	if math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return orb.Point{}, fmt.Errorf("no centroid for %s", g.GeoJSONType())
	}
	return c, nil
}

func empty(g orb.Geometry) bool {
	switch g := g.(type) {
	case orb.MultiPoint:
		return len(g) == 0
	case orb.LineString:
		return len(g) == 0
	case orb.Ring:
		return len(g) == 0
	case orb.MultiLineString:
		for _, ls := range g {
			if len(ls) > 0 {
				return false
			}
		}
		return true
	case orb.Polygon:
		return len(g) == 0 || len(g[0]) == 0
	case orb.MultiPolygon:
		for _, p := range g {
			if !empty(p) {
				return false
			}
		}
		return true
	case orb.Collection:
		for _, c := range g {
			if !empty(c) {
				return false
			}
		}
		return true
	}
	return false
}

// unitSuffixes maps accepted unit names to the backend's distance suffix.
var unitSuffixes = map[string]string{
	"":               "m",
	"m":              "m",
	"meter":          "m",
	"meters":         "m",
	"metre":          "m",
	"metres":         "m",
	"km":             "km",
	"kilometer":      "km",
	"kilometers":     "km",
	"kilometre":      "km",
	"kilometres":     "km",
	"cm":             "cm",
	"centimeters":    "cm",
	"mm":             "mm",
	"millimeters":    "mm",
	"mi":             "mi",
	"mile":           "mi",
	"miles":          "mi",
	"statute miles":  "mi",
	"yd":             "yd",
	"yard":           "yd",
	"yards":          "yd",
	"ft":             "ft",
	"foot":           "ft",
	"feet":           "ft",
	"in":             "in",
	"inch":           "in",
	"inches":         "in",
	"nmi":            "nmi",
	"nm":             "nmi",
	"nautical miles": "nmi",
}

// Distance renders a distance with its unit suffix, for example "1m".
// Units are matched case-insensitively; an empty unit means meters.
func Distance(value float64, units string) (string, error) {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return "", fmt.Errorf("invalid distance %v", value)
	}
	suffix, ok := unitSuffixes[strings.ToLower(strings.TrimSpace(units))]
	if !ok {
		return "", fmt.Errorf("unknown distance unit %q", units)
	}
	return strconv.FormatFloat(value, 'f', -1, 64) + suffix, nil
}
