// Package filter defines the predicate trees that callers hand to the
// compiler, and decodes them from CQL2-JSON documents.
//
// # Tree shape
//
// Leaves test one attribute (Compare, Between, Like, IsNull, Spatial,
// Temporal) or the document identifier (Ids). And, Or and Not combine
// leaves; Include and Exclude are the constant true and false filters.
// Trees are immutable once built and may be shared between goroutines.
//
// # Documents
//
// Decode reads the JSON encoding of CQL2 with a few additions:
//
//	{"op": "=", "args": [{"property": "name"}, "broadway"]}
//	{"op": "s_intersects", "args": [{"property": "geom"}, {"type": "Point", "coordinates": [0, 1]}]}
//	{"op": "dwithin", "args": [{"property": "geom"}, {"wkt": "POINT(0 1)"}, 1, "meters"]}
//	{"op": "t_after", "args": [{"property": "time"}, {"timestamp": "1970-07-19T00:00:00Z"}]}
//	{"op": "ids", "args": ["id1", "id2"]}
//	{"op": "like", "args": [{"property": "name"}, "broad!.ay"], "escape": "!", "single_char": "."}
//
// Geometry literals may be GeoJSON, {"wkt": "..."} or {"bbox": [minx, miny, maxx, maxy]}.
// The bare JSON values true and false decode to Include and Exclude.
package filter
