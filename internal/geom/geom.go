// Package geom holds the planar geometry primitives shared by the grid,
// boundary and smoothing stages: squares, centroids, containment, the
// touches predicate, and nearest-point-on-segment.
//
// Coordinates are planar (or near-planar lon/lat treated as planar). All
// types come from github.com/paulmach/orb so that loaders, stages and
// exporters share one representation.
package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Square returns the axis-aligned square with lower-left corner min and the
// given edge length.
func Square(min orb.Point, size float64) orb.Bound {
	return orb.Bound{Min: min, Max: orb.Point{min[0] + size, min[1] + size}}
}

// Centroid returns the area centroid of a polygonal geometry. Bounds are
// handled directly since their centroid is the centre.
func Centroid(g orb.Geometry) orb.Point {
	if b, ok := g.(orb.Bound); ok {
		return b.Center()
	}
	c, _ := planar.CentroidArea(g)
	return c
}

// Contains reports whether p lies inside a polygonal geometry. Points on the
// boundary count as inside. Non-polygonal geometries contain nothing.
func Contains(g orb.Geometry, p orb.Point) bool {
	if g == nil || !g.Bound().Contains(p) {
		return false
	}
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.Ring:
		return planar.RingContains(g, p)
	case orb.Bound:
		return true
	}
	return false
}

// IsPolygonal reports whether g is a geometry Contains can test.
func IsPolygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon, orb.Ring, orb.Bound:
		return true
	}
	return false
}

// Touches reports whether two axis-aligned rectangles share boundary but no
// interior: they meet along an edge or at a corner. eps absorbs floating
// error in coordinates produced by repeated stepping.
func Touches(a, b orb.Bound, eps float64) bool {
	ix := math.Min(a.Max[0], b.Max[0]) - math.Max(a.Min[0], b.Min[0])
	iy := math.Min(a.Max[1], b.Max[1]) - math.Max(a.Min[1], b.Min[1])
	if ix < -eps || iy < -eps {
		return false
	}
	return ix <= eps || iy <= eps
}

// NearestOnSegment returns the point of segment ab closest to p: the
// orthogonal projection of p onto the segment's line, clamped to [a, b].
func NearestOnSegment(a, b, p orb.Point) orb.Point {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

// Distance returns the planar distance between two points.
func Distance(p, q orb.Point) float64 {
	return planar.Distance(p, q)
}

// Extent returns the bound covering every geometry in gs. Nil and empty
// geometries are skipped; ok is false when nothing is left.
func Extent(gs []orb.Geometry) (b orb.Bound, ok bool) {
	for _, g := range gs {
		if g == nil {
			continue
		}
		gb := g.Bound()
		if gb.IsEmpty() {
			continue
		}
		if !ok {
			b, ok = gb, true
			continue
		}
		b = b.Union(gb)
	}
	return b, ok
}
