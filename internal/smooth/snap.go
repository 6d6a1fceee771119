package smooth

import (
	"fmt"

	"github.com/banshee-data/sector.balance/internal/geom"
	"github.com/paulmach/orb"
)

// SnapRing moves every vertex of a closed ring onto the nearest reference
// segment within tolerance; vertices with nothing in reach stay put. The
// closing vertex is not visited and the result is re-closed from the first
// vertex. It returns the new ring and the number of vertices that moved.
func SnapRing(ring orb.Ring, idx *geom.SegmentIndex, tolerance float64) (orb.Ring, int) {
	if len(ring) == 0 {
		return ring, 0
	}
	open := ring
	if ring.Closed() && len(ring) > 1 {
		open = ring[:len(ring)-1]
	}

	out := make(orb.Ring, 0, len(open)+1)
	moved := 0
	for _, p := range open {
		q, _, ok := idx.Nearest(p, tolerance)
		if ok && q != p {
			moved++
		}
		if ok {
			p = q
		}
		out = append(out, p)
	}
	return append(out, out[0]), moved
}

// SnapGeometry snaps every ring of a polygon or multipolygon. Rings left
// with fewer than three distinct vertices fail with ErrDegenerateGeometry.
func SnapGeometry(g orb.Geometry, idx *geom.SegmentIndex, tolerance float64) (orb.Geometry, int, error) {
	switch g := g.(type) {
	case orb.Polygon:
		p, moved, err := snapPolygon(g, idx, tolerance, 0)
		return p, moved, err
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(g))
		total, ringIdx := 0, 0
		for _, poly := range g {
			p, moved, err := snapPolygon(poly, idx, tolerance, ringIdx)
			if err != nil {
				return nil, total, err
			}
			out = append(out, p)
			total += moved
			ringIdx += len(poly)
		}
		return out, total, nil
	}
	return nil, 0, fmt.Errorf("snap %T: not a polygon", g)
}

func snapPolygon(poly orb.Polygon, idx *geom.SegmentIndex, tolerance float64, firstRing int) (orb.Polygon, int, error) {
	out := make(orb.Polygon, 0, len(poly))
	total := 0
	for i, ring := range poly {
		snapped, moved := SnapRing(ring, idx, tolerance)
		if n := distinctVertices(snapped); n < 3 {
			return nil, total, fmt.Errorf("ring %d has %d distinct vertices after snapping: %w", firstRing+i, n, ErrDegenerateGeometry)
		}
		out = append(out, snapped)
		total += moved
	}
	return out, total, nil
}

// distinctVertices counts the distinct points of a ring, ignoring the
// closing duplicate.
func distinctVertices(ring orb.Ring) int {
	if ring.Closed() && len(ring) > 1 {
		ring = ring[:len(ring)-1]
	}
	seen := make(map[orb.Point]struct{}, len(ring))
	for _, p := range ring {
		seen[p] = struct{}{}
	}
	return len(seen)
}
