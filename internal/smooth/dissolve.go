package smooth

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/sector.balance/internal/grid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrDegenerateGeometry is returned for a region whose ring has fewer than
// three distinct vertices after dissolving or snapping.
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// Lattice directions, counter-clockwise from east.
const (
	east = iota
	north
	west
	south
)

var step = [4][2]int{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}

type vertex [2]int

// edge is a unit boundary edge on the cell lattice. The region lies on its
// left.
type edge struct {
	from vertex
	dir  int
}

func (e edge) to() vertex {
	return vertex{e.from[0] + step[e.dir][0], e.from[1] + step[e.dir][1]}
}

// leftCell returns the raster position of the cell on the left of e.
func (e edge) leftCell() vertex {
	x, y := e.from[0], e.from[1]
	switch e.dir {
	case east:
		return vertex{x, y}
	case north:
		return vertex{x - 1, y}
	case west:
		return vertex{x - 1, y - 1}
	default:
		return vertex{x, y - 1}
	}
}

type latticeRing struct {
	points []vertex // corners only, open
	area2  int      // twice the signed area; > 0 for counter-clockwise
	probe  vertex   // a region cell on the left of the ring
}

// Dissolve merges every cell labelled region into one polygon, or a
// multipolygon when the cells form several parts. The work happens on the
// integer cell lattice: edges shared by two member cells cancel, the rest
// are traced into rings, and only corner vertices are kept. Parts that meet
// at a single corner become separate polygons. Outer rings run
// counter-clockwise and holes clockwise.
func Dissolve(g *grid.Grid, region int) (orb.Geometry, error) {
	members := make(map[vertex]bool)
	for _, c := range g.Cells {
		if c.Region == region {
			members[vertex{c.Col, c.Row}] = true
		}
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("region %d has no cells: %w", region, ErrDegenerateGeometry)
	}

	rings := traceRings(boundaryEdges(members))

	var outers, holes []latticeRing
	for _, r := range rings {
		if r.area2 > 0 {
			outers = append(outers, r)
		} else {
			holes = append(holes, r)
		}
	}

	polys := make([]orb.Polygon, len(outers))
	outerRings := make([]orb.Ring, len(outers))
	for i, o := range outers {
		outerRings[i] = toRing(g, o.points)
		polys[i] = orb.Polygon{outerRings[i]}
	}

	for hi, h := range holes {
		probe := g.Origin
		probe[0] += (float64(h.probe[0]) + 0.5) * g.CellSize
		probe[1] += (float64(h.probe[1]) + 0.5) * g.CellSize

		owner := -1
		for i, o := range outers {
			if !planar.RingContains(outerRings[i], probe) {
				continue
			}
			if owner < 0 || o.area2 < outers[owner].area2 {
				owner = i
			}
		}
		if owner < 0 {
			return nil, fmt.Errorf("region %d: hole %d has no enclosing ring: %w", region, hi, ErrDegenerateGeometry)
		}
		polys[owner] = append(polys[owner], toRing(g, h.points))
	}

	if len(polys) == 1 {
		return polys[0], nil
	}
	return orb.MultiPolygon(polys), nil
}

// boundaryEdges returns the unit edges of member cells that do not face
// another member, sorted by start vertex then direction.
func boundaryEdges(members map[vertex]bool) []edge {
	var edges []edge
	for c := range members {
		x, y := c[0], c[1]
		if !members[vertex{x, y - 1}] {
			edges = append(edges, edge{vertex{x, y}, east})
		}
		if !members[vertex{x + 1, y}] {
			edges = append(edges, edge{vertex{x + 1, y}, north})
		}
		if !members[vertex{x, y + 1}] {
			edges = append(edges, edge{vertex{x + 1, y + 1}, west})
		}
		if !members[vertex{x - 1, y}] {
			edges = append(edges, edge{vertex{x, y + 1}, south})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.from[0] != b.from[0] {
			return a.from[0] < b.from[0]
		}
		if a.from[1] != b.from[1] {
			return a.from[1] < b.from[1]
		}
		return a.dir < b.dir
	})
	return edges
}

// traceRings links edges into closed rings. Where two rings meet at a
// vertex the sharpest left turn is taken, which keeps each ring on the
// boundary of a single edge-connected part.
func traceRings(edges []edge) []latticeRing {
	out := make(map[vertex][]int, len(edges))
	for i, e := range edges {
		out[e.from] = append(out[e.from], i)
	}
	visited := make([]bool, len(edges))

	var rings []latticeRing
	for start := range edges {
		if visited[start] {
			continue
		}

		var path []int
		cur := start
		for {
			visited[cur] = true
			path = append(path, cur)

			next := -1
			d := edges[cur].dir
			for _, want := range [3]int{(d + 1) % 4, d, (d + 3) % 4} {
				for _, cand := range out[edges[cur].to()] {
					if edges[cand].dir == want && (!visited[cand] || cand == start) {
						next = cand
						break
					}
				}
				if next >= 0 {
					break
				}
			}
			if next < 0 || next == start {
				break
			}
			cur = next
		}
		rings = append(rings, newLatticeRing(edges, path))
	}
	return rings
}

func newLatticeRing(edges []edge, path []int) latticeRing {
	n := len(path)
	r := latticeRing{probe: edges[path[0]].leftCell()}
	for k := 0; k < n; k++ {
		prev := edges[path[(k+n-1)%n]]
		e := edges[path[k]]
		if prev.dir != e.dir {
			r.points = append(r.points, e.from)
		}
	}
	for k := range r.points {
		p, q := r.points[k], r.points[(k+1)%len(r.points)]
		r.area2 += p[0]*q[1] - q[0]*p[1]
	}
	return r
}

// toRing maps lattice corners to coordinates and closes the ring. The
// mapping matches the cell bounds laid out by grid.Build exactly.
func toRing(g *grid.Grid, pts []vertex) orb.Ring {
	ring := make(orb.Ring, 0, len(pts)+1)
	for _, p := range pts {
		ring = append(ring, orb.Point{
			g.Origin[0] + float64(p[0])*g.CellSize,
			g.Origin[1] + float64(p[1])*g.CellSize,
		})
	}
	return append(ring, ring[0])
}
