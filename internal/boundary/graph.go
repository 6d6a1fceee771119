// Package boundary derives the cells that sit on a region boundary: for
// every pair of touching cells with different labels it records which
// region each cell borders.
package boundary

import (
	"sort"

	"github.com/banshee-data/sector.balance/internal/geom"
	"github.com/banshee-data/sector.balance/internal/grid"
	"github.com/banshee-data/sector.balance/internal/monitoring"
)

var logf = monitoring.Stage("boundary")

// touchEpsilon scales the touches tolerance to the cell size so that
// floating error from stepping the raster does not hide shared edges.
const touchEpsilon = 1e-9

// Triple records that Cell, labelled Region, touches a cell of Neighbor.
type Triple struct {
	Cell     int
	Region   int
	Neighbor int
}

// Graph is the set of boundary triples for one grid snapshot. It is not
// updated when labels change; build a new one from the new snapshot.
type Graph struct {
	Version int // version of the grid snapshot it was built from
	Triples []Triple

	byCell map[int][]int // cell id → indexes into Triples
}

// Build computes the boundary triples of g. Candidate neighbours come from
// a uniform bucket index with bucket size equal to the cell size, so only
// the 3x3 bucket neighbourhood of each cell is examined. Two cells are
// adjacent when their squares share an edge or a corner.
func Build(g *grid.Grid) *Graph {
	idx := geom.NewSpatialIndex(g.Origin, g.CellSize)
	for _, c := range g.Cells {
		idx.Insert(c.ID, c.Centroid)
	}
	eps := g.CellSize * touchEpsilon

	type key struct{ cell, neighbor int }
	seen := make(map[key]struct{})
	var triples []Triple
	for _, c := range g.Cells {
		for _, id := range idx.Near(c.Centroid) {
			if id == c.ID {
				continue
			}
			other := g.Cells[id]
			if other.Region == c.Region || !geom.Touches(c.Bound, other.Bound, eps) {
				continue
			}
			k := key{c.ID, other.Region}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			triples = append(triples, Triple{Cell: c.ID, Region: c.Region, Neighbor: other.Region})
		}
	}

	sort.Slice(triples, func(i, j int) bool {
		if triples[i].Cell != triples[j].Cell {
			return triples[i].Cell < triples[j].Cell
		}
		return triples[i].Neighbor < triples[j].Neighbor
	})

	gr := &Graph{Version: g.Version, Triples: triples, byCell: make(map[int][]int)}
	for i, t := range triples {
		gr.byCell[t.Cell] = append(gr.byCell[t.Cell], i)
	}

	logf("graph v%d: %d triples over %d boundary cells", g.Version, len(triples), len(gr.byCell))
	return gr
}

// Len returns the number of triples.
func (gr *Graph) Len() int {
	return len(gr.Triples)
}

// Eligible returns the ids of donor cells that touch recipient, ascending
// and without duplicates.
func (gr *Graph) Eligible(donor, recipient int) []int {
	var ids []int
	for _, t := range gr.Triples {
		if t.Region == donor && t.Neighbor == recipient {
			ids = append(ids, t.Cell)
		}
	}
	return ids
}

// IsBoundary reports whether the cell touches a cell of another region.
func (gr *Graph) IsBoundary(cell int) bool {
	return len(gr.byCell[cell]) > 0
}

// BoundaryCells returns the ids of every boundary cell, ascending.
func (gr *Graph) BoundaryCells() []int {
	ids := make([]int, 0, len(gr.byCell))
	for id := range gr.byCell {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Neighbors returns the regions the cell touches, ascending.
func (gr *Graph) Neighbors(cell int) []int {
	var out []int
	for _, i := range gr.byCell[cell] {
		out = append(out, gr.Triples[i].Neighbor)
	}
	return out
}
