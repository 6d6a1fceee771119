// Package grid tessellates the extent of the base regions into uniform
// square cells and labels each cell with the region containing its centroid.
//
// A Grid is an owned snapshot: stages that change labels or workloads work on
// a Clone and hand the new snapshot on.
package grid

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
)

// ErrUnassignedCell is reported for a cell whose centroid lies in no region.
// Build drops such cells and tallies them in BuildStats.
var ErrUnassignedCell = errors.New("cell centroid in no region")

// Region is a base region polygon and its positive integer id.
type Region struct {
	ID       int
	Geometry orb.Geometry // orb.Polygon or orb.MultiPolygon
}

// Cell is one square of the tessellation. Col and Row are its raster
// position from the grid origin; they stay valid after unassigned cells are
// dropped.
type Cell struct {
	ID       int
	Col      int
	Row      int
	Bound    orb.Bound
	Centroid orb.Point
	Region   int
	Workload float64
}

// Polygon returns the cell square as a closed polygon.
func (c Cell) Polygon() orb.Polygon {
	return c.Bound.ToPolygon()
}

// Point implements orb.Pointer so cells can go straight into an
// orb/quadtree.
func (c *Cell) Point() orb.Point {
	return c.Centroid
}

// Grid holds the retained cells, indexed by id.
type Grid struct {
	Origin   orb.Point
	CellSize float64
	Cols     int
	Rows     int
	Cells    []Cell
	Version  int
}

// Clone returns a deep copy with Version bumped.
func (g *Grid) Clone() *Grid {
	out := *g
	out.Cells = make([]Cell, len(g.Cells))
	copy(out.Cells, g.Cells)
	out.Version = g.Version + 1
	return &out
}

// Len returns the number of retained cells.
func (g *Grid) Len() int {
	return len(g.Cells)
}

// Cell returns the cell with the given id.
func (g *Grid) Cell(id int) (Cell, bool) {
	if id < 0 || id >= len(g.Cells) {
		return Cell{}, false
	}
	return g.Cells[id], true
}

// Members returns the ids of the cells labelled region, ascending.
func (g *Grid) Members(region int) []int {
	var ids []int
	for _, c := range g.Cells {
		if c.Region == region {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// RegionIDs returns every region label present in the grid, ascending.
func (g *Grid) RegionIDs() []int {
	seen := make(map[int]struct{})
	var ids []int
	for _, c := range g.Cells {
		if _, ok := seen[c.Region]; ok {
			continue
		}
		seen[c.Region] = struct{}{}
		ids = append(ids, c.Region)
	}
	sort.Ints(ids)
	return ids
}

// RegionWorkloads sums cell workloads per region label. It is recomputed
// from the cells on every call.
func (g *Grid) RegionWorkloads() map[int]float64 {
	out := make(map[int]float64)
	for _, c := range g.Cells {
		out[c.Region] += c.Workload
	}
	return out
}

// TotalWorkload sums the workload of every cell.
func (g *Grid) TotalWorkload() float64 {
	var total float64
	for _, c := range g.Cells {
		total += c.Workload
	}
	return total
}

// Relabel assigns region to every listed cell, whatever its current label.
func (g *Grid) Relabel(ids []int, region int) error {
	for _, id := range ids {
		if id < 0 || id >= len(g.Cells) {
			return fmt.Errorf("relabel: cell %d out of range [0,%d)", id, len(g.Cells))
		}
	}
	for _, id := range ids {
		g.Cells[id].Region = region
	}
	return nil
}

// Assignment returns the cell → region mapping, indexed by cell id.
func (g *Grid) Assignment() []int {
	out := make([]int, len(g.Cells))
	for i, c := range g.Cells {
		out[i] = c.Region
	}
	return out
}
