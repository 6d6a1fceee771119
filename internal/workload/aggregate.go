package workload

import (
	"context"
	"fmt"

	"github.com/banshee-data/sector.balance/internal/geom"
	"github.com/banshee-data/sector.balance/internal/grid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
	"golang.org/x/sync/errgroup"
)

// nearestCandidates is how many centroids are pulled from the quadtree per
// event. On a square lattice at most four centroids tie for nearest; the
// extra slack covers lattices with dropped cells.
const nearestCandidates = 8

// AggregateStats summarises an aggregation pass.
type AggregateStats struct {
	Events     int
	Assigned   int
	Unassigned int // events with a non-finite location or an empty grid
}

// CellIndex finds the nearest grid cell to a point. It is read-only after
// construction and safe for concurrent use.
type CellIndex struct {
	tree *quadtree.Quadtree
}

// NewCellIndex indexes the centroids of every cell in g.
func NewCellIndex(g *grid.Grid) (*CellIndex, error) {
	cells := make([]orb.Geometry, 0, len(g.Cells))
	for _, c := range g.Cells {
		cells = append(cells, c.Centroid)
	}
	b, ok := geom.Extent(cells)
	if !ok {
		return &CellIndex{}, nil
	}
	// Pad so centroids on the extent edge are inside the tree bound.
	b = b.Pad(g.CellSize)

	qt := quadtree.New(b)
	for i := range g.Cells {
		if err := qt.Add(&g.Cells[i]); err != nil {
			return nil, fmt.Errorf("index cell %d: %w", g.Cells[i].ID, err)
		}
	}
	return &CellIndex{tree: qt}, nil
}

// Nearest returns the id of the cell whose centroid is closest to p. Equal
// distances resolve to the lowest cell id. ok is false for an empty index.
func (ci *CellIndex) Nearest(p orb.Point) (id int, ok bool) {
	if ci.tree == nil {
		return -1, false
	}
	buf := make([]orb.Pointer, 0, nearestCandidates)
	best := -1.0
	id = -1
	for _, cand := range ci.tree.KNearest(buf, p, nearestCandidates) {
		c := cand.(*grid.Cell)
		d := geom.Distance(p, c.Centroid)
		if id < 0 || d < best || (d == best && c.ID < id) {
			best, id = d, c.ID
		}
	}
	return id, id >= 0
}

// Aggregate assigns every scored event to its nearest cell and returns a new
// snapshot whose cell workloads are the summed scores. Cells with no events
// get zero. Nearest-cell lookups run on up to workers goroutines; the sums
// are taken sequentially in event order so the result does not depend on
// scheduling.
func Aggregate(ctx context.Context, g *grid.Grid, events []ScoredEvent, workers int) (*grid.Grid, AggregateStats, error) {
	stats := AggregateStats{Events: len(events)}
	if workers < 1 {
		workers = 1
	}

	out := g.Clone()
	for i := range out.Cells {
		out.Cells[i].Workload = 0
	}

	idx, err := NewCellIndex(out)
	if err != nil {
		return nil, stats, err
	}

	assigned := make([]int, len(events))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	chunk := (len(events) + workers - 1) / workers
	for start := 0; start < len(events); start += chunk {
		start, end := start, min(start+chunk, len(events))
		eg.Go(func() error {
			for i := start; i < end; i++ {
				if i%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				assigned[i] = -1
				if !finite(events[i].Location) {
					continue
				}
				if id, ok := idx.Nearest(events[i].Location); ok {
					assigned[i] = id
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, stats, fmt.Errorf("aggregate events: %w", err)
	}

	for i, id := range assigned {
		if id < 0 {
			stats.Unassigned++
			continue
		}
		out.Cells[id].Workload += events[i].Score
		stats.Assigned++
	}

	logf("aggregated %d events into %d cells (%d unassigned), total workload %.3f",
		stats.Assigned, len(out.Cells), stats.Unassigned, out.TotalWorkload())
	return out, stats, nil
}
