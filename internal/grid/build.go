package grid

import (
	"fmt"
	"math"

	"github.com/banshee-data/sector.balance/internal/config"
	"github.com/banshee-data/sector.balance/internal/geom"
	"github.com/banshee-data/sector.balance/internal/monitoring"
	"github.com/paulmach/orb"
)

var logf = monitoring.Stage("grid")

// BuildStats tallies the raster.
type BuildStats struct {
	Candidates int // squares laid out over the extent
	Assigned   int // squares kept with a region label
	Dropped    int // squares whose centroid fell in no region
}

// Build lays out cellSize squares over the bounding box of all regions and
// keeps those whose centroid lies in a region. The raster steps from the
// minimum corner until the maximum corner is passed, so the last column and
// row may overhang the box. Ids are dense and follow column-major order.
func Build(regions []Region, cellSize float64) (*Grid, BuildStats, error) {
	var stats BuildStats
	if !(cellSize > 0) || math.IsInf(cellSize, 1) {
		return nil, stats, fmt.Errorf("%w: cell size must be positive, got %g", config.ErrInvalidConfiguration, cellSize)
	}
	if len(regions) == 0 {
		return nil, stats, fmt.Errorf("%w: no base regions", config.ErrInvalidConfiguration)
	}

	geoms := make([]orb.Geometry, 0, len(regions))
	for i, r := range regions {
		if r.ID <= 0 {
			return nil, stats, fmt.Errorf("%w: region %d at index %d: id must be positive", config.ErrInvalidConfiguration, r.ID, i)
		}
		if r.Geometry == nil || !geom.IsPolygonal(r.Geometry) {
			return nil, stats, fmt.Errorf("%w: region %d: geometry is not a polygon", config.ErrInvalidConfiguration, r.ID)
		}
		if r.Geometry.Bound().IsEmpty() {
			return nil, stats, fmt.Errorf("%w: region %d: geometry is empty", config.ErrInvalidConfiguration, r.ID)
		}
		geoms = append(geoms, r.Geometry)
	}

	extent, _ := geom.Extent(geoms)
	g := &Grid{
		Origin:   extent.Min,
		CellSize: cellSize,
		Cols:     steps(extent.Min[0], extent.Max[0], cellSize),
		Rows:     steps(extent.Min[1], extent.Max[1], cellSize),
	}

	for col := 0; col < g.Cols; col++ {
		for row := 0; row < g.Rows; row++ {
			stats.Candidates++
			b := geom.Square(orb.Point{
				g.Origin[0] + float64(col)*cellSize,
				g.Origin[1] + float64(row)*cellSize,
			}, cellSize)
			centroid := b.Center()

			region, err := Locate(regions, centroid)
			if err != nil {
				stats.Dropped++
				continue
			}
			g.Cells = append(g.Cells, Cell{
				ID:       len(g.Cells),
				Col:      col,
				Row:      row,
				Bound:    b,
				Centroid: centroid,
				Region:   region,
			})
		}
	}
	stats.Assigned = len(g.Cells)

	logf("built %dx%d raster: %d cells kept, %d dropped (size=%g)",
		g.Cols, g.Rows, stats.Assigned, stats.Dropped, cellSize)
	return g, stats, nil
}

// Locate returns the id of the first region, in input order, whose geometry
// contains p. It returns ErrUnassignedCell when none does.
func Locate(regions []Region, p orb.Point) (int, error) {
	for _, r := range regions {
		if geom.Contains(r.Geometry, p) {
			return r.ID, nil
		}
	}
	return 0, fmt.Errorf("point %v: %w", p, ErrUnassignedCell)
}

// steps counts the raster positions i with min+i*size < max.
func steps(min, max, size float64) int {
	n := 0
	for min+float64(n)*size < max {
		n++
	}
	return n
}
