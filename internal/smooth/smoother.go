// Package smooth turns a region's cells into an outline and pulls that
// outline onto the street network.
package smooth

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/sector.balance/internal/config"
	"github.com/banshee-data/sector.balance/internal/geom"
	"github.com/banshee-data/sector.balance/internal/grid"
	"github.com/banshee-data/sector.balance/internal/monitoring"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

var logf = monitoring.Stage("smooth")

// Sector is the smoothed outline of one region.
type Sector struct {
	Region    int
	Cells     int
	Workload  float64
	Dissolved orb.Geometry // lattice outline, Polygon or MultiPolygon
	Smoothed  orb.Geometry // Dissolved with vertices snapped to streets
	Vertices  int
	Snapped   int   // vertices moved by snapping
	Err       error // wraps ErrDegenerateGeometry; geometries are nil when set
}

// Smoother snaps region outlines onto a fixed set of reference lines.
type Smoother struct {
	index     *geom.SegmentIndex
	tolerance float64
	workers   int
}

// New indexes the street segments. tolerance is in coordinate units.
func New(streets []orb.LineString, tolerance float64, workers int) (*Smoother, error) {
	if math.IsNaN(tolerance) || tolerance < 0 {
		return nil, fmt.Errorf("%w: snap tolerance must be non-negative, got %g", config.ErrInvalidConfiguration, tolerance)
	}
	if workers < 1 {
		workers = 1
	}
	return &Smoother{
		index:     geom.NewSegmentIndex(streets),
		tolerance: tolerance,
		workers:   workers,
	}, nil
}

// Segments returns the number of indexed street segments.
func (s *Smoother) Segments() int {
	return s.index.Len()
}

// Smooth dissolves and snaps every region label present in g, in ascending
// region order. A degenerate region is reported on its Sector and does not
// stop the others.
func (s *Smoother) Smooth(ctx context.Context, g *grid.Grid) ([]Sector, error) {
	regions := g.RegionIDs()
	workloads := g.RegionWorkloads()
	sectors := make([]Sector, len(regions))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)
	for i, region := range regions {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sectors[i] = s.sector(g, region)
			sectors[i].Workload = workloads[region]
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("smooth sectors: %w", err)
	}

	var snapped, failed int
	for _, sec := range sectors {
		if sec.Err != nil {
			failed++
			logf("region %d: %v", sec.Region, sec.Err)
			continue
		}
		snapped += sec.Snapped
	}
	logf("smoothed %d regions against %d segments (tol=%g): %d vertices snapped, %d degenerate",
		len(sectors), s.index.Len(), s.tolerance, snapped, failed)
	return sectors, nil
}

func (s *Smoother) sector(g *grid.Grid, region int) Sector {
	sec := Sector{Region: region, Cells: len(g.Members(region))}

	dissolved, err := Dissolve(g, region)
	if err != nil {
		sec.Err = err
		return sec
	}
	smoothed, moved, err := SnapGeometry(dissolved, s.index, s.tolerance)
	if err != nil {
		sec.Err = fmt.Errorf("region %d: %w", region, err)
		return sec
	}

	sec.Dissolved, sec.Smoothed, sec.Snapped = dissolved, smoothed, moved
	sec.Vertices = countVertices(dissolved)
	return sec
}

func countVertices(g orb.Geometry) int {
	n := 0
	count := func(p orb.Polygon) {
		for _, r := range p {
			n += len(r) - 1
		}
	}
	switch g := g.(type) {
	case orb.Polygon:
		count(g)
	case orb.MultiPolygon:
		for _, p := range g {
			count(p)
		}
	}
	return n
}
