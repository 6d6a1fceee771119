package grid

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/sector.balance/internal/config"
	"github.com/banshee-data/sector.balance/internal/monitoring"
	"github.com/banshee-data/sector.balance/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	monitoring.SetLogger(nil)
}

func splitRegions() []Region {
	halves := testutil.SplitSquare()
	return []Region{{ID: 1, Geometry: halves[1]}, {ID: 2, Geometry: halves[2]}}
}

func TestBuild_SplitSquare(t *testing.T) {
	g, stats, err := Build(splitRegions(), 1)
	require.NoError(t, err)

	assert.Equal(t, 4, g.Cols)
	assert.Equal(t, 4, g.Rows)
	assert.Equal(t, BuildStats{Candidates: 16, Assigned: 16, Dropped: 0}, stats)
	assert.Equal(t, orb.Point{0, 0}, g.Origin)
	require.Len(t, g.Cells, 16)

	// Column-major: ids 0..3 are column 0, bottom to top.
	for i, c := range g.Cells {
		assert.Equal(t, i, c.ID)
		assert.Equal(t, i/4, c.Col, "cell %d col", i)
		assert.Equal(t, i%4, c.Row, "cell %d row", i)
	}

	if diff := cmp.Diff([]int{0, 1, 2, 3, 4, 5, 6, 7}, g.Members(1)); diff != "" {
		t.Errorf("Members(1) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{8, 9, 10, 11, 12, 13, 14, 15}, g.Members(2)); diff != "" {
		t.Errorf("Members(2) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2}, g.RegionIDs()); diff != "" {
		t.Errorf("RegionIDs mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_TilingIsExhaustiveAndDisjoint(t *testing.T) {
	regions := []Region{
		{ID: 1, Geometry: testutil.Rect(0, 0, 3.05, 2)},
		{ID: 2, Geometry: testutil.Rect(3.05, 0, 5.3, 2.7)},
	}
	const size = 0.5
	g, stats, err := Build(regions, size)
	require.NoError(t, err)

	// Extent 5.3 x 2.7 needs 11 columns and 6 rows; the last of each overhangs.
	assert.Equal(t, 11, g.Cols)
	assert.Equal(t, 6, g.Rows)
	assert.Equal(t, g.Cols*g.Rows, stats.Candidates)
	assert.Equal(t, stats.Candidates, stats.Assigned+stats.Dropped)

	seen := make(map[[2]int]bool)
	for _, c := range g.Cells {
		key := [2]int{c.Col, c.Row}
		if seen[key] {
			t.Fatalf("raster position %v used twice", key)
		}
		seen[key] = true

		w := c.Bound.Max[0] - c.Bound.Min[0]
		h := c.Bound.Max[1] - c.Bound.Min[1]
		if math.Abs(w-size) > 1e-12 || math.Abs(h-size) > 1e-12 {
			t.Errorf("cell %d is %gx%g, want %gx%g", c.ID, w, h, size, size)
		}
		wantMin := orb.Point{float64(c.Col) * size, float64(c.Row) * size}
		if c.Bound.Min != wantMin {
			t.Errorf("cell %d min = %v, want %v", c.ID, c.Bound.Min, wantMin)
		}
	}

	// Every raster square whose centroid is in a region is kept.
	for col := 0; col < g.Cols; col++ {
		for row := 0; row < g.Rows; row++ {
			centre := orb.Point{(float64(col) + 0.5) * size, (float64(row) + 0.5) * size}
			_, err := Locate(regions, centre)
			if (err == nil) != seen[[2]int{col, row}] {
				t.Errorf("raster (%d,%d): kept=%v but locate err=%v", col, row, seen[[2]int{col, row}], err)
			}
		}
	}
}

func TestBuild_DropsUnassignedCells(t *testing.T) {
	regions := []Region{
		{ID: 1, Geometry: testutil.Rect(0, 0, 2, 2)},
		{ID: 2, Geometry: testutil.Rect(2, 2, 4, 4)},
	}
	g, stats, err := Build(regions, 1)
	require.NoError(t, err)

	assert.Equal(t, BuildStats{Candidates: 16, Assigned: 8, Dropped: 8}, stats)
	for i, c := range g.Cells {
		assert.Equal(t, i, c.ID, "ids must be dense after dropping")
	}
	assert.Len(t, g.Members(1), 4)
	assert.Len(t, g.Members(2), 4)
}

func TestBuild_FirstRegionWins(t *testing.T) {
	regions := []Region{
		{ID: 7, Geometry: testutil.Rect(0, 0, 3, 1)},
		{ID: 3, Geometry: testutil.Rect(1, 0, 4, 1)},
	}
	g, _, err := Build(regions, 1)
	require.NoError(t, err)

	got := g.Assignment()
	if diff := cmp.Diff([]int{7, 7, 7, 3}, got); diff != "" {
		t.Errorf("assignment mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_MultiPolygonRegion(t *testing.T) {
	regions := []Region{
		{ID: 1, Geometry: orb.MultiPolygon{testutil.Rect(0, 0, 1, 1), testutil.Rect(2, 0, 3, 1)}},
		{ID: 2, Geometry: testutil.Rect(1, 0, 2, 1)},
	}
	g, _, err := Build(regions, 1)
	require.NoError(t, err)
	if diff := cmp.Diff([]int{1, 2, 1}, g.Assignment()); diff != "" {
		t.Errorf("assignment mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_InvalidInput(t *testing.T) {
	good := splitRegions()
	tests := []struct {
		name    string
		regions []Region
		size    float64
	}{
		{"zero cell size", good, 0},
		{"negative cell size", good, -1},
		{"NaN cell size", good, math.NaN()},
		{"infinite cell size", good, math.Inf(1)},
		{"no regions", nil, 1},
		{"non-positive id", []Region{{ID: 0, Geometry: testutil.Rect(0, 0, 1, 1)}}, 1},
		{"line geometry", []Region{{ID: 1, Geometry: orb.LineString{{0, 0}, {1, 1}}}}, 1},
		{"nil geometry", []Region{{ID: 1}}, 1},
		{"empty polygon", []Region{{ID: 1, Geometry: orb.Polygon{}}, {ID: 2, Geometry: testutil.Rect(10, 10, 12, 12)}}, 0.1},
		{"empty ring", []Region{{ID: 1, Geometry: orb.Polygon{orb.Ring{}}}}, 1},
		{"empty multipolygon", []Region{{ID: 1, Geometry: orb.MultiPolygon{}}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Build(tt.regions, tt.size)
			if !errors.Is(err, config.ErrInvalidConfiguration) {
				t.Errorf("err = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestLocate(t *testing.T) {
	regions := splitRegions()
	id, err := Locate(regions, orb.Point{3, 1})
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	_, err = Locate(regions, orb.Point{9, 9})
	assert.ErrorIs(t, err, ErrUnassignedCell)
}

func TestGrid_CloneAndRelabel(t *testing.T) {
	g, _, err := Build(splitRegions(), 1)
	require.NoError(t, err)
	for i := range g.Cells {
		g.Cells[i].Workload = float64(i)
	}

	c := g.Clone()
	assert.Equal(t, g.Version+1, c.Version)
	require.NoError(t, c.Relabel([]int{8, 9}, 1))
	c.Cells[0].Workload = 100

	// Original untouched.
	assert.Equal(t, 2, g.Cells[8].Region)
	assert.Equal(t, 0.0, g.Cells[0].Workload)
	assert.Len(t, g.Members(1), 8)
	assert.Len(t, c.Members(1), 10)

	// Region workloads are recomputed from cells.
	assert.InDelta(t, 100+1+2+3+4+5+6+7+8+9, c.RegionWorkloads()[1], 1e-12)
	assert.InDelta(t, 10+11+12+13+14+15, c.RegionWorkloads()[2], 1e-12)
	assert.InDelta(t, g.TotalWorkload()+100, c.TotalWorkload(), 1e-12)

	err = c.Relabel([]int{3, 99}, 2)
	assert.Error(t, err)
	assert.Equal(t, 1, c.Cells[3].Region, "failed relabel must change nothing")
}

func TestGrid_Cell(t *testing.T) {
	g, _, err := Build(splitRegions(), 1)
	require.NoError(t, err)

	c, ok := g.Cell(5)
	require.True(t, ok)
	assert.Equal(t, orb.Point{1.5, 1.5}, c.Centroid)
	assert.Equal(t, orb.Point{1.5, 1.5}, (&c).Point())
	assert.Len(t, c.Polygon()[0], 5)

	_, ok = g.Cell(-1)
	assert.False(t, ok)
	_, ok = g.Cell(16)
	assert.False(t, ok)
	assert.Equal(t, 16, g.Len())
}
