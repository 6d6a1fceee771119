package boundary

import (
	"testing"

	"github.com/banshee-data/sector.balance/internal/grid"
	"github.com/banshee-data/sector.balance/internal/monitoring"
	"github.com/banshee-data/sector.balance/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
)

func init() {
	monitoring.SetLogger(nil)
}

func build(t *testing.T, size float64, regions ...grid.Region) *grid.Grid {
	t.Helper()
	g, _, err := grid.Build(regions, size)
	testutil.AssertNoError(t, err)
	return g
}

func TestBuild_SplitSquare(t *testing.T) {
	halves := testutil.SplitSquare()
	g := build(t, 1, grid.Region{ID: 1, Geometry: halves[1]}, grid.Region{ID: 2, Geometry: halves[2]})

	gr := Build(g)
	want := []Triple{
		{4, 1, 2}, {5, 1, 2}, {6, 1, 2}, {7, 1, 2},
		{8, 2, 1}, {9, 2, 1}, {10, 2, 1}, {11, 2, 1},
	}
	if diff := cmp.Diff(want, gr.Triples); diff != "" {
		t.Errorf("Triples mismatch (-want +got):\n%s", diff)
	}
	if gr.Len() != 8 {
		t.Errorf("Len() = %d, want 8", gr.Len())
	}
	if diff := cmp.Diff([]int{4, 5, 6, 7}, gr.Eligible(1, 2)); diff != "" {
		t.Errorf("Eligible(1,2) mismatch (-want +got):\n%s", diff)
	}
	if got := gr.Eligible(1, 1); len(got) != 0 {
		t.Errorf("Eligible(1,1) = %v, want empty", got)
	}
	if diff := cmp.Diff([]int{4, 5, 6, 7, 8, 9, 10, 11}, gr.BoundaryCells()); diff != "" {
		t.Errorf("BoundaryCells mismatch (-want +got):\n%s", diff)
	}
	if gr.IsBoundary(0) || !gr.IsBoundary(4) || !gr.IsBoundary(11) || gr.IsBoundary(12) {
		t.Error("IsBoundary disagrees with the split at x=2")
	}
	if gr.Version != g.Version {
		t.Errorf("Version = %d, want %d", gr.Version, g.Version)
	}
}

func TestBuild_CornerTouchCounts(t *testing.T) {
	// 2x2 lattice: region 1 bottom-left, region 2 top-right, region 3 on
	// the other diagonal. Regions 1 and 2 meet only at the centre point.
	g := build(t, 1,
		grid.Region{ID: 1, Geometry: testutil.Rect(0, 0, 1, 1)},
		grid.Region{ID: 2, Geometry: testutil.Rect(1, 1, 2, 2)},
		grid.Region{ID: 3, Geometry: orb.MultiPolygon{testutil.Rect(0, 1, 1, 2), testutil.Rect(1, 0, 2, 1)}},
	)

	gr := Build(g)
	want := []Triple{
		{0, 1, 2}, {0, 1, 3},
		{1, 3, 1}, {1, 3, 2},
		{2, 3, 1}, {2, 3, 2},
		{3, 2, 1}, {3, 2, 3},
	}
	if diff := cmp.Diff(want, gr.Triples); diff != "" {
		t.Errorf("Triples mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 3}, gr.Neighbors(2)); diff != "" {
		t.Errorf("Neighbors(2) mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_NonAdjacentRegions(t *testing.T) {
	stripes := testutil.Stripes(3, 2)
	g := build(t, 1,
		grid.Region{ID: 1, Geometry: stripes[1]},
		grid.Region{ID: 2, Geometry: stripes[2]},
		grid.Region{ID: 3, Geometry: stripes[3]},
	)
	gr := Build(g)
	if got := gr.Eligible(1, 3); len(got) != 0 {
		t.Errorf("Eligible(1,3) = %v, want empty", got)
	}
	if diff := cmp.Diff([]int{0, 1}, gr.Eligible(1, 2)); diff != "" {
		t.Errorf("Eligible(1,2) mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_FractionalCellSize(t *testing.T) {
	g := build(t, 0.1,
		grid.Region{ID: 1, Geometry: testutil.Rect(0, 0, 0.4, 0.4)},
		grid.Region{ID: 2, Geometry: testutil.Rect(0.4, 0, 0.8, 0.4)},
	)
	gr := Build(g)
	if got := len(gr.BoundaryCells()); got != 8 {
		t.Errorf("boundary cells = %d, want 8", got)
	}
	if got := len(gr.Eligible(1, 2)); got != 4 {
		t.Errorf("Eligible(1,2) = %d cells, want 4", got)
	}
}

func TestBuild_SingleRegionHasNoBoundary(t *testing.T) {
	g := build(t, 1, grid.Region{ID: 5, Geometry: testutil.Rect(0, 0, 3, 3)})
	gr := Build(g)
	if gr.Len() != 0 || len(gr.BoundaryCells()) != 0 {
		t.Errorf("single region graph has %d triples", gr.Len())
	}
}
