package geom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
)

func TestSpatialIndex_Near(t *testing.T) {
	origin := orb.Point{-2, -2}
	si := NewSpatialIndex(origin, 1)

	// 4x4 lattice of centroids starting at the origin.
	id := 0
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			si.Insert(id, orb.Point{origin[0] + float64(col) + 0.5, origin[1] + float64(row) + 0.5})
			id++
		}
	}

	if si.Len() != 16 {
		t.Errorf("Len() = %d, want 16", si.Len())
	}

	// Corner cell (col 0, row 0) sees itself and three neighbours.
	if diff := cmp.Diff([]int{0, 1, 4, 5}, si.Near(orb.Point{-1.5, -1.5})); diff != "" {
		t.Errorf("Near(corner) mismatch (-want +got):\n%s", diff)
	}

	// Interior cell (col 1, row 1) sees its full 3x3 neighbourhood.
	got := si.Near(orb.Point{-0.5, -0.5})
	want := []int{0, 1, 2, 4, 5, 6, 8, 9, 10}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Near(interior) mismatch (-want +got):\n%s", diff)
	}

	// Far away: nothing.
	if got := si.Near(orb.Point{100, 100}); len(got) != 0 {
		t.Errorf("Near(far) = %v, want empty", got)
	}
}

func TestPairBuckets_Unique(t *testing.T) {
	seen := make(map[int64][2]int64)
	for x := int64(-20); x <= 20; x++ {
		for y := int64(-20); y <= 20; y++ {
			key := pairBuckets(x, y)
			if prev, ok := seen[key]; ok {
				t.Fatalf("pairBuckets(%d,%d) collides with %v", x, y, prev)
			}
			seen[key] = [2]int64{x, y}
		}
	}
}
