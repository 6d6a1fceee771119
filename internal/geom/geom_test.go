package geom

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestTouches(t *testing.T) {
	unit := Square(orb.Point{0, 0}, 1)
	tests := []struct {
		name  string
		other orb.Bound
		want  bool
	}{
		{"shared right edge", Square(orb.Point{1, 0}, 1), true},
		{"shared top edge", Square(orb.Point{0, 1}, 1), true},
		{"shared corner", Square(orb.Point{1, 1}, 1), true},
		{"shared corner negative side", Square(orb.Point{-1, -1}, 1), true},
		{"disjoint", Square(orb.Point{2, 0}, 1), false},
		{"overlapping", Square(orb.Point{0.5, 0.5}, 1), false},
		{"identical", unit, false},
		{"partial edge", orb.Bound{Min: orb.Point{1, 0.5}, Max: orb.Point{2, 3}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Touches(unit, tt.other, 1e-9); got != tt.want {
				t.Errorf("Touches = %v, want %v", got, tt.want)
			}
			if got := Touches(tt.other, unit, 1e-9); got != tt.want {
				t.Errorf("Touches (swapped) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTouches_FloatingStep(t *testing.T) {
	// Squares laid out by stepping 0.1 accumulate representation error.
	a := Square(orb.Point{0.1 * 3, 0}, 0.1)
	b := Square(orb.Point{0.1 + 0.1 + 0.1 + 0.1, 0}, 0.1)
	if !Touches(a, b, 1e-12) {
		t.Error("adjacent stepped squares should touch within eps")
	}
}

func TestNearestOnSegment(t *testing.T) {
	a, b := orb.Point{0, 0}, orb.Point{10, 0}
	tests := []struct {
		name string
		p    orb.Point
		want orb.Point
	}{
		{"projects inside", orb.Point{4, 5}, orb.Point{4, 0}},
		{"clamps before a", orb.Point{-3, 2}, orb.Point{0, 0}},
		{"clamps after b", orb.Point{14, -1}, orb.Point{10, 0}},
		{"on segment", orb.Point{7, 0}, orb.Point{7, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NearestOnSegment(a, b, tt.p); got != tt.want {
				t.Errorf("NearestOnSegment = %v, want %v", got, tt.want)
			}
		})
	}

	// Degenerate segment collapses to its endpoint.
	if got := NearestOnSegment(orb.Point{2, 2}, orb.Point{2, 2}, orb.Point{5, 6}); got != (orb.Point{2, 2}) {
		t.Errorf("degenerate segment = %v, want [2 2]", got)
	}
}

func TestContainsAndCentroid(t *testing.T) {
	square := Square(orb.Point{0, 0}, 4).ToPolygon()

	if !Contains(square, orb.Point{1, 1}) {
		t.Error("interior point should be contained")
	}
	if Contains(square, orb.Point{5, 1}) {
		t.Error("exterior point should not be contained")
	}

	// Square with a hole in the middle.
	holed := orb.Polygon{
		square[0],
		orb.Ring{{1, 1}, {1, 3}, {3, 3}, {3, 1}, {1, 1}},
	}
	if Contains(holed, orb.Point{2, 2}) {
		t.Error("point in hole should not be contained")
	}
	if !Contains(holed, orb.Point{0.5, 0.5}) {
		t.Error("point outside hole should be contained")
	}

	multi := orb.MultiPolygon{square, Square(orb.Point{10, 10}, 1).ToPolygon()}
	if !Contains(multi, orb.Point{10.5, 10.5}) {
		t.Error("point in second part should be contained")
	}
	if Contains(orb.LineString{{0, 0}, {4, 4}}, orb.Point{1, 1}) {
		t.Error("line strings contain nothing")
	}
	if Contains(nil, orb.Point{0, 0}) {
		t.Error("nil geometry contains nothing")
	}

	c := Centroid(square)
	if math.Abs(c[0]-2) > 1e-12 || math.Abs(c[1]-2) > 1e-12 {
		t.Errorf("Centroid = %v, want [2 2]", c)
	}
	if got := Centroid(Square(orb.Point{1, 1}, 2)); got != (orb.Point{2, 2}) {
		t.Errorf("Centroid(bound) = %v, want [2 2]", got)
	}
}

func TestExtent(t *testing.T) {
	if _, ok := Extent(nil); ok {
		t.Error("Extent(nil) should report !ok")
	}
	b, ok := Extent([]orb.Geometry{
		Square(orb.Point{0, 0}, 1).ToPolygon(),
		Square(orb.Point{3, -2}, 1).ToPolygon(),
	})
	if !ok {
		t.Fatal("Extent should report ok")
	}
	want := orb.Bound{Min: orb.Point{0, -2}, Max: orb.Point{4, 1}}
	if b != want {
		t.Errorf("Extent = %v, want %v", b, want)
	}
}

func TestExtent_SkipsEmptyGeometry(t *testing.T) {
	b, ok := Extent([]orb.Geometry{
		orb.Polygon{},
		Square(orb.Point{10, 10}, 2).ToPolygon(),
		orb.MultiPolygon{},
	})
	if !ok {
		t.Fatal("Extent should report ok")
	}
	want := orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{12, 12}}
	if b != want {
		t.Errorf("Extent = %v, want %v", b, want)
	}

	if _, ok := Extent([]orb.Geometry{orb.Polygon{}, orb.Ring{}}); ok {
		t.Error("Extent of only empty geometries should report !ok")
	}
}
