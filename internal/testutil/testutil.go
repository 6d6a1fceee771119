// Package testutil provides shared test helpers and geometry fixtures.
//
// Fixtures return plain orb values so that any package, including the core
// stages, can use them from its tests without an import cycle.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertClose fails the test if got and want differ by more than tol.
func AssertClose(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %g, want %g (±%g)", name, got, want, tol)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// Rect returns the closed, counter-clockwise rectangle polygon spanning
// [minX,maxX] x [minY,maxY].
func Rect(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}

// SplitSquare returns the two halves of the 4x4 square at the origin split
// at x=2: region 1 on the left, region 2 on the right. With 1-unit cells
// each half holds 8 cells.
func SplitSquare() map[int]orb.Polygon {
	return map[int]orb.Polygon{
		1: Rect(0, 0, 2, 4),
		2: Rect(2, 0, 4, 4),
	}
}

// Stripes returns n vertical 1-wide, h-tall regions side by side, numbered
// 1..n from the left. Region i only touches regions i-1 and i+1.
func Stripes(n int, h float64) map[int]orb.Polygon {
	out := make(map[int]orb.Polygon, n)
	for i := 0; i < n; i++ {
		out[i+1] = Rect(float64(i), 0, float64(i+1), h)
	}
	return out
}

// PointsIn returns n points spread along the diagonal of the rectangle,
// away from its edges.
func PointsIn(minX, minY, maxX, maxY float64, n int) []orb.Point {
	pts := make([]orb.Point, n)
	for i := range pts {
		f := (float64(i) + 0.5) / float64(n)
		pts[i] = orb.Point{minX + f*(maxX-minX), minY + f*(maxY-minY)}
	}
	return pts
}
