package testutil

import (
	"net/http"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

func TestAssertHelpers_PassingPaths(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
	AssertClose(t, "value", 1.0, 1.0+1e-12, 1e-9)
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest(http.MethodGet, "/debug/")
	if req.Method != http.MethodGet || req.URL.Path != "/debug/" {
		t.Errorf("request = %s %s", req.Method, req.URL.Path)
	}
	if rec := NewTestRecorder(); rec.Code != http.StatusOK {
		t.Errorf("recorder default code = %d", rec.Code)
	}
}

func TestRect(t *testing.T) {
	t.Parallel()

	p := Rect(0, 0, 2, 3)
	if !p[0].Closed() {
		t.Error("ring should be closed")
	}
	if a := planar.Area(p); a != 6 {
		t.Errorf("area = %g, want 6", a)
	}
	if o := p[0].Orientation(); o != orb.CCW {
		t.Errorf("orientation = %v, want CCW", o)
	}
}

func TestFixtures(t *testing.T) {
	t.Parallel()

	halves := SplitSquare()
	if len(halves) != 2 || planar.Area(halves[1]) != 8 || planar.Area(halves[2]) != 8 {
		t.Errorf("SplitSquare halves wrong: %v", halves)
	}

	stripes := Stripes(3, 2)
	if len(stripes) != 3 {
		t.Fatalf("Stripes(3) = %d regions", len(stripes))
	}
	if b := stripes[3].Bound(); b.Min[0] != 2 || b.Max[0] != 3 || b.Max[1] != 2 {
		t.Errorf("stripe 3 bound = %v", b)
	}

	pts := PointsIn(0, 0, 2, 4, 4)
	for _, p := range pts {
		if p[0] <= 0 || p[0] >= 2 || p[1] <= 0 || p[1] >= 4 {
			t.Errorf("point %v not strictly inside", p)
		}
	}
}
