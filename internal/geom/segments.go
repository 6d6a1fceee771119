package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// Segment is one straight piece of a reference line.
type Segment struct {
	A, B orb.Point
	Line int // index of the source line in input order
}

// SegmentIndex answers "nearest point on any reference segment within a
// tolerance" queries. Segments are kept in input order so that ties resolve
// to the first segment encountered.
type SegmentIndex struct {
	tree     rtree.RTree
	segments []Segment
}

// NewSegmentIndex splits every line into its segments and indexes their
// bounding boxes. Zero-length lines contribute a single degenerate segment.
func NewSegmentIndex(lines []orb.LineString) *SegmentIndex {
	si := &SegmentIndex{}
	for li, line := range lines {
		switch len(line) {
		case 0:
			continue
		case 1:
			si.add(Segment{A: line[0], B: line[0], Line: li})
			continue
		}
		for i := 0; i+1 < len(line); i++ {
			si.add(Segment{A: line[i], B: line[i+1], Line: li})
		}
	}
	return si
}

func (si *SegmentIndex) add(s Segment) {
	idx := len(si.segments)
	si.segments = append(si.segments, s)
	min := [2]float64{math.Min(s.A[0], s.B[0]), math.Min(s.A[1], s.B[1])}
	max := [2]float64{math.Max(s.A[0], s.B[0]), math.Max(s.A[1], s.B[1])}
	si.tree.Insert(min, max, idx)
}

// Len returns the number of indexed segments.
func (si *SegmentIndex) Len() int {
	return len(si.segments)
}

// Segment returns the i-th segment in input order.
func (si *SegmentIndex) Segment(i int) Segment {
	return si.segments[i]
}

// Nearest returns the closest point to p over all segments whose distance to
// p is at most tolerance, together with that segment's index. Equal
// distances resolve to the lowest segment index. ok is false when no segment
// is within tolerance, or when tolerance is negative or NaN.
func (si *SegmentIndex) Nearest(p orb.Point, tolerance float64) (nearest orb.Point, segment int, ok bool) {
	if !(tolerance >= 0) || len(si.segments) == 0 {
		return p, -1, false
	}

	min := [2]float64{p[0] - tolerance, p[1] - tolerance}
	max := [2]float64{p[0] + tolerance, p[1] + tolerance}

	best := math.Inf(1)
	segment = -1
	si.tree.Search(min, max, func(_, _ [2]float64, data interface{}) bool {
		idx := data.(int)
		s := si.segments[idx]
		q := NearestOnSegment(s.A, s.B, p)
		d := Distance(p, q)
		if d > tolerance {
			return true
		}
		if d < best || (d == best && idx < segment) {
			best, segment, nearest = d, idx, q
		}
		return true
	})

	if segment < 0 {
		return p, -1, false
	}
	return nearest, segment, true
}
