package geom

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// SpatialIndex buckets items by the square bucket containing a reference
// point (a cell centroid). Bucket size should match the grid cell size so
// that every touching cell lies in the 3x3 bucket neighbourhood.
type SpatialIndex struct {
	Origin     orb.Point
	BucketSize float64
	Buckets    map[int64][]int // bucket ID → item IDs
}

// NewSpatialIndex creates a spatial index anchored at origin. Anchoring at
// the grid origin keeps centroids in the middle of their bucket, away from
// bucket edges where floor() could round either way.
func NewSpatialIndex(origin orb.Point, bucketSize float64) *SpatialIndex {
	return &SpatialIndex{
		Origin:     origin,
		BucketSize: bucketSize,
		Buckets:    make(map[int64][]int),
	}
}

// Insert adds item id at point p.
func (si *SpatialIndex) Insert(id int, p orb.Point) {
	bx, by := si.bucketCoords(p)
	key := pairBuckets(bx, by)
	si.Buckets[key] = append(si.Buckets[key], id)
}

// Near returns the IDs of all items in the 3x3 bucket neighbourhood of p,
// in ascending order.
func (si *SpatialIndex) Near(p orb.Point) []int {
	bx, by := si.bucketCoords(p)

	var out []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			out = append(out, si.Buckets[pairBuckets(bx+dx, by+dy)]...)
		}
	}
	sort.Ints(out)
	return out
}

// Len returns the number of non-empty buckets.
func (si *SpatialIndex) Len() int {
	return len(si.Buckets)
}

func (si *SpatialIndex) bucketCoords(p orb.Point) (int64, int64) {
	return int64(math.Floor((p[0] - si.Origin[0]) / si.BucketSize)),
		int64(math.Floor((p[1] - si.Origin[1]) / si.BucketSize))
}

// pairBuckets computes a unique bucket identifier using Szudzik's pairing
// function over zigzag-encoded coordinates, so negative buckets are valid.
func pairBuckets(x, y int64) int64 {
	var a, b int64
	if x >= 0 {
		a = 2 * x
	} else {
		a = -2*x - 1
	}
	if y >= 0 {
		b = 2 * y
	} else {
		b = -2*y - 1
	}

	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}
