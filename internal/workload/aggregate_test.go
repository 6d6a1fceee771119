package workload

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/sector.balance/internal/grid"
	"github.com/banshee-data/sector.balance/internal/testutil"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitGrid(t *testing.T) *grid.Grid {
	t.Helper()
	halves := testutil.SplitSquare()
	g, _, err := grid.Build([]grid.Region{
		{ID: 1, Geometry: halves[1]},
		{ID: 2, Geometry: halves[2]},
	}, 1)
	require.NoError(t, err)
	return g
}

func unitEvents(pts []orb.Point) []ScoredEvent {
	out := make([]ScoredEvent, len(pts))
	for i, p := range pts {
		out[i] = ScoredEvent{Location: p, Score: 1.0}
	}
	return out
}

func TestAggregate_AllEventsInOneRegion(t *testing.T) {
	g := splitGrid(t)
	events := unitEvents(testutil.PointsIn(0, 0, 2, 4, 10))

	out, stats, err := Aggregate(context.Background(), g, events, 4)
	require.NoError(t, err)

	assert.Equal(t, AggregateStats{Events: 10, Assigned: 10}, stats)
	totals := out.RegionWorkloads()
	assert.InDelta(t, 10.0, totals[1], 1e-12)
	assert.Equal(t, 0.0, totals[2])
	assert.InDelta(t, 10.0, out.TotalWorkload(), 1e-12)

	// Input snapshot untouched.
	assert.Equal(t, 0.0, g.TotalWorkload())
	assert.Equal(t, g.Version+1, out.Version)
}

func TestAggregate_ResetsExistingWorkload(t *testing.T) {
	g := splitGrid(t)
	for i := range g.Cells {
		g.Cells[i].Workload = 3
	}
	out, _, err := Aggregate(context.Background(), g, unitEvents([]orb.Point{{3.5, 3.5}}), 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.TotalWorkload())
	assert.Equal(t, 1.0, out.Cells[15].Workload)
}

func TestCellIndex_Nearest(t *testing.T) {
	g := splitGrid(t)
	idx, err := NewCellIndex(g)
	require.NoError(t, err)

	tests := []struct {
		name string
		p    orb.Point
		want int
	}{
		{"inside cell", orb.Point{2.7, 1.2}, 9},
		{"four-way tie takes lowest id", orb.Point{1, 1}, 0},
		{"tie at the region split", orb.Point{2, 2}, 5},
		{"edge tie", orb.Point{0.5, 1}, 0},
		{"outside the grid", orb.Point{100, 100}, 15},
		{"outside below", orb.Point{1.4, -50}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := idx.Nearest(tt.p)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	empty, err := NewCellIndex(&grid.Grid{})
	require.NoError(t, err)
	_, ok := empty.Nearest(orb.Point{0, 0})
	assert.False(t, ok)
}

func TestAggregate_UnassignableEvents(t *testing.T) {
	g := splitGrid(t)
	events := unitEvents([]orb.Point{{1, 1}, {math.NaN(), 1}, {1, math.Inf(1)}})

	out, stats, err := Aggregate(context.Background(), g, events, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Assigned)
	assert.Equal(t, 2, stats.Unassigned)
	assert.Equal(t, 1.0, out.TotalWorkload())

	_, stats, err = Aggregate(context.Background(), &grid.Grid{}, events, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Unassigned)
}

func TestAggregate_WorkerCountDoesNotChangeResult(t *testing.T) {
	g := splitGrid(t)

	// Deterministic scatter over and around the grid.
	var events []ScoredEvent
	seed := uint32(7)
	next := func() float64 {
		seed = seed*1664525 + 1013904223
		return float64(seed) / float64(math.MaxUint32)
	}
	for i := 0; i < 5000; i++ {
		events = append(events, ScoredEvent{
			Location: orb.Point{next()*5 - 0.5, next()*5 - 0.5},
			Score:    next(),
		})
	}

	seq, _, err := Aggregate(context.Background(), g, events, 1)
	require.NoError(t, err)
	par, _, err := Aggregate(context.Background(), g, events, 7)
	require.NoError(t, err)

	for i := range seq.Cells {
		if seq.Cells[i].Workload != par.Cells[i].Workload {
			t.Fatalf("cell %d: sequential %v != parallel %v", i, seq.Cells[i].Workload, par.Cells[i].Workload)
		}
	}
}

func TestAggregate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Aggregate(ctx, splitGrid(t), unitEvents([]orb.Point{{1, 1}}), 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
