// Package pipeline runs a configured balancing plan end to end: grid,
// scoring, aggregation, the give and take batches, evaluation, smoothing.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/banshee-data/sector.balance/internal/config"
	"github.com/banshee-data/sector.balance/internal/grid"
	"github.com/banshee-data/sector.balance/internal/monitoring"
	"github.com/banshee-data/sector.balance/internal/rebalance"
	"github.com/banshee-data/sector.balance/internal/smooth"
	"github.com/banshee-data/sector.balance/internal/workload"
	"github.com/paulmach/orb"
)

var logf = monitoring.Stage("pipeline")

// Inputs are the parsed run inputs.
type Inputs struct {
	Regions []grid.Region
	Events  []workload.Event
	Streets []orb.LineString
}

// Result carries every intermediate snapshot and report of a run.
type Result struct {
	Base  *grid.Grid // after aggregation, before any transfer
	Final *grid.Grid

	BuildStats     grid.BuildStats
	ScoreStats     workload.ScoreStats
	AggregateStats workload.AggregateStats

	Batches []*rebalance.BatchReport
	Balance workload.Comparison
	Sectors []smooth.Sector
}

// Moved returns every cell moved by any batch, ascending.
func (r *Result) Moved() []int {
	seen := make(map[int]struct{})
	var ids []int
	for _, b := range r.Batches {
		for _, id := range b.Moved() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Run executes the plan in cfg: one give batch over the excess regions when
// any are configured, then one take batch per deficient step, in order.
func Run(ctx context.Context, cfg *config.TuningConfig, in Inputs) (*Result, error) {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res := &Result{}

	g, stats, err := grid.Build(in.Regions, cfg.GetCellSize())
	if err != nil {
		return nil, fmt.Errorf("build grid: %w", err)
	}
	res.BuildStats = stats

	scored, scoreStats, err := workload.Score(in.Events, workload.WeightsFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("score events: %w", err)
	}
	res.ScoreStats = scoreStats

	g, aggStats, err := workload.Aggregate(ctx, g, scored, cfg.GetWorkers())
	if err != nil {
		return nil, err
	}
	res.AggregateStats = aggStats
	res.Base = g

	rb, err := rebalance.New(cfg.GetNeighbors())
	if err != nil {
		return nil, err
	}
	if excess := cfg.GetExcessRegions(); len(excess) > 0 {
		var report *rebalance.BatchReport
		g, report, err = rb.GiveBulk(g, excess)
		if err != nil {
			return nil, fmt.Errorf("give from %v: %w", excess, err)
		}
		res.Batches = append(res.Batches, report)
	}
	for _, step := range cfg.GetDeficientSteps() {
		var report *rebalance.BatchReport
		g, report, err = rb.TakeBulk(g, step.Region, step.Neighbors)
		if err != nil {
			return nil, fmt.Errorf("take into %d: %w", step.Region, err)
		}
		res.Batches = append(res.Batches, report)
	}
	res.Final = g

	regions := res.Base.RegionIDs()
	res.Balance = workload.Compare(totals(res.Base, regions), totals(res.Final, regions))
	logf("variance %.3f → %.3f, max/min %.3f → %.3f (score %.1f)",
		res.Balance.Before.Variance, res.Balance.After.Variance,
		res.Balance.Before.Ratio, res.Balance.After.Ratio, res.Balance.VarianceScore())

	sm, err := smooth.New(in.Streets, cfg.GetSnapTolerance(), cfg.GetWorkers())
	if err != nil {
		return nil, err
	}
	res.Sectors, err = sm.Smooth(ctx, res.Final)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// totals returns the workload of each listed region, zero for regions with
// no cells left.
func totals(g *grid.Grid, regions []int) map[int]float64 {
	all := g.RegionWorkloads()
	out := make(map[int]float64, len(regions))
	for _, id := range regions {
		out[id] = all[id]
	}
	return out
}
