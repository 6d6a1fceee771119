package workload

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Balance describes how evenly workload is spread over regions.
type Balance struct {
	Regions   []int     // ascending
	Workloads []float64 // aligned with Regions
	Mean      float64
	Variance  float64   // population variance
	Ratio     float64   // max/min; +Inf when only the minimum is 0
	Deviation []float64 // percent from mean, aligned with Regions; 0 when the mean is 0
}

// EvaluateBalance computes balance statistics over per-region workloads.
func EvaluateBalance(workloads map[int]float64) Balance {
	b := Balance{}
	if len(workloads) == 0 {
		return b
	}
	for id := range workloads {
		b.Regions = append(b.Regions, id)
	}
	sort.Ints(b.Regions)
	b.Workloads = make([]float64, len(b.Regions))
	for i, id := range b.Regions {
		b.Workloads[i] = workloads[id]
	}

	b.Mean = stat.Mean(b.Workloads, nil)
	b.Variance = stat.PopVariance(b.Workloads, nil)

	lo, hi := floats.Min(b.Workloads), floats.Max(b.Workloads)
	switch {
	case lo == 0 && hi == 0:
		b.Ratio = math.NaN()
	case lo == 0:
		b.Ratio = math.Inf(1)
	default:
		b.Ratio = hi / lo
	}

	b.Deviation = make([]float64, len(b.Workloads))
	if b.Mean != 0 {
		for i, w := range b.Workloads {
			b.Deviation[i] = (w - b.Mean) / b.Mean * 100
		}
	}
	return b
}

// Total returns the summed workload.
func (b Balance) Total() float64 {
	return floats.Sum(b.Workloads)
}

// Comparison pairs the balance before and after rebalancing.
type Comparison struct {
	Before Balance
	After  Balance
}

// Compare evaluates both snapshots.
func Compare(before, after map[int]float64) Comparison {
	return Comparison{Before: EvaluateBalance(before), After: EvaluateBalance(after)}
}

// VarianceScore rates the after-variance on the 1-10 scale with the
// before-variance as the worst case and perfect balance as the best.
func (c Comparison) VarianceScore() float64 {
	return NormalizedScore(c.After.Variance, c.Before.Variance, 0)
}

// NormalizedScore maps value onto 1..10 where worst scores 1 and best scores
// 10. The result is clamped and rounded to one decimal. When worst equals
// best, any value at or better than best scores 10 and anything else 1.
func NormalizedScore(value, worst, best float64) float64 {
	if worst == best {
		if value <= best {
			return 10
		}
		return 1
	}
	s := (worst - value) / (worst - best)
	s = math.Max(0, math.Min(1, s))
	return math.Round((s*9+1)*10) / 10
}
