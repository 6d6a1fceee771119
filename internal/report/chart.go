package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/banshee-data/sector.balance/internal/workload"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// RegionBar is one region's workload before and after rebalancing.
type RegionBar struct {
	Region int
	Before float64
	After  float64
}

// BarsFromComparison lines up the before and after snapshots by region.
func BarsFromComparison(c workload.Comparison) []RegionBar {
	after := make(map[int]float64, len(c.After.Regions))
	for i, id := range c.After.Regions {
		after[id] = c.After.Workloads[i]
	}
	bars := make([]RegionBar, len(c.Before.Regions))
	for i, id := range c.Before.Regions {
		bars[i] = RegionBar{Region: id, Before: c.Before.Workloads[i], After: after[id]}
	}
	return bars
}

// WorkloadChart builds a grouped bar chart of per-region workload.
func WorkloadChart(bars []RegionBar, title, subtitle string) *charts.Bar {
	x := make([]string, len(bars))
	before := make([]opts.BarData, len(bars))
	after := make([]opts.BarData, len(bars))
	for i, b := range bars {
		x[i] = strconv.Itoa(b.Region)
		before[i] = opts.BarData{Value: round1(b.Before)}
		after[i] = opts.BarData{Value: round1(b.After)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Sector", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Workload"}),
	)
	bar.SetXAxis(x).
		AddSeries("before", before).
		AddSeries("after", after)
	return bar
}

// RenderWorkloadChart writes the chart as a standalone HTML page.
func RenderWorkloadChart(w io.Writer, bars []RegionBar, title, subtitle string) error {
	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(WorkloadChart(bars, title, subtitle))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// ComparisonSubtitle summarises a comparison in one line.
func ComparisonSubtitle(c workload.Comparison) string {
	return fmt.Sprintf("variance %.2f → %.2f, max/min %.2f → %.2f, score %.1f/10",
		c.Before.Variance, c.After.Variance, c.Before.Ratio, c.After.Ratio, c.VarianceScore())
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
