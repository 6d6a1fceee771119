// Package report renders the outputs of a balancing run: PNG maps, an
// HTML workload chart, a GeoJSON sector export and a per-cell CSV.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/banshee-data/sector.balance/internal/grid"
	"github.com/banshee-data/sector.balance/internal/smooth"
	"github.com/paulmach/orb"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrEmptyGrid is returned when there is nothing to draw.
var ErrEmptyGrid = errors.New("grid has no cells")

const (
	plotWidth = 8 * vg.Inch
	heatSteps = 64
)

var (
	movedColor  = color.RGBA{R: 220, G: 30, B: 30, A: 255}
	streetColor = color.RGBA{R: 40, G: 40, B: 40, A: 255}
)

// WorkloadHeatmap colours every cell by the total workload of the region it
// belongs to.
func WorkloadHeatmap(g *grid.Grid, title string) (*plot.Plot, error) {
	if g == nil || g.Len() == 0 {
		return nil, ErrEmptyGrid
	}
	totals := g.RegionWorkloads()
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, w := range totals {
		lo = math.Min(lo, w)
		hi = math.Max(hi, w)
	}
	heat := palette.Heat(heatSteps, 1).Colors()

	p := newMapPlot(title)
	for _, c := range g.Cells {
		f := 0.0
		if hi > lo {
			f = (totals[c.Region] - lo) / (hi - lo)
		}
		idx := int(f * float64(len(heat)-1))
		poly, err := cellPolygon(c, heat[idx], nil)
		if err != nil {
			return nil, err
		}
		p.Add(poly)
	}
	p.Title.Text = fmt.Sprintf("%s (%.1f to %.1f per sector)", title, lo, hi)
	return p, nil
}

// MovedCells draws the final assignment with one colour per region and
// outlines every moved cell.
func MovedCells(g *grid.Grid, moved []int, title string) (*plot.Plot, error) {
	if g == nil || g.Len() == 0 {
		return nil, ErrEmptyGrid
	}
	colors := regionColors(g.RegionIDs())
	isMoved := make(map[int]bool, len(moved))
	for _, id := range moved {
		isMoved[id] = true
	}

	p := newMapPlot(title)
	for _, c := range g.Cells {
		var outline *color.RGBA
		if isMoved[c.ID] {
			outline = &movedColor
		}
		poly, err := cellPolygon(c, colors[c.Region], outline)
		if err != nil {
			return nil, err
		}
		p.Add(poly)
	}
	if len(moved) > 0 {
		swatch, err := plotter.NewPolygon(plotter.XYs{{X: 0, Y: 0}})
		if err != nil {
			return nil, err
		}
		swatch.Color = color.Transparent
		swatch.LineStyle.Color = movedColor
		swatch.LineStyle.Width = vg.Points(1.5)
		p.Legend.Add(fmt.Sprintf("moved (%d)", len(moved)), swatch)
	}
	return p, nil
}

// Comparison draws the grid assignment faintly with the smoothed sector
// outlines and the street network on top.
func Comparison(g *grid.Grid, sectors []smooth.Sector, streets []orb.LineString, title string) (*plot.Plot, error) {
	if g == nil || g.Len() == 0 {
		return nil, ErrEmptyGrid
	}
	colors := regionColors(g.RegionIDs())

	p := newMapPlot(title)
	for _, c := range g.Cells {
		faint := colors[c.Region]
		faint.A = 90
		poly, err := cellPolygon(c, faint, nil)
		if err != nil {
			return nil, err
		}
		p.Add(poly)
	}

	view := g.Cells[0].Bound
	for _, c := range g.Cells[1:] {
		view = view.Union(c.Bound)
	}
	view = view.Pad(g.CellSize)
	for _, s := range streets {
		if !s.Bound().Intersects(view) {
			continue
		}
		line, err := plotter.NewLine(lineXYs(s))
		if err != nil {
			return nil, err
		}
		line.Color = streetColor
		line.Width = vg.Points(0.5)
		p.Add(line)
	}

	for _, sec := range sectors {
		if sec.Err != nil || sec.Smoothed == nil {
			continue
		}
		c := colors[sec.Region]
		c.A = 255
		first := true
		for _, r := range rings(sec.Smoothed) {
			line, err := plotter.NewLine(lineXYs(orb.LineString(r)))
			if err != nil {
				return nil, err
			}
			line.Color = c
			line.Width = vg.Points(2)
			p.Add(line)
			if first {
				p.Legend.Add(fmt.Sprintf("sector %d", sec.Region), line)
				first = false
			}
		}
	}
	return p, nil
}

// WritePNG renders p to w, sized to keep the map's aspect ratio.
func WritePNG(w io.Writer, p *plot.Plot, aspect float64) error {
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		aspect = 1
	}
	height := vg.Length(float64(plotWidth) * math.Min(math.Max(aspect, 0.25), 4))
	wt, err := p.WriterTo(plotWidth, height, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// Aspect returns height/width of the grid extent.
func Aspect(g *grid.Grid) float64 {
	if g == nil || g.Cols == 0 {
		return 1
	}
	return float64(g.Rows) / float64(g.Cols)
}

func newMapPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p
}

func cellPolygon(c grid.Cell, fill color.Color, outline *color.RGBA) (*plotter.Polygon, error) {
	ring := c.Polygon()[0]
	poly, err := plotter.NewPolygon(lineXYs(orb.LineString(ring)))
	if err != nil {
		return nil, fmt.Errorf("cell %d: %w", c.ID, err)
	}
	poly.Color = fill
	if outline != nil {
		poly.LineStyle.Color = *outline
		poly.LineStyle.Width = vg.Points(1.5)
	} else {
		poly.LineStyle.Width = 0
	}
	return poly, nil
}

func lineXYs(ls orb.LineString) plotter.XYs {
	xys := make(plotter.XYs, len(ls))
	for i, pt := range ls {
		xys[i] = plotter.XY{X: pt[0], Y: pt[1]}
	}
	return xys
}

func rings(g orb.Geometry) []orb.Ring {
	switch g := g.(type) {
	case orb.Polygon:
		return g
	case orb.MultiPolygon:
		var out []orb.Ring
		for _, p := range g {
			out = append(out, p...)
		}
		return out
	}
	return nil
}

// regionColors spreads the regions evenly around the hue wheel.
func regionColors(regions []int) map[int]color.RGBA {
	out := make(map[int]color.RGBA, len(regions))
	for i, id := range regions {
		r, g, b := hslToRGB(float64(i)/float64(len(regions)), 0.6, 0.55)
		out[id] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
