package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/sector.balance/internal/fsutil"
	"github.com/banshee-data/sector.balance/internal/grid"
	"github.com/banshee-data/sector.balance/internal/monitoring"
	"github.com/banshee-data/sector.balance/internal/pipeline"
	"github.com/banshee-data/sector.balance/internal/security"
	"github.com/banshee-data/sector.balance/internal/smooth"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var logf = monitoring.Stage("report")

// SectorsFeatureCollection exports the smoothed sectors. Regions whose
// outline was degenerate are left out.
func SectorsFeatureCollection(sectors []smooth.Sector) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range sectors {
		if s.Err != nil || s.Smoothed == nil {
			continue
		}
		f := geojson.NewFeature(s.Smoothed)
		f.Properties["Sector"] = s.Region
		f.Properties["workload"] = s.Workload
		f.Properties["cells"] = s.Cells
		f.Properties["snapped"] = s.Snapped
		fc.Append(f)
	}
	return fc
}

var cellsHeader = []string{"cell_id", "col", "row", "x", "y", "base_region", "final_region", "workload"}

// WriteCellsCSV writes one row per cell with its base and final region.
func WriteCellsCSV(w io.Writer, base, final *grid.Grid) error {
	if base.Len() != final.Len() {
		return fmt.Errorf("base grid has %d cells, final grid has %d", base.Len(), final.Len())
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(cellsHeader); err != nil {
		return err
	}
	for i, c := range final.Cells {
		rec := []string{
			strconv.Itoa(c.ID),
			strconv.Itoa(c.Col),
			strconv.Itoa(c.Row),
			strconv.FormatFloat(c.Centroid[0], 'f', -1, 64),
			strconv.FormatFloat(c.Centroid[1], 'f', -1, 64),
			strconv.Itoa(base.Cells[i].Region),
			strconv.Itoa(c.Region),
			strconv.FormatFloat(c.Workload, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Writer writes the report files of a run into one directory.
type Writer struct {
	FS     fsutil.FileSystem
	Dir    string
	Prefix string // file name prefix, sanitised
}

// NewWriter returns a Writer for dir. prefix may be empty.
func NewWriter(fs fsutil.FileSystem, dir, prefix string) *Writer {
	if prefix != "" {
		prefix = security.SanitizeFilename(prefix) + "_"
	}
	return &Writer{FS: fs, Dir: dir, Prefix: prefix}
}

// WriteAll renders every report for res and returns the paths written.
func (w *Writer) WriteAll(res *pipeline.Result, streets []orb.LineString) ([]string, error) {
	if res == nil || res.Base == nil || res.Final == nil {
		return nil, fmt.Errorf("incomplete pipeline result")
	}
	if err := w.FS.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", w.Dir, err)
	}

	var written []string
	emit := func(name string, render func(io.Writer) error) error {
		var buf bytes.Buffer
		if err := render(&buf); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		path := filepath.Join(w.Dir, w.Prefix+name)
		if err := w.FS.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	aspect := Aspect(res.Final)
	steps := []struct {
		name   string
		render func(io.Writer) error
	}{
		{"sectors.geojson", func(out io.Writer) error {
			data, err := SectorsFeatureCollection(res.Sectors).MarshalJSON()
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		}},
		{"cells.csv", func(out io.Writer) error {
			return WriteCellsCSV(out, res.Base, res.Final)
		}},
		{"workload_before.png", func(out io.Writer) error {
			p, err := WorkloadHeatmap(res.Base, "Workload before rebalancing")
			if err != nil {
				return err
			}
			return WritePNG(out, p, aspect)
		}},
		{"workload_after.png", func(out io.Writer) error {
			p, err := WorkloadHeatmap(res.Final, "Workload after rebalancing")
			if err != nil {
				return err
			}
			return WritePNG(out, p, aspect)
		}},
		{"moved_cells.png", func(out io.Writer) error {
			p, err := MovedCells(res.Final, res.Moved(), "Reassigned cells")
			if err != nil {
				return err
			}
			return WritePNG(out, p, aspect)
		}},
		{"comparison.png", func(out io.Writer) error {
			p, err := Comparison(res.Final, res.Sectors, streets, "Grid sectors and smoothed outlines")
			if err != nil {
				return err
			}
			return WritePNG(out, p, aspect)
		}},
		{"workload_chart.html", func(out io.Writer) error {
			return RenderWorkloadChart(out, BarsFromComparison(res.Balance),
				"Sector workload", ComparisonSubtitle(res.Balance))
		}},
	}
	for _, s := range steps {
		if err := emit(s.name, s.render); err != nil {
			return written, err
		}
	}
	logf("wrote %d files to %s", len(written), w.Dir)
	return written, nil
}
