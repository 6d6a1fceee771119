package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/sector.balance/internal/config"
	"github.com/banshee-data/sector.balance/internal/fsutil"
	"github.com/banshee-data/sector.balance/internal/input"
	"github.com/banshee-data/sector.balance/internal/pipeline"
	"github.com/banshee-data/sector.balance/internal/report"
	"github.com/banshee-data/sector.balance/internal/security"
	"github.com/banshee-data/sector.balance/internal/store"
	"github.com/banshee-data/sector.balance/internal/units"
)

type runOptions struct {
	Config         string
	Regions        string
	RegionProperty string
	Events         string
	Streets        string
	Columns        input.EventColumns
	CellSize       string
	SnapTolerance  string

	OutDir   string
	NoReport bool
	Label    string
	DB       string
}

func optionsFromFlags() runOptions {
	return runOptions{
		Config:         *configPath,
		Regions:        *regionsPath,
		RegionProperty: *regionProp,
		Events:         *eventsPath,
		Streets:        *streetsPath,
		Columns:        eventColumns(),
		CellSize:       *cellSize,
		SnapTolerance:  *snapTolerance,
		OutDir:         *outDir,
		NoReport:       *noReport,
		Label:          *label,
		DB:             *dbPath,
	}
}

func runCommand(ctx context.Context) error {
	_, _, err := execute(ctx, fsutil.OSFileSystem{}, optionsFromFlags())
	return err
}

// loadConfig reads path, or the canonical defaults file when path is empty
// and the file exists, or falls back to built-in defaults.
func loadConfig(path string) (*config.TuningConfig, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			log.Printf("no config given and %s not found, using built-in defaults", config.DefaultConfigPath)
			return config.EmptyTuningConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// applyDistanceOverrides replaces cell_size and snap_tolerance with the
// flag values, converted to degrees.
func applyDistanceOverrides(cfg *config.TuningConfig, o runOptions) error {
	if o.CellSize != "" {
		d, err := units.ParseDistance(o.CellSize)
		if err != nil {
			return fmt.Errorf("-cell-size: %w", err)
		}
		v := d.Degrees()
		cfg.CellSize = &v
		log.Printf("cell size %s = %.6g°", d, v)
	}
	if o.SnapTolerance != "" {
		d, err := units.ParseDistance(o.SnapTolerance)
		if err != nil {
			return fmt.Errorf("-snap-tolerance: %w", err)
		}
		v := d.Degrees()
		cfg.SnapTolerance = &v
		log.Printf("snap tolerance %s = %.6g°", d, v)
	}
	return cfg.Validate()
}

func loadInputs(fs fsutil.FileSystem, o runOptions) (pipeline.Inputs, error) {
	var in pipeline.Inputs
	if o.Regions == "" {
		return in, errors.New("-regions is required")
	}
	if o.Events == "" {
		return in, errors.New("-events is required")
	}

	regions, err := input.LoadRegions(fs, o.Regions, o.RegionProperty)
	if err != nil {
		return in, err
	}
	in.Regions = regions

	events, stats, err := input.LoadEvents(fs, o.Events, o.Columns)
	if err != nil {
		return in, err
	}
	in.Events = events
	log.Printf("loaded %d regions and %d events (%d with bad numbers)", len(regions), stats.Rows, stats.BadNumbers)

	if o.Streets != "" {
		streets, skipped, err := input.LoadStreets(fs, o.Streets)
		if err != nil {
			return in, err
		}
		in.Streets = streets
		log.Printf("loaded %d street lines (%d non-line features skipped)", len(streets), skipped)
	}
	return in, nil
}

// execute runs one plan end to end and returns the result and the stored
// run id, empty when no database is configured.
func execute(ctx context.Context, fs fsutil.FileSystem, o runOptions) (*pipeline.Result, string, error) {
	cfg, err := loadConfig(o.Config)
	if err != nil {
		return nil, "", err
	}
	if err := applyDistanceOverrides(cfg, o); err != nil {
		return nil, "", err
	}
	in, err := loadInputs(fs, o)
	if err != nil {
		return nil, "", err
	}

	res, err := pipeline.Run(ctx, cfg, in)
	if err != nil {
		return nil, "", err
	}
	logSummary(res)

	if !o.NoReport {
		if err := security.ValidateOutputDir(o.OutDir); err != nil {
			return res, "", err
		}
		written, err := report.NewWriter(fs, o.OutDir, o.Label).WriteAll(res, in.Streets)
		if err != nil {
			return res, "", fmt.Errorf("write reports: %w", err)
		}
		for _, path := range written {
			log.Printf("wrote %s", path)
		}
	}

	if o.DB == "" {
		return res, "", nil
	}
	st, err := store.Open(o.DB)
	if err != nil {
		return res, "", fmt.Errorf("open %s: %w", o.DB, err)
	}
	defer st.Close()
	if err := st.MigrateUp(store.MigrationsFS()); err != nil {
		return res, "", err
	}
	id, err := st.SaveRun(ctx, res, store.RunMeta{
		Label:         o.Label,
		CellSize:      cfg.GetCellSize(),
		SnapTolerance: cfg.GetSnapTolerance(),
	})
	if err != nil {
		return res, "", err
	}
	log.Printf("saved run %s to %s", id, o.DB)
	return res, id, nil
}

func logSummary(res *pipeline.Result) {
	log.Printf("grid: %d cells (%d dropped); events: %d scored, %d malformed, %d unassigned",
		res.BuildStats.Assigned, res.BuildStats.Dropped,
		res.ScoreStats.Events, res.ScoreStats.Malformed, res.AggregateStats.Unassigned)
	for _, b := range res.Batches {
		log.Printf("batch %s (%s): %d cells moved", b.ID, b.Kind, len(b.Moved()))
	}
	for _, bar := range report.BarsFromComparison(res.Balance) {
		log.Printf("sector %3d: %10.1f → %10.1f", bar.Region, bar.Before, bar.After)
	}
	log.Print(report.ComparisonSubtitle(res.Balance))
	for _, s := range res.Sectors {
		if s.Err != nil {
			log.Printf("sector %d: %v", s.Region, s.Err)
		}
	}
}
