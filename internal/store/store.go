// Package store persists balancing runs to SQLite: the per-cell assignment,
// region totals, every transfer attempt and the smoothed sector outlines.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/sector.balance/internal/monitoring"
	"github.com/banshee-data/sector.balance/internal/pipeline"
	"github.com/banshee-data/sector.balance/internal/timeutil"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("run not found")

var logf = monitoring.Stage("store")

type Store struct {
	*sql.DB
	path  string
	clock timeutil.Clock
}

// Open opens (or creates) the database at path. The schema is managed by
// the embedded migrations; call MigrateUp before saving runs.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent and serialises
	// writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure %s: %w", path, err)
	}
	return &Store{DB: db, path: path, clock: timeutil.RealClock{}}, nil
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// SetClock replaces the clock used to stamp runs.
func (s *Store) SetClock(c timeutil.Clock) {
	s.clock = c
}

// RunMeta is the run context not carried by a pipeline result.
type RunMeta struct {
	Label         string
	CellSize      float64
	SnapTolerance float64
}

// Run is one stored run summary.
type Run struct {
	ID            string
	CreatedAt     time.Time
	Label         string
	CellSize      float64
	SnapTolerance float64

	Cells      int
	Dropped    int
	Events     int
	Malformed  int
	Unassigned int
	Moved      int

	// NaN when the value was not finite.
	VarianceBefore float64
	VarianceAfter  float64
	RatioBefore    float64
	RatioAfter     float64
	VarianceScore  float64
}

// RegionTotal is a region's workload before and after rebalancing.
type RegionTotal struct {
	Region          int
	Before          float64
	After           float64
	DeviationBefore float64
	DeviationAfter  float64
}

// Transfer is one stored donor → recipient attempt.
type Transfer struct {
	BatchID         string
	BatchSeq        int
	PairSeq         int
	Kind            string
	Donor           int
	Recipient       int
	Moved           int
	DonorBefore     float64
	DonorAfter      float64
	RecipientBefore float64
	RecipientAfter  float64
	Err             string
}

// SectorRecord is a stored smoothed sector. GeoJSON is empty when the
// region's outline was degenerate, in which case Err is set.
type SectorRecord struct {
	Region   int
	Cells    int
	Workload float64
	Vertices int
	Snapped  int
	GeoJSON  string
	Err      string
}

// SaveRun writes res in a single transaction and returns the new run id.
func (s *Store) SaveRun(ctx context.Context, res *pipeline.Result, meta RunMeta) (string, error) {
	if res == nil || res.Base == nil || res.Final == nil {
		return "", errors.New("incomplete pipeline result")
	}
	if res.Base.Len() != res.Final.Len() {
		return "", fmt.Errorf("base grid has %d cells, final grid has %d", res.Base.Len(), res.Final.Len())
	}

	id := uuid.New().String()
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if err := insertRun(ctx, tx, id, s.clock.Now(), res, meta); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	if err := insertCells(ctx, tx, id, res); err != nil {
		return "", fmt.Errorf("insert cells: %w", err)
	}
	if err := insertRegions(ctx, tx, id, res); err != nil {
		return "", fmt.Errorf("insert regions: %w", err)
	}
	if err := insertTransfers(ctx, tx, id, res); err != nil {
		return "", fmt.Errorf("insert transfers: %w", err)
	}
	if err := insertSectors(ctx, tx, id, res); err != nil {
		return "", fmt.Errorf("insert sectors: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	logf("saved run %s: %d cells, %d batches, %d sectors", id, res.Final.Len(), len(res.Batches), len(res.Sectors))
	return id, nil
}

func insertRun(ctx context.Context, tx *sql.Tx, id string, at time.Time, res *pipeline.Result, meta RunMeta) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, created_at, label, cell_size, snap_tolerance,
			cells, dropped_cells, events, malformed_events, unassigned_events, moved_cells,
			variance_before, variance_after, ratio_before, ratio_after, variance_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, at.UTC().Format(time.RFC3339Nano), meta.Label, meta.CellSize, meta.SnapTolerance,
		res.Final.Len(), res.BuildStats.Dropped, res.ScoreStats.Events, res.ScoreStats.Malformed,
		res.AggregateStats.Unassigned, len(res.Moved()),
		nullFloat(res.Balance.Before.Variance), nullFloat(res.Balance.After.Variance),
		nullFloat(res.Balance.Before.Ratio), nullFloat(res.Balance.After.Ratio),
		nullFloat(res.Balance.VarianceScore()),
	)
	return err
}

func insertCells(ctx context.Context, tx *sql.Tx, id string, res *pipeline.Result) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cells (
			run_id, cell_id, col, row, min_x, min_y, max_x, max_y,
			base_region, final_region, workload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range res.Final.Cells {
		if _, err := stmt.ExecContext(ctx, id, c.ID, c.Col, c.Row,
			c.Bound.Min[0], c.Bound.Min[1], c.Bound.Max[0], c.Bound.Max[1],
			res.Base.Cells[i].Region, c.Region, c.Workload); err != nil {
			return fmt.Errorf("cell %d: %w", c.ID, err)
		}
	}
	return nil
}

func insertRegions(ctx context.Context, tx *sql.Tx, id string, res *pipeline.Result) error {
	before, after := res.Balance.Before, res.Balance.After
	if len(before.Regions) != len(after.Regions) {
		return fmt.Errorf("before has %d regions, after has %d", len(before.Regions), len(after.Regions))
	}
	for i, region := range before.Regions {
		if after.Regions[i] != region {
			return fmt.Errorf("region %d missing from after snapshot", region)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO regions (
				run_id, region_id, workload_before, workload_after, deviation_before, deviation_after
			) VALUES (?, ?, ?, ?, ?, ?)`,
			id, region, before.Workloads[i], after.Workloads[i],
			before.Deviation[i], after.Deviation[i]); err != nil {
			return fmt.Errorf("region %d: %w", region, err)
		}
	}
	return nil
}

func insertTransfers(ctx context.Context, tx *sql.Tx, id string, res *pipeline.Result) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transfers (
			run_id, batch_id, batch_seq, pair_seq, kind, donor, recipient, moved_cells,
			donor_before, donor_after, recipient_before, recipient_after, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for b, batch := range res.Batches {
		for p, pair := range batch.Pairs {
			var errText sql.NullString
			if pair.Err != nil {
				errText = sql.NullString{String: pair.Err.Error(), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, id, batch.ID, b, p, string(batch.Kind),
				pair.Donor, pair.Recipient, len(pair.Moved),
				pair.DonorBefore, pair.DonorAfter, pair.RecipientBefore, pair.RecipientAfter,
				errText); err != nil {
				return fmt.Errorf("batch %s pair %d: %w", batch.ID, p, err)
			}
		}
	}
	return nil
}

func insertSectors(ctx context.Context, tx *sql.Tx, id string, res *pipeline.Result) error {
	for _, sec := range res.Sectors {
		var geo, errText sql.NullString
		if sec.Err != nil {
			errText = sql.NullString{String: sec.Err.Error(), Valid: true}
		} else if sec.Smoothed != nil {
			data, err := geojson.NewGeometry(sec.Smoothed).MarshalJSON()
			if err != nil {
				return fmt.Errorf("sector %d: %w", sec.Region, err)
			}
			geo = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sectors (run_id, region_id, cells, workload, vertices, snapped, geojson, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, sec.Region, sec.Cells, sec.Workload, sec.Vertices, sec.Snapped, geo, errText); err != nil {
			return fmt.Errorf("sector %d: %w", sec.Region, err)
		}
	}
	return nil
}

// Runs returns every stored run, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.QueryContext(ctx, runSelect+` ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.QueryRowContext(ctx, runSelect+` WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestRun returns the most recently created run.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	r, err := scanRun(s.QueryRowContext(ctx, runSelect+` ORDER BY created_at DESC, run_id LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const runSelect = `
	SELECT run_id, created_at, label, cell_size, snap_tolerance,
		cells, dropped_cells, events, malformed_events, unassigned_events, moved_cells,
		variance_before, variance_after, ratio_before, ratio_after, variance_score
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r       Run
		created string
		vb, va  sql.NullFloat64
		rb, ra  sql.NullFloat64
		score   sql.NullFloat64
	)
	if err := sc.Scan(&r.ID, &created, &r.Label, &r.CellSize, &r.SnapTolerance,
		&r.Cells, &r.Dropped, &r.Events, &r.Malformed, &r.Unassigned, &r.Moved,
		&vb, &va, &rb, &ra, &score); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: bad created_at %q: %w", r.ID, created, err)
	}
	r.CreatedAt = t
	r.VarianceBefore = floatOrNaN(vb)
	r.VarianceAfter = floatOrNaN(va)
	r.RatioBefore = floatOrNaN(rb)
	r.RatioAfter = floatOrNaN(ra)
	r.VarianceScore = floatOrNaN(score)
	return r, nil
}

// RegionTotals returns the region workloads of a run, ascending by region.
func (s *Store) RegionTotals(ctx context.Context, runID string) ([]RegionTotal, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT region_id, workload_before, workload_after, deviation_before, deviation_after
		FROM regions WHERE run_id = ? ORDER BY region_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RegionTotal
	for rows.Next() {
		var t RegionTotal
		if err := rows.Scan(&t.Region, &t.Before, &t.After, &t.DeviationBefore, &t.DeviationAfter); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Transfers returns the transfer attempts of a run in execution order.
func (s *Store) Transfers(ctx context.Context, runID string) ([]Transfer, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT batch_id, batch_seq, pair_seq, kind, donor, recipient, moved_cells,
			donor_before, donor_after, recipient_before, recipient_after, error
		FROM transfers WHERE run_id = ? ORDER BY batch_seq, pair_seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		var (
			t       Transfer
			errText sql.NullString
		)
		if err := rows.Scan(&t.BatchID, &t.BatchSeq, &t.PairSeq, &t.Kind, &t.Donor, &t.Recipient, &t.Moved,
			&t.DonorBefore, &t.DonorAfter, &t.RecipientBefore, &t.RecipientAfter, &errText); err != nil {
			return nil, err
		}
		t.Err = errText.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// Sectors returns the smoothed sectors of a run, ascending by region.
func (s *Store) Sectors(ctx context.Context, runID string) ([]SectorRecord, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT region_id, cells, workload, vertices, snapped, geojson, error
		FROM sectors WHERE run_id = ? ORDER BY region_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SectorRecord
	for rows.Next() {
		var (
			r            SectorRecord
			geo, errText sql.NullString
		)
		if err := rows.Scan(&r.Region, &r.Cells, &r.Workload, &r.Vertices, &r.Snapped, &geo, &errText); err != nil {
			return nil, err
		}
		r.GeoJSON = geo.String
		r.Err = errText.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Assignment returns the final region of every cell of a run, indexed by
// cell id.
func (s *Store) Assignment(ctx context.Context, runID string) ([]int, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT final_region FROM cells WHERE run_id = ? ORDER BY cell_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var region int
		if err := rows.Scan(&region); err != nil {
			return nil, err
		}
		out = append(out, region)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and everything recorded for it.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
