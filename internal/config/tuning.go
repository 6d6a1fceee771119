package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// ErrInvalidConfiguration is wrapped by every validation failure, both here
// and in the stages that reject bad parameters before doing any work.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// weightSumTolerance bounds the floating error accepted when checking that
// the scoring weights form a convex combination.
const weightSumTolerance = 1e-9

// TuningConfig represents the root configuration for a sector balancing run.
// Fields omitted from the JSON file fall back to the defaults returned by the
// Get* accessors.
type TuningConfig struct {
	// Grid params
	CellSize *float64 `json:"cell_size,omitempty"`

	// Scoring params
	SeverityWeights map[int]float64 `json:"severity_weights,omitempty"`
	OutcomeWeights  *OutcomeWeights `json:"outcome_weights,omitempty"`
	ScoreWeights    *ScoreWeights   `json:"score_weights,omitempty"`

	// Rebalancing params
	Neighbors      map[int][]int   `json:"neighbors,omitempty"`
	ExcessRegions  []int           `json:"excess_regions,omitempty"`
	DeficientSteps []DeficientStep `json:"deficient_steps,omitempty"`

	// Smoothing params
	SnapTolerance *float64 `json:"snap_tolerance,omitempty"`

	// Workers bounds the data-parallel stages (aggregation, smoothing).
	Workers *int `json:"workers,omitempty"`
}

// OutcomeWeights maps resolution outcome classes to weights.
type OutcomeWeights struct {
	Arrest float64 `json:"arrest"`
	Case   float64 `json:"case"`
	Other  float64 `json:"other"`
}

// ScoreWeights are the three components of the per-event score. They must
// sum to 1.0.
type ScoreWeights struct {
	Severity float64 `json:"severity"`
	Response float64 `json:"response"`
	Outcome  float64 `json:"outcome"`
}

// Sum returns the total of the three component weights.
func (w ScoreWeights) Sum() float64 {
	return w.Severity + w.Response + w.Outcome
}

// DeficientStep asks the deficient Region to pull boundary cells from each of
// Neighbors, in order.
type DeficientStep struct {
	Region    int   `json:"region"`
	Neighbors []int `json:"neighbors"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseTuningConfig(data)
}

// ParseTuningConfig decodes and validates a JSON tuning document.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/sectors/ or deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable. Every failure
// wraps ErrInvalidConfiguration.
func (c *TuningConfig) Validate() error {
	if c.CellSize != nil && !(*c.CellSize > 0) {
		return fmt.Errorf("%w: cell_size must be positive, got %g", ErrInvalidConfiguration, *c.CellSize)
	}
	if c.SnapTolerance != nil && (*c.SnapTolerance < 0 || math.IsNaN(*c.SnapTolerance)) {
		return fmt.Errorf("%w: snap_tolerance must be non-negative, got %g", ErrInvalidConfiguration, *c.SnapTolerance)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfiguration, *c.Workers)
	}

	for ordinal, w := range c.SeverityWeights {
		if w < 0 {
			return fmt.Errorf("%w: severity weight for %d is negative (%g)", ErrInvalidConfiguration, ordinal, w)
		}
	}
	if ow := c.OutcomeWeights; ow != nil && (ow.Arrest < 0 || ow.Case < 0 || ow.Other < 0) {
		return fmt.Errorf("%w: outcome weights must be non-negative, got %+v", ErrInvalidConfiguration, *ow)
	}
	if sw := c.ScoreWeights; sw != nil {
		if sw.Severity < 0 || sw.Response < 0 || sw.Outcome < 0 {
			return fmt.Errorf("%w: score weights must be non-negative, got %+v", ErrInvalidConfiguration, *sw)
		}
		if math.Abs(sw.Sum()-1.0) > weightSumTolerance {
			return fmt.Errorf("%w: score weights must sum to 1.0, got %g", ErrInvalidConfiguration, sw.Sum())
		}
	}

	neighbors := c.GetNeighbors()
	for region, list := range neighbors {
		if region <= 0 {
			return fmt.Errorf("%w: region ids must be positive, got %d", ErrInvalidConfiguration, region)
		}
		for _, n := range list {
			if n == region {
				return fmt.Errorf("%w: region %d lists itself as a neighbor", ErrInvalidConfiguration, region)
			}
			if _, ok := neighbors[n]; !ok {
				return fmt.Errorf("%w: region %d lists unknown neighbor %d", ErrInvalidConfiguration, region, n)
			}
		}
	}
	for _, r := range c.GetExcessRegions() {
		if _, ok := neighbors[r]; !ok {
			return fmt.Errorf("%w: excess region %d is not in the neighbor whitelist", ErrInvalidConfiguration, r)
		}
	}
	for _, step := range c.GetDeficientSteps() {
		if _, ok := neighbors[step.Region]; !ok {
			return fmt.Errorf("%w: deficient region %d is not in the neighbor whitelist", ErrInvalidConfiguration, step.Region)
		}
	}

	return nil
}

// GetCellSize returns the cell_size value or the default (~100m in degrees).
func (c *TuningConfig) GetCellSize() float64 {
	if c.CellSize == nil {
		return 0.001
	}
	return *c.CellSize
}

// GetSnapTolerance returns the snap_tolerance value or the default, in the
// same units as the region coordinates (~50m in degrees).
func (c *TuningConfig) GetSnapTolerance() float64 {
	if c.SnapTolerance == nil {
		return 0.0005
	}
	return *c.SnapTolerance
}

// GetWorkers returns the workers value or the default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetSeverityWeights returns the severity ordinal → weight table or the default.
func (c *TuningConfig) GetSeverityWeights() map[int]float64 {
	if len(c.SeverityWeights) == 0 {
		return map[int]float64{1: 1.0, 2: 0.7, 3: 0.4, 4: 0.2, 5: 0.1}
	}
	return c.SeverityWeights
}

// GetOutcomeWeights returns the outcome weights or the default.
func (c *TuningConfig) GetOutcomeWeights() OutcomeWeights {
	if c.OutcomeWeights == nil {
		return OutcomeWeights{Arrest: 1.0, Case: 0.7, Other: 0.3}
	}
	return *c.OutcomeWeights
}

// GetScoreWeights returns the score weights or the default.
func (c *TuningConfig) GetScoreWeights() ScoreWeights {
	if c.ScoreWeights == nil {
		return ScoreWeights{Severity: 0.7, Response: 0.1, Outcome: 0.2}
	}
	return *c.ScoreWeights
}

// GetNeighbors returns the region adjacency whitelist or the default
// 14-sector whitelist.
func (c *TuningConfig) GetNeighbors() map[int][]int {
	if len(c.Neighbors) == 0 {
		return map[int][]int{
			1:  {2},
			2:  {1, 3, 4, 14},
			3:  {2, 4, 5, 11, 12, 14},
			4:  {2, 3, 5, 6},
			5:  {3, 4, 6, 9, 10, 11},
			6:  {4, 5, 7, 8, 9},
			7:  {6, 8},
			8:  {6, 7, 9},
			9:  {5, 6, 8, 10},
			10: {5, 9, 11},
			11: {3, 5, 10, 12},
			12: {3, 11, 13},
			13: {12, 14},
			14: {2, 3, 13},
		}
	}
	return c.Neighbors
}

// GetExcessRegions returns the overloaded regions for the give-bulk step.
// An empty result skips the step.
func (c *TuningConfig) GetExcessRegions() []int {
	return c.ExcessRegions
}

// GetDeficientSteps returns the take-bulk steps to run after the give-bulk step.
func (c *TuningConfig) GetDeficientSteps() []DeficientStep {
	return c.DeficientSteps
}

// RegionIDs returns the whitelist's region ids in ascending order.
func (c *TuningConfig) RegionIDs() []int {
	neighbors := c.GetNeighbors()
	ids := make([]int, 0, len(neighbors))
	for id := range neighbors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
