// Package workload turns raw events into weighted scores, assigns them to
// their nearest grid cell, and sums the result per cell and per region.
package workload

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/sector.balance/internal/config"
	"github.com/banshee-data/sector.balance/internal/monitoring"
	"github.com/paulmach/orb"
)

// ErrMalformedEvent marks an event whose severity could not be mapped or
// whose duration or location is not a finite number. Such events still get a
// score from the fallback weights and are tallied in ScoreStats.
var ErrMalformedEvent = errors.New("malformed event")

var logf = monitoring.Stage("workload")

// Severity is the priority ordinal of an event. Lower ordinals are more
// urgent. SeverityUnknown covers blank and digit-free values.
type Severity int

// SeverityUnknown is the fallback severity class.
const SeverityUnknown Severity = 0

// ParseSeverity reads the first run of decimal digits in raw.
// "P2", "2" and "Priority 3 - urgent" parse as 2, 2 and 3.
func ParseSeverity(raw string) Severity {
	start := strings.IndexFunc(raw, isDigit)
	if start < 0 {
		return SeverityUnknown
	}
	end := start
	for end < len(raw) && isDigit(rune(raw[end])) {
		end++
	}
	n, err := strconv.Atoi(raw[start:end])
	if err != nil || n <= 0 {
		return SeverityUnknown
	}
	return Severity(n)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// Outcome is the resolution class of an event.
type Outcome int

const (
	OutcomeOther Outcome = iota
	OutcomeCase
	OutcomeArrest
)

func (o Outcome) String() string {
	switch o {
	case OutcomeArrest:
		return "arrest"
	case OutcomeCase:
		return "case"
	default:
		return "other"
	}
}

// ParseOutcome classifies raw by case-insensitive substring: "arrest" wins
// over "case"; anything else, blank included, is OutcomeOther.
func ParseOutcome(raw string) Outcome {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "arrest"):
		return OutcomeArrest
	case strings.Contains(s, "case"):
		return OutcomeCase
	default:
		return OutcomeOther
	}
}

// Event is one raw incident record.
type Event struct {
	Severity    string
	Response    float64 // response duration; ignored when HasResponse is false
	HasResponse bool
	Outcome     string
	Location    orb.Point // lon, lat
}

// Weights are the scoring tables and the convex combination applied to the
// three components.
type Weights struct {
	Severity map[int]float64

	Arrest float64
	Case   float64
	Other  float64

	SeverityShare float64
	ResponseShare float64
	OutcomeShare  float64
}

// DefaultWeights returns the tables of the default tuning file.
func DefaultWeights() Weights {
	return WeightsFromConfig(config.EmptyTuningConfig())
}

// WeightsFromConfig copies the scoring tables out of a tuning config,
// applying its defaults.
func WeightsFromConfig(cfg *config.TuningConfig) Weights {
	sev := make(map[int]float64)
	for k, v := range cfg.GetSeverityWeights() {
		sev[k] = v
	}
	ow := cfg.GetOutcomeWeights()
	sw := cfg.GetScoreWeights()
	return Weights{
		Severity:      sev,
		Arrest:        ow.Arrest,
		Case:          ow.Case,
		Other:         ow.Other,
		SeverityShare: sw.Severity,
		ResponseShare: sw.Response,
		OutcomeShare:  sw.Outcome,
	}
}

// Validate checks that every weight is finite and non-negative and that the
// three shares sum to 1.
func (w Weights) Validate() error {
	check := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s weight %g", config.ErrInvalidConfiguration, name, v)
		}
		return nil
	}
	for k, v := range w.Severity {
		if err := check(fmt.Sprintf("severity %d", k), v); err != nil {
			return err
		}
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"arrest", w.Arrest}, {"case", w.Case}, {"other", w.Other},
		{"severity share", w.SeverityShare}, {"response share", w.ResponseShare}, {"outcome share", w.OutcomeShare},
	} {
		if err := check(p.name, p.v); err != nil {
			return err
		}
	}
	if sum := w.SeverityShare + w.ResponseShare + w.OutcomeShare; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: score weights sum to %g, want 1", config.ErrInvalidConfiguration, sum)
	}
	return nil
}

func (w Weights) outcome(o Outcome) float64 {
	switch o {
	case OutcomeArrest:
		return w.Arrest
	case OutcomeCase:
		return w.Case
	default:
		return w.Other
	}
}

// ScoredEvent is an event with its parsed classes and component weights.
type ScoredEvent struct {
	Location orb.Point
	Severity Severity
	Outcome  Outcome

	SeverityWeight float64
	ScaledResponse float64
	OutcomeWeight  float64
	Score          float64

	Err error // wraps ErrMalformedEvent when a fallback was used
}

// ScoreStats summarises a scoring pass.
type ScoreStats struct {
	Events          int
	Malformed       int
	MissingResponse int
	Clipped         int // durations outside the IQR fence, replaced by 0

	Q1, Q3       float64
	Lower, Upper float64 // IQR fence
	Min, Max     float64 // post-clip range used for scaling
}

// Score computes the per-event score:
//
//	score = SeverityShare*severity + ResponseShare*scaled + OutcomeShare*outcome
//
// Durations outside [Q1-1.5*IQR, Q3+1.5*IQR] are replaced by 0 before
// min-max scaling over the remaining values. Missing durations score 0 and
// take no part in the quartiles or the range.
func Score(events []Event, w Weights) ([]ScoredEvent, ScoreStats, error) {
	var stats ScoreStats
	if err := w.Validate(); err != nil {
		return nil, stats, err
	}
	stats.Events = len(events)

	durations := make([]float64, len(events))
	present := make([]bool, len(events))
	var sorted []float64
	for i, e := range events {
		if !e.HasResponse {
			stats.MissingResponse++
			continue
		}
		if math.IsNaN(e.Response) || math.IsInf(e.Response, 0) {
			continue
		}
		durations[i], present[i] = e.Response, true
		sorted = append(sorted, e.Response)
	}
	sort.Float64s(sorted)

	if len(sorted) > 0 {
		stats.Q1 = quartile(sorted, 0.25)
		stats.Q3 = quartile(sorted, 0.75)
		iqr := stats.Q3 - stats.Q1
		stats.Lower = stats.Q1 - 1.5*iqr
		stats.Upper = stats.Q3 + 1.5*iqr

		first := true
		for i := range durations {
			if !present[i] {
				continue
			}
			if durations[i] < stats.Lower || durations[i] > stats.Upper {
				durations[i] = 0
				stats.Clipped++
			}
			if first {
				stats.Min, stats.Max, first = durations[i], durations[i], false
				continue
			}
			stats.Min = math.Min(stats.Min, durations[i])
			stats.Max = math.Max(stats.Max, durations[i])
		}
	}
	span := stats.Max - stats.Min

	out := make([]ScoredEvent, len(events))
	for i, e := range events {
		se := ScoredEvent{
			Location: e.Location,
			Severity: ParseSeverity(e.Severity),
			Outcome:  ParseOutcome(e.Outcome),
		}

		var problems []string
		sw, ok := w.Severity[int(se.Severity)]
		if !ok {
			problems = append(problems, fmt.Sprintf("severity %q", e.Severity))
			sw = 0
		}
		if e.HasResponse && !present[i] {
			problems = append(problems, fmt.Sprintf("duration %g", e.Response))
		}
		if !finite(e.Location) {
			problems = append(problems, fmt.Sprintf("location %v", e.Location))
		}

		se.SeverityWeight = sw
		if present[i] && span > 0 {
			se.ScaledResponse = (durations[i] - stats.Min) / span
		}
		se.OutcomeWeight = w.outcome(se.Outcome)
		se.Score = w.SeverityShare*se.SeverityWeight +
			w.ResponseShare*se.ScaledResponse +
			w.OutcomeShare*se.OutcomeWeight

		if len(problems) > 0 {
			se.Err = fmt.Errorf("event %d: %s: %w", i, strings.Join(problems, ", "), ErrMalformedEvent)
			stats.Malformed++
		}
		out[i] = se
	}

	logf("scored %d events: %d malformed, %d missing response, %d clipped (fence [%g, %g])",
		stats.Events, stats.Malformed, stats.MissingResponse, stats.Clipped, stats.Lower, stats.Upper)
	return out, stats, nil
}

// quartile interpolates linearly between the order statistics around
// position (n-1)*p of sorted, which must be non-empty and ascending.
func quartile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

func finite(p orb.Point) bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
